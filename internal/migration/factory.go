package migration

import (
	"fmt"

	"github.com/BaSui01/finagent/config"
	"go.uber.org/zap"
)

// NewMigratorFromConfig builds a migrator for cfg.Database.
func NewMigratorFromConfig(cfg *config.Config, logger *zap.Logger) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

// NewMigratorFromDatabaseConfig builds a migrator from the database section.
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	return NewMigrator(&Config{
		DatabaseType: dbType,
		DSN:          dbCfg.DSN(),
		TableName:    dbCfg.MigrationsTable,
	}, logger)
}
