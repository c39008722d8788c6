package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/finagent/internal/database"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// DatabaseType selects the SQL dialect of the embedded migrations.
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// ParseDatabaseType accepts the driver names understood by database.Open.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// MigrationsPath is the embedded directory holding t's migrations.
func MigrationsPath(t DatabaseType) string {
	return "migrations/" + string(t)
}

// MigrationStatus describes one migration file.
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo summarizes the schema state.
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config configures a Migrator.
type Config struct {
	DatabaseType DatabaseType
	// DSN is passed to database.Open.
	DSN string
	// TableName defaults to schema_migrations.
	TableName string
	// LockTimeout defaults to 15s.
	LockTimeout time.Duration
}

// Migrator is the operation set behind the migrate subcommand.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// DefaultMigrator runs the embedded migrations with golang-migrate.
type DefaultMigrator struct {
	config  Config
	migrate *migrate.Migrate
	db      *sql.DB
	logger  *zap.Logger
}

var _ Migrator = (*DefaultMigrator)(nil)

// NewMigrator opens the database and prepares the migration engine.
func NewMigrator(cfg *Config, logger *zap.Logger) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if _, err := ParseDatabaseType(string(cfg.DatabaseType)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := *cfg
	if c.TableName == "" {
		c.TableName = "schema_migrations"
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = 15 * time.Second
	}

	m := &DefaultMigrator{
		config: c,
		logger: logger.With(zap.String("component", "migration"), zap.String("database", string(c.DatabaseType))),
	}
	if err := m.init(); err != nil {
		if m.db != nil {
			m.db.Close()
		}
		return nil, fmt.Errorf("initialize migrator: %w", err)
	}
	return m, nil
}

func (m *DefaultMigrator) init() error {
	gdb, err := database.Open(string(m.config.DatabaseType), m.config.DSN, m.logger)
	if err != nil {
		return err
	}
	if m.db, err = gdb.DB(); err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	driver, err := m.databaseDriver()
	if err != nil {
		return fmt.Errorf("create database driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, MigrationsPath(m.config.DatabaseType))
	if err != nil {
		return fmt.Errorf("create source driver: %w", err)
	}

	m.migrate, err = migrate.NewWithInstance("iofs", src, string(m.config.DatabaseType), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.migrate.LockTimeout = m.config.LockTimeout
	return nil
}

// databaseDriver wraps the already open connection. The sqlite3 driver only
// issues plain SQL on the instance, so it works over the pure-Go connection.
func (m *DefaultMigrator) databaseDriver() (migratedb.Driver, error) {
	switch m.config.DatabaseType {
	case DatabaseTypePostgres:
		return postgres.WithInstance(m.db, &postgres.Config{MigrationsTable: m.config.TableName})
	case DatabaseTypeMySQL:
		return mysql.WithInstance(m.db, &mysql.Config{MigrationsTable: m.config.TableName})
	case DatabaseTypeSQLite:
		return sqlite3.WithInstance(m.db, &sqlite3.Config{MigrationsTable: m.config.TableName})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", m.config.DatabaseType)
	}
}

// Up applies all pending migrations.
func (m *DefaultMigrator) Up(ctx context.Context) error {
	return m.run("up", func() error { return m.migrate.Up() })
}

// Down rolls back one migration.
func (m *DefaultMigrator) Down(ctx context.Context) error {
	return m.run("down", func() error { return m.migrate.Steps(-1) })
}

// DownAll rolls back every migration.
func (m *DefaultMigrator) DownAll(ctx context.Context) error {
	return m.run("down all", func() error { return m.migrate.Down() })
}

// Steps applies n migrations, or rolls back -n when negative.
func (m *DefaultMigrator) Steps(ctx context.Context, n int) error {
	return m.run("steps", func() error { return m.migrate.Steps(n) })
}

// Goto migrates up or down to version.
func (m *DefaultMigrator) Goto(ctx context.Context, version uint) error {
	return m.run("goto", func() error { return m.migrate.Migrate(version) })
}

// Force records version without running anything. Used to clear a dirty state.
func (m *DefaultMigrator) Force(ctx context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	m.logger.Warn("migration version forced", zap.Int("version", version))
	return nil
}

func (m *DefaultMigrator) run(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("no migration to apply", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}
	m.logger.Info("migration applied", zap.String("op", op), zap.Duration("took", time.Since(start)))
	return nil
}

// Version returns the current version; 0 when nothing is applied.
func (m *DefaultMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration with its applied state.
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := availableMigrations(m.config.DatabaseType)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, MigrationStatus{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		})
	}
	return statuses, nil
}

// Info summarizes Status.
func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, s := range statuses {
		if s.Applied {
			applied++
		}
	}
	return &MigrationInfo{
		CurrentVersion:    current,
		Dirty:             dirty,
		TotalMigrations:   len(statuses),
		AppliedMigrations: applied,
		PendingMigrations: len(statuses) - applied,
	}, nil
}

// Close releases the engine and the connection.
func (m *DefaultMigrator) Close() error {
	var errs []error
	if m.migrate != nil {
		srcErr, dbErr := m.migrate.Close()
		errs = append(errs, srcErr, dbErr)
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close migrator: %w", err)
	}
	return nil
}

type migrationFile struct {
	version uint
	name    string
}

// availableMigrations parses NNNNNN_name.up.sql files, sorted by version.
func availableMigrations(t DatabaseType) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, MigrationsPath(t))
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	seen := make(map[uint]bool)
	var files []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		v, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil || seen[uint(v)] {
			continue
		}
		seen[uint(v)] = true
		files = append(files, migrationFile{
			version: uint(v),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}
