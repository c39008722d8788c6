package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return mockDB, mock, gormDB
}

func TestOpen_Drivers(t *testing.T) {
	_, err := Open("", "x", nil)
	assert.ErrorContains(t, err, "not configured")

	_, err = Open("oracle", "x", nil)
	assert.ErrorContains(t, err, "unsupported database driver: oracle")

	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.NoError(t, sqlDB.Close())
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPoolManager_AppliesConfig(t *testing.T) {
	mockDB, _, gormDB := setupMockDB(t)
	defer mockDB.Close()

	cfg := PoolConfig{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLifetime: time.Hour}
	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Same(t, gormDB, pm.DB())
	assert.Equal(t, 7, pm.Stats().MaxOpenConnections)
}

func TestPoolManager_Ping(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	pm, err := NewPoolManager(gormDB, PoolConfig{}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, pm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, pm.Ping(context.Background()), sql.ErrConnDone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	pm, err := NewPoolManager(gormDB, PoolConfig{}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, pm.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = pm.WithTransaction(context.Background(), func(*gorm.DB) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	pm, err := NewPoolManager(gormDB, PoolConfig{}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err = pm.WithTransactionRetry(context.Background(), 3, func(*gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("ERROR: deadlock detected")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry_NotRetryable(t *testing.T) {
	mockDB, mock, gormDB := setupMockDB(t)
	defer mockDB.Close()

	pm, err := NewPoolManager(gormDB, PoolConfig{}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = pm.WithTransactionRetry(context.Background(), 3, func(*gorm.DB) error {
		attempts++
		return errors.New("unique constraint violated")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPoolManager_Close(t *testing.T) {
	_, mock, gormDB := setupMockDB(t)

	pm, err := NewPoolManager(gormDB, PoolConfig{HealthCheckInterval: time.Hour}, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close())

	assert.ErrorIs(t, pm.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, pm.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Deadlock found when trying to get lock"), true},
		{errors.New("pq: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("driver: bad connection"), true},
		{errors.New("database is locked"), true},
		{errors.New("syntax error at or near"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

func TestPoolManager_StatsHook(t *testing.T) {
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "stats.db"), nil)
	require.NoError(t, err)

	got := make(chan PoolStats, 1)
	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 4, HealthCheckInterval: 10 * time.Millisecond}, nil,
		WithStatsHook(func(s PoolStats) {
			select {
			case got <- s:
			default:
			}
		}))
	require.NoError(t, err)
	defer pm.Close()

	select {
	case s := <-got:
		assert.Equal(t, 4, s.MaxOpenConnections)
	case <-time.After(2 * time.Second):
		t.Fatal("stats hook never called")
	}
}
