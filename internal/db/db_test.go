package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	for _, table := range []string{"machines", "machine_status", "inventory", "inventory_log", "status_log", "users"} {
		assert.True(t, gormDB.Migrator().HasTable(table), "table %s should exist", table)
	}

	// Running the migration twice is harmless.
	require.NoError(t, Migrate(gormDB))

	// The check constraint rejects a negative count even without the store.
	require.NoError(t, gormDB.Create(&model.Machine{ID: 1, Name: "Lobby"}).Error)
	err = gormDB.Create(&model.Inventory{MachineID: 1, Coffee: -1}).Error
	assert.Error(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, logLevel("silent"))
	assert.Equal(t, logger.Info, logLevel("info"))
	assert.Equal(t, logger.Warn, logLevel("unknown"))
}
