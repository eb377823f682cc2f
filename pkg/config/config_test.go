package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pharmacy-service", cfg.ServiceName)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.AccessExpiresIn)
	assert.Equal(t, 10, cfg.Inventory.LowStockThreshold)
	assert.Equal(t, "local", cfg.Storage.Driver)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "48h")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("AUTH_RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 3, cfg.DB.MaxIdleConns)
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshExpiresIn)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoad_ProductionRejectsSharedSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_ACCESS_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "pharmacy", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pharmacy sslmode=disable", c.GetDSN())
}
