package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(vars map[string]string) (*Config, error) {
	return Parse(env.Options{Prefix: envPrefix, Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(map[string]string{"REIMBURSE_JWT_SECRET": "s"})
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.APIPort)
	assert.Equal(t, 12*time.Hour, cfg.JWTExp)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 10, cfg.MaxUploadFiles)
	assert.Equal(t, 15*time.Minute, cfg.PasswordResetTTL)
	assert.False(t, cfg.AllowRoleOnRegister)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(map[string]string{
		"REIMBURSE_JWT_SECRET":     "s",
		"REIMBURSE_DB_DRIVER":      "sqlite",
		"REIMBURSE_DB_DSN":         "file:reimburse.db",
		"REIMBURSE_NOTIFY_TO":      "budget@example.org,finance@example.org",
		"REIMBURSE_JWT_EXPIRATION": "30m",
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"budget@example.org", "finance@example.org"}, cfg.NotifyTo)
	assert.Equal(t, 30*time.Minute, cfg.JWTExp)
}

func TestParseRequiresSecret(t *testing.T) {
	_, err := parse(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	_, err := parse(map[string]string{"REIMBURSE_JWT_SECRET": "s", "REIMBURSE_DB_DRIVER": "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}
