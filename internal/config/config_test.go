package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_DRIVER", "DB_HOST", "JWT_SECRET", "ACCESS_TOKEN_TTL", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "API_BASE_PATH", "GIN_MODE"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "/api", cfg.APIBasePath)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "dev-secret-only", cfg.JWTSecret)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_driver: postgres
db_host: db.internal
access_token_ttl: 5m
jwt_secret: from-file
google_client_id: client
google_client_secret: secret
`), 0o600))

	clearEnv(t)
	t.Setenv("APP_CONFIG", path)
	t.Setenv("DB_HOST", "db.override")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "db.override", cfg.DBHost)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.True(t, cfg.GoogleEnabled())
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.DBDriver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.GinMode = "release"
	assert.Error(t, cfg.Validate(), "release mode needs an explicit JWT secret")

	cfg = Defaults()
	cfg.RefreshTokenTTL = 0
	assert.Error(t, cfg.Validate())
}
