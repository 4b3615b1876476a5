package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Treasury.URL = "https://treasury.example.com"
	cfg.Treasury.APIKey = "key"
	cfg.Treasury.APISecret = "c2VjcmV0"
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Engine.DisputeWindow = duration{0}
	cfg.Redis.Addr = ""
	cfg.Treasury.URL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "dispute_window")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "treasury: url")
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Creators = []string{"0x0000000000000000000000000000000000000001", "nope"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid creator address "nope"`)
}

func TestValidateTreasurySecretSources(t *testing.T) {
	cfg := validConfig()
	cfg.Treasury.APISecret = ""
	require.Error(t, cfg.Validate(), "no secret source at all")

	cfg.Treasury.EncryptedSecretPath = "/etc/marketd/secret.enc"
	require.Error(t, cfg.Validate(), "encrypted path without password")

	cfg.Treasury.SecretPassword = "hunter2"
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "serve"

[engine]
swap_fee_bps = 50
dispute_window = "48h"

[treasury]
url = "https://treasury.example.com"
api_key = "key"
api_secret = "c2VjcmV0"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, uint32(50), cfg.Engine.SwapFeeBps)
	assert.Equal(t, 48*time.Hour, cfg.Engine.DisputeWindow.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, uint32(200), cfg.Engine.ProtocolFeeBps)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETD_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MARKETD_ENGINE_SWAP_FEE_BPS", "45")
	t.Setenv("MARKETD_AUTH_ADMINS", "0x0000000000000000000000000000000000000009, 0x0000000000000000000000000000000000000008")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, uint32(45), cfg.Engine.SwapFeeBps)
	require.Len(t, cfg.Auth.Admins, 2)
	assert.Len(t, cfg.AdminAddresses(), 2)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "db-pass"
	cfg.Auth.APIKey = "api-key"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Auth.APIKey)
	assert.Equal(t, "***", red.Treasury.APISecret)
	// Original untouched.
	assert.Equal(t, "db-pass", cfg.Database.Password)
	// Empty fields stay empty rather than becoming "***".
	assert.Empty(t, red.Database.DSN)
}
