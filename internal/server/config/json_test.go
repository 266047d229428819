package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseJson_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	body := `{
		"endpoint_addr_http": ":8888",
		"database_dsn": "postgres://json",
		"secret_key": "json-secret",
		"session_validity_duration": "12h",
		"login_token_validity_duration": "5m",
		"api_token_validity_duration": "10m",
		"trial_duration": "336h",
		"default_tier_id": "pro",
		"lapsed_allowed_routes": ["upgrade", "profile", "logout", "bookmarks"],
		"s3_bucket": "json-bucket"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"server", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	require.Equal(t, ":8888", cfg.EndpointAddrHTTP)
	require.Equal(t, "postgres://json", cfg.DatabaseDSN)
	require.Equal(t, "json-secret", cfg.SecretKey)
	require.Equal(t, 12*time.Hour, cfg.SessionValidityDuration)
	require.Equal(t, 5*time.Minute, cfg.LoginTokenValidityDuration)
	require.Equal(t, "pro", cfg.DefaultTierID)
	require.Equal(t, []string{"upgrade", "profile", "logout", "bookmarks"}, cfg.LapsedAllowedRoutes)
	require.Equal(t, "json-bucket", cfg.S3Bucket)
}

func TestParseJson_NoFileFlagKeepsDefaults(t *testing.T) {
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"server"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	require.Equal(t, ":8080", cfg.EndpointAddrHTTP)
}
