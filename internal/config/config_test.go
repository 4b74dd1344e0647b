package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.False(t, cfg.SyncEnabled())
	require.Equal(t, "9600", cfg.StatusPort)
	require.Equal(t, 15000, cfg.BrowseTimeoutMs)
	require.Equal(t, 30000, cfg.TransferTimeoutMs)
	require.Equal(t, 86400, cfg.TokenLifetimeSec)
	require.Equal(t, 3600, cfg.TokenRefreshEarlySec)
}

func TestLoad_HubURLRequiresScheme(t *testing.T) {
	t.Setenv("HUB_URL", "http://hub.example.com/sync")
	t.Setenv("AUTH_TOKEN_URL", "https://auth.example.com/token")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "ws://")
}

func TestLoad_HubURLRequiresAuthEndpoint(t *testing.T) {
	t.Setenv("HUB_URL", "wss://hub.example.com/sync")
	t.Setenv("AUTH_TOKEN_URL", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AUTH_TOKEN_URL")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syncd.yaml")
	content := "hub_url: wss://file.example.com/sync\nauth_token_url: https://file.example.com/token\nbrowse_timeout_ms: 5000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SYNCD_CONFIG", path)
	t.Setenv("HUB_URL", "wss://env.example.com/sync")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "wss://env.example.com/sync", cfg.HubURL)
	require.Equal(t, "https://file.example.com/token", cfg.AuthTokenURL)
	require.Equal(t, 5000, cfg.BrowseTimeoutMs)
}

func TestLoad_SyncDisabledWhenHubUnset(t *testing.T) {
	t.Setenv("HUB_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.SyncEnabled())
}
