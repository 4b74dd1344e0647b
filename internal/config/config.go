package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the base agent configuration.
//
// HubURL is the single required setting for sync; when it is empty the whole
// sync layer runs disabled (every component no-ops) and local playback is
// unaffected.
type Config struct {
	HubURL       string `yaml:"hub_url"`
	AuthTokenURL string `yaml:"auth_token_url"`

	DeviceName  string `yaml:"device_name"`
	DeviceClass string `yaml:"device_class"`
	StateDir    string `yaml:"state_dir"`

	StatusHost string `yaml:"status_host"`
	StatusPort string `yaml:"status_port"`

	SQLiteDBPath string `yaml:"sqlite_db_path"`

	DialTimeoutMs        int `yaml:"dial_timeout_ms"`
	BrowseTimeoutMs      int `yaml:"browse_timeout_ms"`
	TransferTimeoutMs    int `yaml:"transfer_timeout_ms"`
	ReconnectBaseMs      int `yaml:"reconnect_base_ms"`
	ReconnectMaxMs       int `yaml:"reconnect_max_ms"`
	TokenLifetimeSec     int `yaml:"token_lifetime_sec"`
	TokenRefreshEarlySec int `yaml:"token_refresh_early_sec"`
	ResumeRetentionDays  int `yaml:"resume_retention_days"`

	RelayLockPort      int `yaml:"relay_lock_port"`
	RelayMulticastPort int `yaml:"relay_multicast_port"`
}

// SyncEnabled reports whether a session hub is configured at all.
func (c Config) SyncEnabled() bool {
	return strings.TrimSpace(c.HubURL) != ""
}

// Load reads configuration from an optional YAML file overlaid by environment
// variables with defaults. The file path comes from SYNCD_CONFIG and is
// ignored when unset.
func Load() (Config, error) {
	cfg := Config{
		StateDir:             envString("STATE_DIR", "./data"),
		StatusHost:           envString("STATUS_HOST", "127.0.0.1"),
		StatusPort:           envString("STATUS_PORT", "9600"),
		SQLiteDBPath:         envString("SQLITE_DB_PATH", "./data/syncd.db"),
		DialTimeoutMs:        5000,
		BrowseTimeoutMs:      15000,
		TransferTimeoutMs:    30000,
		ReconnectBaseMs:      1000,
		ReconnectMaxMs:       30000,
		TokenLifetimeSec:     86400,
		TokenRefreshEarlySec: 3600,
		ResumeRetentionDays:  365,
		RelayLockPort:        9601,
		RelayMulticastPort:   9602,
	}

	if path := os.Getenv("SYNCD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.HubURL = envString("HUB_URL", cfg.HubURL)
	cfg.AuthTokenURL = envString("AUTH_TOKEN_URL", cfg.AuthTokenURL)
	cfg.DeviceName = envString("DEVICE_NAME", cfg.DeviceName)
	cfg.DeviceClass = envString("DEVICE_CLASS", cfg.DeviceClass)
	cfg.StateDir = envString("STATE_DIR", cfg.StateDir)
	cfg.StatusHost = envString("STATUS_HOST", cfg.StatusHost)
	cfg.StatusPort = envString("STATUS_PORT", cfg.StatusPort)
	cfg.SQLiteDBPath = envString("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DialTimeoutMs = envInt("DIAL_TIMEOUT_MS", cfg.DialTimeoutMs)
	cfg.BrowseTimeoutMs = envInt("BROWSE_TIMEOUT_MS", cfg.BrowseTimeoutMs)
	cfg.TransferTimeoutMs = envInt("TRANSFER_TIMEOUT_MS", cfg.TransferTimeoutMs)
	cfg.ReconnectBaseMs = envInt("RECONNECT_BASE_MS", cfg.ReconnectBaseMs)
	cfg.ReconnectMaxMs = envInt("RECONNECT_MAX_MS", cfg.ReconnectMaxMs)
	cfg.TokenLifetimeSec = envInt("TOKEN_LIFETIME_SEC", cfg.TokenLifetimeSec)
	cfg.TokenRefreshEarlySec = envInt("TOKEN_REFRESH_EARLY_SEC", cfg.TokenRefreshEarlySec)
	cfg.ResumeRetentionDays = envInt("RESUME_RETENTION_DAYS", cfg.ResumeRetentionDays)
	cfg.RelayLockPort = envInt("RELAY_LOCK_PORT", cfg.RelayLockPort)
	cfg.RelayMulticastPort = envInt("RELAY_MULTICAST_PORT", cfg.RelayMulticastPort)

	if cfg.SyncEnabled() {
		if !strings.HasPrefix(cfg.HubURL, "ws://") && !strings.HasPrefix(cfg.HubURL, "wss://") {
			return Config{}, fmt.Errorf("HUB_URL must be a ws:// or wss:// URL, got %q", cfg.HubURL)
		}
		if strings.TrimSpace(cfg.AuthTokenURL) == "" {
			return Config{}, fmt.Errorf("AUTH_TOKEN_URL is required when HUB_URL is set")
		}
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
