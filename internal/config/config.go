package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for hamster-panel, stored in
// ~/.hamster-panel/config.json. The file supports single-line // comments for
// documentation purposes.
type Config struct {
	// Backend selects the tracker: "dbus" talks to the Hamster service on the
	// session bus, "file" keeps facts in local JSON day files.
	Backend string `json:"backend" validate:"oneof=dbus file"`
	// DataDir is the file backend's directory. Empty = ~/.hamster-panel/facts.
	DataDir string `json:"data_dir"`
	// RefreshSeconds is the periodic refresh interval.
	RefreshSeconds int `json:"refresh_seconds" validate:"gte=1,lte=3600"`
	// Timezone is the IANA zone used for display and day attribution. Empty = local.
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`

	Server  ServerConfig  `json:"server"`
	MySQL   MySQLConfig   `json:"mysql"`
	Outlook OutlookConfig `json:"outlook"`
}

// ServerConfig holds the status endpoint settings.
type ServerConfig struct {
	Listen string `json:"listen" validate:"hostname_port"`
}

// MySQLConfig holds the publish target.
type MySQLConfig struct {
	// DSN in go-sql-driver format, e.g. "user:pass@tcp(localhost:3306)/hamster?parseTime=true".
	DSN string `json:"dsn"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar sync settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `json:"tenant_id" validate:"required"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `json:"client_id" validate:"required"`
	// DefaultProject is the category assigned to imported Outlook events.
	DefaultProject string `json:"default_project"`
}

const (
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration. Replace with your own registered app ID for
	// organisational or production deployments.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultProject is the category used when none is specified.
	DefaultProject = "Meetings"

	DefaultBackend        = "dbus"
	DefaultRefreshSeconds = 60
	DefaultLogLevel       = "info"
	DefaultListen         = "127.0.0.1:8765"
)

// Environment variables that override the file.
const (
	EnvBackend  = "HAMSTER_PANEL_BACKEND"
	EnvDataDir  = "HAMSTER_PANEL_DATA_DIR"
	EnvLogLevel = "HAMSTER_PANEL_LOG_LEVEL"
	EnvMySQLDSN = "HAMSTER_PANEL_MYSQL_DSN"
	EnvListen   = "HAMSTER_PANEL_LISTEN"
	EnvRefresh  = "HAMSTER_PANEL_REFRESH_SECONDS"
)

var validate = validator.New()

// Default returns a Config pre-filled with sensible defaults.
func Default() Config {
	return Config{
		Backend:        DefaultBackend,
		RefreshSeconds: DefaultRefreshSeconds,
		LogLevel:       DefaultLogLevel,
		Server:         ServerConfig{Listen: DefaultListen},
		Outlook: OutlookConfig{
			TenantID:       DefaultTenantID,
			ClientID:       DefaultClientID,
			DefaultProject: DefaultProject,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// hamster-panel configuration – ~/.hamster-panel/config.json
//
// All settings are optional; the defaults below talk to the Hamster service
// on the session bus. Every top-level value can also be set through a
// HAMSTER_PANEL_* environment variable, which wins over this file.
{
  // Tracker backend.
  // • "dbus" – the org.gnome.Hamster service (default)
  // • "file" – local JSON day files, no daemon needed
  "backend": "dbus",

  // Directory for the file backend. Empty = ~/.hamster-panel/facts
  "data_dir": "",

  // Seconds between periodic refreshes (1–3600).
  "refresh_seconds": 60,

  // IANA timezone used to show times and pick "today", e.g. "Europe/Berlin".
  // Leave empty to use the system zone.
  "timezone": "",

  // debug, info, warn or error. Logs go to stderr.
  "log_level": "info",

  // ── hamster-panel serve ──────────────────────────────────────────────────
  "server": {
    "listen": "127.0.0.1:8765"
  },

  // ── hamster-panel publish ────────────────────────────────────────────────
  "mysql": {
    // e.g. "user:pass@tcp(localhost:3306)/hamster?parseTime=true"
    "dsn": ""
  },

  // ── Microsoft Graph / Outlook calendar import ────────────────────────────
  "outlook": {
    // Azure AD tenant ID.
    // • "common"  – personal Microsoft accounts and any organisation (default)
    // • Your organisation's tenant GUID, e.g. "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"
    "tenant_id": "common",

    // Azure application (client) ID used for the OAuth2 device code flow.
    // The built-in value is the public Azure CLI app – no app registration needed.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",

    // Category assigned to imported calendar events.
    // Can be overridden per-sync with: hamster-panel outlook sync --project <name>
    "default_project": "Meetings"
  }
}
`

// FilePath returns the path to ~/.hamster-panel/config.json.
func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".hamster-panel", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config from the default path.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return Default(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, creating it with annotated defaults on
// first run, then applies environment overrides and validates the result.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cleaned := stripLineComments(data)
		if err := json.Unmarshal(cleaned, &cfg); err != nil {
			return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return Default(), err
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields so callers always get a usable Config
// even if the user only partially fills in the file.
func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.RefreshSeconds == 0 {
		cfg.RefreshSeconds = DefaultRefreshSeconds
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Outlook.TenantID == "" {
		cfg.Outlook.TenantID = DefaultTenantID
	}
	if cfg.Outlook.ClientID == "" {
		cfg.Outlook.ClientID = DefaultClientID
	}
	if cfg.Outlook.DefaultProject == "" {
		cfg.Outlook.DefaultProject = DefaultProject
	}
}

func applyEnv(cfg *Config) error {
	cfg.Backend = getEnv(EnvBackend, cfg.Backend)
	cfg.DataDir = getEnv(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.MySQL.DSN = getEnv(EnvMySQLDSN, cfg.MySQL.DSN)
	cfg.Server.Listen = getEnv(EnvListen, cfg.Server.Listen)
	if v := os.Getenv(EnvRefresh); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRefresh, err)
		}
		cfg.RefreshSeconds = n
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
