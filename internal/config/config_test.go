package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/hamster-panel/internal/config"
)

func TestLoadFromWritesTemplateOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("first run config = %+v, want defaults", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	// The template itself must parse back to the defaults.
	again, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom template: %v", err)
	}
	if again != config.Default() {
		t.Errorf("template config = %+v, want defaults", again)
	}
}

func TestLoadFromPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `// only a few keys
{
  "backend": "file",
  // comment between keys
  "timezone": "Europe/Berlin",
  "mysql": {"dsn": "u:p@tcp(db:3306)/hamster"}
}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend != "file" || cfg.Timezone != "Europe/Berlin" || cfg.MySQL.DSN != "u:p@tcp(db:3306)/hamster" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.RefreshSeconds != config.DefaultRefreshSeconds || cfg.Outlook.ClientID != config.DefaultClientID {
		t.Errorf("defaults not back-filled: %+v", cfg)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"backend": "dbus"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvBackend, "file")
	t.Setenv(config.EnvDataDir, "/tmp/facts")
	t.Setenv(config.EnvRefresh, "5")
	t.Setenv(config.EnvListen, "0.0.0.0:9000")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend != "file" || cfg.DataDir != "/tmp/facts" || cfg.RefreshSeconds != 5 || cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown backend", `{"backend": "sqlite"}`},
		{"refresh too large", `{"refresh_seconds": 7200}`},
		{"negative refresh", `{"refresh_seconds": -1}`},
		{"bad timezone", `{"timezone": "Mars/Olympus"}`},
		{"bad log level", `{"log_level": "loud"}`},
		{"bad listen", `{"server": {"listen": "nope"}}`},
		{"not json", `backend = dbus`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := config.LoadFrom(path); err == nil {
				t.Errorf("LoadFrom(%s) succeeded, want error", tt.data)
			}
		})
	}
}

func TestLoadFromBadEnvRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv(config.EnvRefresh, "soon")
	if _, err := config.LoadFrom(path); err == nil {
		t.Error("expected error for non-numeric refresh override")
	}
}
