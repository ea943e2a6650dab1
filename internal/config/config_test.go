package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePortPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		override int
		env      string
		want     int
	}{
		{"default", 0, "", DefaultAPIPort},
		{"env", 0, "6000", 6000},
		{"override beats env", 7000, "6000", 7000},
		{"whitespace env ignored", 0, "  ", DefaultAPIPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePort(tt.override, tt.env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected port %d, got %d", tt.want, got)
			}
		})
	}
}

func TestResolvePortRejectsBadValues(t *testing.T) {
	if _, err := ResolvePort(0, "not-a-port"); err == nil {
		t.Error("Expected error for non-numeric env port")
	}
	if _, err := ResolvePort(0, "70000"); err == nil {
		t.Error("Expected error for out-of-range env port")
	}
	if _, err := ResolvePort(-1, ""); err == nil {
		t.Error("Expected error for negative override")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GPMDP_API_PORT", "")
	t.Setenv("PLAYBACK_BACKEND", "")
	t.Setenv("GPMDP_HOSTNAME", "test-host")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != DefaultAPIPort {
		t.Errorf("Expected default port %d, got %d", DefaultAPIPort, cfg.APIPort)
	}
	if cfg.Backend != BackendMPV {
		t.Errorf("Expected mpv backend by default, got %s", cfg.Backend)
	}
	if cfg.Hostname != "test-host" {
		t.Errorf("Expected hostname from env, got %s", cfg.Hostname)
	}
	if cfg.ForceEnable {
		t.Error("ForceEnable should default to false")
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("GPMDP_API_PORT", "6000")
	t.Setenv("PLAYBACK_BACKEND", "mpv")
	t.Setenv("DATA_DIR", "/tmp/from-env")

	cfg, err := Load([]string{"--api-port", "7000", "--backend", "MPD", "--data", "/tmp/from-flag", "--enable"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIPort != 7000 {
		t.Errorf("Expected flag port 7000, got %d", cfg.APIPort)
	}
	if cfg.Backend != BackendMPD {
		t.Errorf("Expected mpd backend, got %s", cfg.Backend)
	}
	if cfg.DataDir != "/tmp/from-flag" {
		t.Errorf("Expected flag data dir, got %s", cfg.DataDir)
	}
	if !cfg.ForceEnable {
		t.Error("Expected ForceEnable from --enable")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PLAYBACK_BACKEND", "vlc")
	if _, err := Load(nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing .env should not be an error, got %v", err)
	}
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GPMDP_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GPMDP_TEST_DOTENV", "")
	os.Unsetenv("GPMDP_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("GPMDP_TEST_DOTENV"); got != "loaded" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}
