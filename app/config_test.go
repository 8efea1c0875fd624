package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "framepipe.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
hz = 30
frames = 120
angle_step = 1.5
overlay_text = "hello"
log_level = "debug"
`)
	cfg := DefaultConfig()
	if err := LoadConfig(p, &cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Hz != 30 || cfg.Frames != 120 || cfg.AngleStep != 1.5 || cfg.OverlayText != "hello" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.StatsEvery != DefaultConfig().StatsEvery {
		t.Fatalf("StatsEvery = %d, want default", cfg.StatsEvery)
	}
	if l, err := cfg.Level(); err != nil || l != slog.LevelDebug {
		t.Fatalf("Level = %v, %v", l, err)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	p := writeConfig(t, "hertz = 30\n")
	cfg := DefaultConfig()
	if err := LoadConfig(p, &cfg); err == nil {
		t.Fatalf("LoadConfig(unknown key) = nil, want error")
	}
}

func TestConfigLevelRejectsGarbage(t *testing.T) {
	cfg := Config{LogLevel: "loud"}
	if _, err := cfg.Level(); err == nil {
		t.Fatalf("Level(loud) = nil, want error")
	}
}
