package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config controls the demo. Zero values are replaced by DefaultConfig's.
type Config struct {
	Headless bool `toml:"headless"`
	// Hz is the headless retrace rate.
	Hz int `toml:"hz"`
	// Frames stops the loop after N displayed frames; zero runs forever.
	Frames uint64 `toml:"frames"`
	// AngleStep is the rotation per frame in degrees.
	AngleStep float64 `toml:"angle_step"`

	OverlayText string `toml:"overlay_text"`
	// OverlayFile is a raw RGBA5551 strip written by mkbanner. It wins
	// over OverlayText.
	OverlayFile string `toml:"overlay_file"`

	LogLevel string `toml:"log_level"`
	// DumpDir receives a BMP of every DumpEvery-th scanned-out frame.
	DumpDir    string `toml:"dump_dir"`
	DumpEvery  uint64 `toml:"dump_every"`
	StatsEvery uint64 `toml:"stats_every"`
}

func DefaultConfig() Config {
	return Config{
		Hz:          60,
		AngleStep:   2,
		OverlayText: "framepipe",
		LogLevel:    "info",
		DumpEvery:   60,
		StatsEvery:  300,
	}
}

// LoadConfig decodes the TOML file at path over cfg. Unknown keys are an
// error.
func LoadConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Hz <= 0 {
		c.Hz = d.Hz
	}
	if c.AngleStep == 0 {
		c.AngleStep = d.AngleStep
	}
	if c.DumpEvery == 0 {
		c.DumpEvery = d.DumpEvery
	}
	return c
}
