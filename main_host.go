package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"framepipe/app"
	"framepipe/hal"
	"framepipe/internal/buildinfo"
)

func main() {
	def := app.DefaultConfig()
	var fl app.Config
	var configPath string
	var version bool
	flag.StringVar(&configPath, "config", "", "Load settings from a TOML file; flags override it.")
	flag.BoolVar(&fl.Headless, "headless", def.Headless, "Run without a window.")
	flag.IntVar(&fl.Hz, "hz", def.Hz, "Retrace rate in headless mode.")
	flag.Uint64Var(&fl.Frames, "frames", def.Frames, "Stop after N displayed frames (0 = run forever).")
	flag.Float64Var(&fl.AngleStep, "angle-step", def.AngleStep, "Rotation per frame in degrees.")
	flag.StringVar(&fl.OverlayText, "overlay", def.OverlayText, "Banner text composited onto every frame.")
	flag.StringVar(&fl.OverlayFile, "overlay-file", def.OverlayFile, "Raw RGBA5551 banner written by mkbanner.")
	flag.StringVar(&fl.LogLevel, "log-level", def.LogLevel, "Log level: debug, info, warn or error.")
	flag.StringVar(&fl.DumpDir, "dump-dir", def.DumpDir, "Write scanned-out frames to this directory as BMP.")
	flag.Uint64Var(&fl.DumpEvery, "dump-every", def.DumpEvery, "Dump every Nth frame.")
	flag.Uint64Var(&fl.StatsEvery, "stats-every", def.StatsEvery, "Log frame statistics every N frames (0 = never).")
	flag.BoolVar(&version, "version", false, "Print the build version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.Short())
		return
	}

	cfg := def
	if configPath != "" {
		if err := app.LoadConfig(configPath, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "headless":
			cfg.Headless = fl.Headless
		case "hz":
			cfg.Hz = fl.Hz
		case "frames":
			cfg.Frames = fl.Frames
		case "angle-step":
			cfg.AngleStep = fl.AngleStep
		case "overlay":
			cfg.OverlayText = fl.OverlayText
		case "overlay-file":
			cfg.OverlayFile = fl.OverlayFile
		case "log-level":
			cfg.LogLevel = fl.LogLevel
		case "dump-dir":
			cfg.DumpDir = fl.DumpDir
		case "dump-every":
			cfg.DumpEvery = fl.DumpEvery
		case "stats-every":
			cfg.StatsEvery = fl.StatsEvery
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	newApp := func(h *hal.Host) (hal.Runner, error) {
		a, err := app.New(h, cfg)
		if err != nil {
			return nil, err
		}
		return a.Run, nil
	}

	var err error
	if cfg.Headless {
		err = hal.RunHeadless(ctx, hal.HeadlessConfig{Hz: cfg.Hz}, newApp)
	} else {
		err = hal.RunWindow(ctx, hal.Config{}, newApp)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
