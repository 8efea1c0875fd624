package hal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Machine Config
	// Hz is the retrace rate. Zero uses the video mode rate.
	Hz int
}

// Runner is the main control loop of an app. It returns when the work is
// done, on a fatal error, or when ctx is cancelled.
type Runner func(ctx context.Context) error

// RunHeadless runs newApp's loop against a host machine whose retraces are
// driven by a ticker instead of a window.
func RunHeadless(ctx context.Context, cfg HeadlessConfig, newApp func(*Host) (Runner, error)) error {
	h := New(cfg.Machine)
	if cfg.Hz <= 0 {
		cfg.Hz = h.vi.mode.Hz
	}
	if cfg.Hz <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("headless hz %d too high", cfg.Hz)
	}

	run, err := newApp(h)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})
	g.Go(func() error {
		defer close(loopDone)
		return run(ctx)
	})
	g.Go(func() error {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-loopDone:
				return nil
			case <-t.C:
				h.Retrace()
			}
		}
	})
	return g.Wait()
}
