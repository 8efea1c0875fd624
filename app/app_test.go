package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framepipe/assets"
	"framepipe/frame"
	"framepipe/hal"

	"golang.org/x/image/bmp"
)

func newTestApp(t *testing.T, cfg Config) (*App, *hal.Host) {
	t.Helper()
	h := hal.New(hal.Config{LogOutput: io.Discard})
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	a, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { frame.SetLogger(nil) })
	return a, h
}

// stepFrames runs n frames by hand, retracing whenever the controller
// waits for one.
func stepFrames(t *testing.T, a *App, h *hal.Host, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctl := a.Controller()
	want := ctl.Stats().Frames + uint64(n)
	for ctl.Stats().Frames < want {
		if ctl.State() == frame.StateAwaitRetrace {
			h.Retrace()
		}
		if err := ctl.Step(ctx); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
}

func TestAppRendersScene(t *testing.T) {
	a, h := newTestApp(t, Config{OverlayText: "test"})
	stepFrames(t, a, h, 3)

	s := h.LastScanout()
	if s.Pix == nil {
		t.Fatalf("nothing scanned out")
	}
	if want := a.Swapper().Buffer(a.Swapper().Active()).Addr; s.Addr != want {
		t.Fatalf("scanout addr = %#x, want active buffer %#x", s.Addr, want)
	}
	if a.Swapper().Active() != 1 {
		t.Fatalf("Active = %d after 3 frames, want 1", a.Swapper().Active())
	}
	overlay := a.Overlay()
	if len(overlay) != s.Mode.StrideBytes()*assets.BannerHeight {
		t.Fatalf("overlay = %d bytes", len(overlay))
	}
	if !bytes.Equal(s.Pix[:len(overlay)], overlay) {
		t.Fatalf("scanout does not start with the overlay")
	}

	shaded := s.Pixel(96, 120)
	textured := s.Pixel(224, 120)
	if shaded == clearColor || textured == clearColor {
		t.Fatalf("quads missing: shaded %#04x textured %#04x", shaded, textured)
	}
	if corner := s.Pixel(5, s.Mode.Height-5); corner != clearColor {
		t.Fatalf("corner = %#04x, want clear %#04x", corner, clearColor)
	}
	if got := a.Controller().Scene().Angle; got != frame.Degrees(6) {
		t.Fatalf("angle = %v, want 6", got.Degrees())
	}
}

func TestAppQuadsSpinInPlace(t *testing.T) {
	a, h := newTestApp(t, Config{})
	for frames := 0; frames < 90; frames += 15 {
		stepFrames(t, a, h, 15)
		s := h.LastScanout()
		angle := a.Controller().Scene().Angle.Degrees()
		for _, x := range []int{96, 224} {
			if p := s.Pixel(x, 120); p == clearColor {
				t.Fatalf("quad centre (%d,120) clear at %v degrees", x, angle)
			}
		}
		if p := s.Pixel(160, 120); p != clearColor {
			t.Fatalf("screen centre = %#04x at %v degrees, want clear", p, angle)
		}
	}
}

func TestAppRunHeadless(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var a *App
	err := hal.RunHeadless(ctx, hal.HeadlessConfig{Machine: hal.Config{LogOutput: io.Discard}, Hz: 500},
		func(h *hal.Host) (hal.Runner, error) {
			var err error
			a, err = New(h, Config{Frames: 4, LogLevel: "error", DumpDir: dir, DumpEvery: 1})
			if err != nil {
				return nil, err
			}
			return a.Run, nil
		})
	t.Cleanup(func() { frame.SetLogger(nil) })
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if got := a.Controller().Stats().Frames; got != 4 {
		t.Fatalf("Frames = %d, want 4", got)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.bmp"))
	if len(files) == 0 {
		t.Fatalf("no frames dumped")
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("bmp.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("dump bounds = %v", b)
	}
}

func TestAppHaltsOnHardwareFault(t *testing.T) {
	// Every app owns its halt state: a second faulting app still gets a
	// halt screen.
	for range 2 {
		a, h := newTestApp(t, Config{})
		a.ucode.Store(0, []byte("JUNK"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.Run(ctx)
		cancel()
		if !errors.Is(err, frame.ErrHalted) || !errors.Is(err, hal.ErrBadMicrocode) || !errors.Is(err, errHardwareFault) {
			t.Fatalf("Run = %v, want halted hardware fault", err)
		}
		if a.Controller().State() != frame.StateHalted {
			t.Fatalf("State = %v, want HALTED", a.Controller().State())
		}
		if !a.halter.Halted() {
			t.Fatalf("app not halted")
		}

		s := h.LastScanout()
		if s.Addr != a.Swapper().Buffer(a.Swapper().Active()).Addr {
			t.Fatalf("halt screen not presented")
		}
		bg := assets.Pack(haltBackground)
		if got := s.Pixel(s.Mode.Width-1, s.Mode.Height-1); got != bg {
			t.Fatalf("halt background = %#04x, want %#04x", got, bg)
		}
	}
}

func TestAppStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo world", 5)
	if p != "héllo" || r != " world" {
		t.Fatalf("takeRunes = %q, %q", p, r)
	}
	if p, r := takeRunes("ab", 5); p != "ab" || r != "" {
		t.Fatalf("takeRunes = %q, %q", p, r)
	}
}
