//go:build cgo

package hal

import (
	"context"
	"errors"

	"framepipe/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// RunWindow starts a desktop window that displays the scanned-out frame.
// Each window tick is one vertical retrace. It blocks until the window
// closes or Escape is pressed, or when the app loop returns cleanly. An
// app loop error leaves the window up so its halt screen can be read.
func RunWindow(ctx context.Context, cfg Config, newApp func(*Host) (Runner, error)) error {
	h := New(cfg)
	run, err := newApp(h)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := &hostGame{h: h, done: make(chan struct{})}
	go func() {
		g.err = run(ctx)
		close(g.done)
	}()

	mode := h.vi.mode
	ebiten.SetWindowTitle("framepipe (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(mode.Width*2, mode.Height*2)
	ebiten.SetTPS(mode.Hz)
	err = ebiten.RunGame(g)
	cancel()
	<-g.done
	if errors.Is(err, ebiten.Termination) {
		err = nil
	}
	if err == nil {
		err = g.err
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type hostGame struct {
	h     *Host
	done  chan struct{}
	err   error
	rgba  []byte
	fbImg *ebiten.Image
}

func (g *hostGame) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || g.finished() {
		return ebiten.Termination
	}
	g.h.Retrace()
	return nil
}

// finished reports whether the app loop returned cleanly. After a failure
// the window stays open on the halt screen until it is closed.
func (g *hostGame) finished() bool {
	select {
	case <-g.done:
		return g.err == nil || errors.Is(g.err, context.Canceled)
	default:
		return false
	}
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	s := g.h.LastScanout()
	if s.Pix == nil {
		return
	}
	w, h := s.Mode.Width, s.Mode.Height
	if g.fbImg == nil || g.fbImg.Bounds().Dx() != w || g.fbImg.Bounds().Dy() != h {
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(w, h)
		g.rgba = make([]byte, w*h*4)
	}

	ScanoutToRGBA(g.rgba, s)
	g.fbImg.WritePixels(g.rgba)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	m := g.h.vi.mode
	return m.Width, m.Height
}
