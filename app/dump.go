package app

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"framepipe/hal"

	"golang.org/x/image/bmp"
)

const dumpQueue = 4

// Dumper writes every Nth scanned-out frame to a directory as BMP. Frames
// arrive on the video domain through Sink and are written by Run; when the
// writer falls behind, frames are dropped rather than stalling the retrace.
type Dumper struct {
	dir   string
	every uint64
	log   *slog.Logger
	ch    chan hal.Scanout
}

func NewDumper(dir string, every uint64, log *slog.Logger) (*Dumper, error) {
	if every == 0 {
		every = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dump dir: %w", err)
	}
	return &Dumper{dir: dir, every: every, log: log, ch: make(chan hal.Scanout, dumpQueue)}, nil
}

// Sink queues s if it is due and shows a buffer. It never blocks.
func (d *Dumper) Sink(s hal.Scanout) {
	if s.Pix == nil || s.Seq%d.every != 0 {
		return
	}
	select {
	case d.ch <- s:
	default:
		d.log.Debug("dump queue full, dropping frame", "seq", s.Seq)
	}
}

// Run writes queued frames until ctx is done, then flushes what is left.
func (d *Dumper) Run(ctx context.Context) error {
	for {
		select {
		case s := <-d.ch:
			if err := d.write(s); err != nil {
				return err
			}
		case <-ctx.Done():
			for {
				select {
				case s := <-d.ch:
					if err := d.write(s); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dumper) write(s hal.Scanout) error {
	name := filepath.Join(d.dir, fmt.Sprintf("frame-%06d.bmp", s.Seq))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteBMP(bw, s); err != nil {
		f.Close()
		return fmt.Errorf("dump %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dump %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dump %s: %w", name, err)
	}
	d.log.Debug("dumped frame", "seq", s.Seq, "file", name)
	return nil
}

// ScanoutImage converts s to an RGBA image.
func ScanoutImage(s hal.Scanout) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Mode.Width, s.Mode.Height))
	hal.ScanoutToRGBA(img.Pix, s)
	return img
}

// WriteBMP encodes s as a BMP image.
func WriteBMP(w io.Writer, s hal.Scanout) error {
	return bmp.Encode(w, ScanoutImage(s))
}
