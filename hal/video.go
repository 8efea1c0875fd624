package hal

import (
	"fmt"
	"slices"
	"sync"
)

// Scanout is one frame as read out of RAM by the video engine at retrace.
type Scanout struct {
	Seq  uint64
	Addr uint32
	Mode VideoMode
	Pix  []byte // RGBA5551, big-endian; owned by the receiver
}

// Pixel returns the packed pixel at (x, y).
func (s Scanout) Pixel(x, y int) uint16 {
	off := y*s.Mode.StrideBytes() + x*2
	if x < 0 || y < 0 || x >= s.Mode.Width || y >= s.Mode.Height || off+1 >= len(s.Pix) {
		return 0
	}
	return uint16(s.Pix[off])<<8 | uint16(s.Pix[off+1])
}

// video simulates the scan-out engine. A buffer registered with
// PresentNextRetrace becomes current at the next retrace; every retrace
// reads the current buffer straight from RAM.
type video struct {
	mem   *RDRAM
	mode  VideoMode
	raise func(Event)

	mu      sync.Mutex
	current uint32
	next    uint32
	pending bool
	seq     uint64
	last    Scanout
	sinks   []func(Scanout)
}

func newVideo(mem *RDRAM, mode VideoMode, raise func(Event)) *video {
	return &video{mem: mem, mode: mode, raise: raise}
}

func (v *video) Mode() VideoMode { return v.mode }

func (v *video) SwapBuffer(addr uint32, when PresentTiming) error {
	if addr == 0 || addr%CacheLineBytes != 0 {
		return fmt.Errorf("swap buffer %#x: misaligned framebuffer", addr)
	}
	if !v.mem.inRange(addr, v.mode.FrameBytes()) {
		return fmt.Errorf("swap buffer %#x: address out of range", addr)
	}

	v.mu.Lock()
	if when == PresentImmediate {
		v.current = addr
		v.pending = false
		v.scanLocked()
		v.mu.Unlock()
		return nil
	}
	v.next = addr
	v.pending = true
	v.mu.Unlock()
	return nil
}

// retrace promotes the registered buffer, scans it out and raises EventVI.
func (v *video) retrace() Scanout {
	v.mu.Lock()
	if v.pending {
		v.current = v.next
		v.pending = false
	}
	v.seq++
	out := v.scanLocked()
	sinks := slices.Clone(v.sinks)
	v.mu.Unlock()

	for _, fn := range sinks {
		fn(cloneScanout(out))
	}
	v.raise(EventVI)
	return cloneScanout(out)
}

func (v *video) scanLocked() Scanout {
	out := Scanout{Seq: v.seq, Addr: v.current, Mode: v.mode}
	if v.current != 0 {
		out.Pix = make([]byte, v.mode.FrameBytes())
		if err := v.mem.DeviceRead(v.current, out.Pix); err != nil {
			out.Pix = nil
		}
	}
	v.last = out
	return out
}

func (v *video) lastScanout() Scanout {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneScanout(v.last)
}

func (v *video) addSink(fn func(Scanout)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sinks = append(v.sinks, fn)
}

func cloneScanout(s Scanout) Scanout {
	if s.Pix != nil {
		s.Pix = append([]byte(nil), s.Pix...)
	}
	return s
}
