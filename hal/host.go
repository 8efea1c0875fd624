package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// DefaultMemoryBytes is the RAM size of the simulated machine.
const DefaultMemoryBytes = 4 << 20

// Config describes the simulated machine.
type Config struct {
	Mode        VideoMode
	MemoryBytes uint32
	LogOutput   io.Writer
}

// Host is the simulated machine: RAM with a write-back CPU cache, a
// coprocessor running graphics tasks and a video scan-out engine. It
// implements HAL.
type Host struct {
	logger *hostLogger
	mem    *RDRAM
	rcp    *rcp
	vi     *video

	events [EventVI + 1]atomic.Value // func()
	fault  atomic.Value              // func(error)
}

var _ HAL = (*Host)(nil)

// New returns a host machine.
func New(cfg Config) *Host {
	if cfg.Mode.Width <= 0 || cfg.Mode.Height <= 0 || cfg.Mode.Format.BytesPerPixel() == 0 {
		cfg.Mode = ModeNTSC320x240
	}
	if cfg.MemoryBytes == 0 {
		cfg.MemoryBytes = DefaultMemoryBytes
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stdout
	}

	h := &Host{
		logger: &hostLogger{w: cfg.LogOutput},
		mem:    NewRDRAM(cfg.MemoryBytes),
	}
	h.rcp = newRCP(h.mem, cfg.Mode, h.raise, h.raiseFault)
	h.vi = newVideo(h.mem, cfg.Mode, h.raise)
	return h
}

func (h *Host) Logger() Logger           { return h.logger }
func (h *Host) Memory() *RDRAM           { return h.mem }
func (h *Host) Coprocessor() Coprocessor { return h.rcp }
func (h *Host) Video() Video             { return h.vi }

func (h *Host) SetEventHandler(ev Event, fn func()) {
	if ev == 0 || int(ev) >= len(h.events) {
		return
	}
	h.events[ev].Store(fn)
}

func (h *Host) SetFaultHandler(fn func(error)) {
	h.fault.Store(fn)
}

// Retrace runs one vertical retrace and returns the frame scanned out.
func (h *Host) Retrace() Scanout { return h.vi.retrace() }

// LastScanout returns the most recently scanned-out frame.
func (h *Host) LastScanout() Scanout { return h.vi.lastScanout() }

// AddScanoutSink registers fn to receive a copy of every scanned-out frame.
// fn runs on the video domain and must not block.
func (h *Host) AddScanoutSink(fn func(Scanout)) { h.vi.addSink(fn) }

// CoprocessorBusy reports whether a task is outstanding.
func (h *Host) CoprocessorBusy() bool { return h.rcp.Busy() }

func (h *Host) raise(ev Event) {
	if v := h.events[ev].Load(); v != nil {
		if fn, ok := v.(func()); ok && fn != nil {
			fn()
		}
	}
}

func (h *Host) raiseFault(err error) {
	if v := h.fault.Load(); v != nil {
		if fn, ok := v.(func(error)); ok && fn != nil {
			fn(err)
			return
		}
	}
	h.logger.WriteLineString(fmt.Sprintf("hal: unhandled fault: %v", err))
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
