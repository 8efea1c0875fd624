package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrTaskBusy       = errors.New("coprocessor task slot busy")
	ErrBadMicrocode   = errors.New("bad microcode image")
	ErrStackOverflow  = errors.New("display list stack overflow")
	ErrBadCommand     = errors.New("bad display list command")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
	// PixelFormatRGBA5551 is 16bpp: rrrrrgggggbbbbba, stored big-endian.
	PixelFormatRGBA5551
)

// BytesPerPixel returns the storage size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGB565, PixelFormatRGBA5551:
		return 2
	default:
		return 0
	}
}

// VideoMode describes the scan-out configuration.
type VideoMode struct {
	Width  int
	Height int
	Format PixelFormat
	Hz     int
}

// ModeNTSC320x240 is the low-resolution NTSC mode used by the pipeline.
var ModeNTSC320x240 = VideoMode{Width: 320, Height: 240, Format: PixelFormatRGBA5551, Hz: 60}

func (m VideoMode) StrideBytes() int { return m.Width * m.Format.BytesPerPixel() }
func (m VideoMode) FrameBytes() int  { return m.StrideBytes() * m.Height }

// Event identifies a hardware interrupt source.
type Event uint8

const (
	// EventDP is raised when the rasterizer retires a full-sync command.
	EventDP Event = iota + 1
	// EventVI is raised on every vertical retrace.
	EventVI
)

func (e Event) String() string {
	switch e {
	case EventDP:
		return "dp"
	case EventVI:
		return "vi"
	default:
		return "unknown"
	}
}

// PresentTiming selects when a swapped buffer becomes visible.
type PresentTiming uint8

const (
	PresentNextRetrace PresentTiming = iota
	PresentImmediate
)

// Coprocessor accepts graphics tasks.
//
// StartTask must not be called while a previous task is still outstanding.
// Implementations may report ErrTaskBusy, but callers must not rely on it.
type Coprocessor interface {
	StartTask(t *Task) error
}

// Video is the scan-out engine.
type Video interface {
	Mode() VideoMode
	// SwapBuffer registers the framebuffer at addr for presentation.
	SwapBuffer(addr uint32, when PresentTiming) error
}

// Cache is the CPU data cache as seen by code that hands memory to hardware.
type Cache interface {
	WritebackAll()
	Writeback(addr, n uint32)
}

// HAL provides the only contact point between the pipeline and the machine.
type HAL interface {
	Logger() Logger
	Memory() *RDRAM
	Coprocessor() Coprocessor
	Video() Video

	// SetEventHandler installs fn as the interrupt handler for ev.
	// Handlers run on the interrupting domain and must not block.
	SetEventHandler(ev Event, fn func())
	// SetFaultHandler installs fn to receive unrecoverable hardware faults.
	SetFaultHandler(fn func(error))
}
