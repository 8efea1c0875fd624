package frame

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrHalted wraps the error that stopped a controller. Every Step after a
// failure returns the same wrapped error.
var ErrHalted = errors.New("frame: controller halted")

// State is a controller state.
type State uint8

const (
	StateBuild State = iota
	StateSubmit
	StateAwaitRaster
	StateComposite
	StateRegister
	StateAwaitRetrace
	StateFlip
	StateHalted
)

var stateNames = [...]string{
	StateBuild:        "BUILD",
	StateSubmit:       "SUBMIT",
	StateAwaitRaster:  "AWAIT_RASTER",
	StateComposite:    "COMPOSITE",
	StateRegister:     "REGISTER",
	StateAwaitRetrace: "AWAIT_RETRACE",
	StateFlip:         "FLIP",
	StateHalted:       "HALTED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Waiter blocks until an interrupt-driven signal arrives. kernel.Signal
// implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// drainer is implemented by waiters that can discard a pending signal.
type drainer interface {
	TryWait() bool
}

// signalStats is implemented by waiters that count dropped notifications.
type signalStats interface {
	Stats() (sent, dropped uint64)
}

// Config wires a controller to its collaborators.
type Config struct {
	Source     SceneSource
	Builder    *Builder
	Dispatcher *Dispatcher
	Swapper    *Swapper
	// RasterDone is fed by the rasterizer full-sync interrupt.
	RasterDone Waiter
	// Retrace is fed by the vertical retrace interrupt.
	Retrace Waiter
	// StatsEvery logs frame statistics every N frames; zero disables.
	StatsEvery uint64
}

// Stats are cumulative frame timings.
type Stats struct {
	Frames      uint64
	RasterWait  time.Duration
	RetraceWait time.Duration
	FrameTime   time.Duration
}

// Controller runs the per-frame state machine:
//
//	BUILD -> SUBMIT -> AWAIT_RASTER -> COMPOSITE -> REGISTER -> AWAIT_RETRACE -> FLIP -> BUILD
//
// Any error is fatal and moves the controller to HALTED.
type Controller struct {
	cfg   Config
	state State
	err   error

	scene      *Scene
	target     Target
	rendered   Rendered
	composited Composited
	registered Registered
	displayed  Displayed

	stats      Stats
	frameStart time.Time
	now        func() time.Time
}

// NewController returns a controller in BUILD.
func NewController(cfg Config) (*Controller, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("controller: nil scene source")
	case cfg.Builder == nil || cfg.Dispatcher == nil || cfg.Swapper == nil:
		return nil, errors.New("controller: missing builder, dispatcher or swapper")
	case cfg.RasterDone == nil || cfg.Retrace == nil:
		return nil, errors.New("controller: missing signals")
	}
	return &Controller{cfg: cfg, now: time.Now}, nil
}

// State returns the state the next Step will execute.
func (c *Controller) State() State { return c.state }

// Err returns the halting error, or nil.
func (c *Controller) Err() error { return c.err }

// Stats returns the cumulative frame statistics.
func (c *Controller) Stats() Stats { return c.stats }

// Scene returns the scene of the frame in flight.
func (c *Controller) Scene() *Scene { return c.scene }

// Step performs the current state's action and advances on success.
func (c *Controller) Step(ctx context.Context) error {
	if c.state == StateHalted {
		return c.err
	}

	from := c.state
	next, err := c.step(ctx)
	if err != nil {
		return c.halt(from, err)
	}
	c.state = next
	Logger().DebugContext(ctx, "frame state", "from", from, "to", next, "frame", c.target.Frame())
	return nil
}

func (c *Controller) step(ctx context.Context) (State, error) {
	var err error
	switch c.state {
	case StateBuild:
		c.frameStart = c.now()
		if c.scene, err = c.cfg.Source.NextScene(); err != nil {
			return 0, fmt.Errorf("next scene: %w", err)
		}
		if c.target, err = c.cfg.Swapper.BuildTarget(); err != nil {
			return 0, err
		}
		if err = c.cfg.Builder.Build(c.scene, c.target); err != nil {
			return 0, err
		}
		return StateSubmit, nil

	case StateSubmit:
		if err = c.cfg.Dispatcher.Submit(c.cfg.Builder.List()); err != nil {
			return 0, err
		}
		return StateAwaitRaster, nil

	case StateAwaitRaster:
		start := c.now()
		if err = c.cfg.RasterDone.Wait(ctx); err != nil {
			return 0, fmt.Errorf("wait raster done: %w", err)
		}
		c.stats.RasterWait += c.now().Sub(start)
		c.cfg.Dispatcher.Retire()
		if c.rendered, err = c.cfg.Swapper.Rendered(c.target); err != nil {
			return 0, err
		}
		return StateComposite, nil

	case StateComposite:
		if c.composited, err = c.cfg.Swapper.Composite(c.rendered); err != nil {
			return 0, err
		}
		return StateRegister, nil

	case StateRegister:
		if c.registered, err = c.cfg.Swapper.Register(c.composited); err != nil {
			return 0, err
		}
		// A retrace that fired before the buffer was registered must not
		// satisfy the wait. Draining after SwapBuffer can only cost a frame.
		if d, ok := c.cfg.Retrace.(drainer); ok && d.TryWait() {
			Logger().DebugContext(ctx, "discarded stale retrace", "frame", c.target.Frame())
		}
		return StateAwaitRetrace, nil

	case StateAwaitRetrace:
		start := c.now()
		if err = c.cfg.Retrace.Wait(ctx); err != nil {
			return 0, fmt.Errorf("wait retrace: %w", err)
		}
		c.stats.RetraceWait += c.now().Sub(start)
		if c.displayed, err = c.cfg.Swapper.Displayed(c.registered); err != nil {
			return 0, err
		}
		return StateFlip, nil

	case StateFlip:
		if err = c.cfg.Swapper.Flip(c.displayed); err != nil {
			return 0, err
		}
		c.stats.Frames++
		c.stats.FrameTime += c.now().Sub(c.frameStart)
		if n := c.cfg.StatsEvery; n > 0 && c.stats.Frames%n == 0 {
			c.logStats(ctx)
		}
		return StateBuild, nil
	}
	return 0, fmt.Errorf("unknown state %d", c.state)
}

func (c *Controller) halt(from State, err error) error {
	c.state = StateHalted
	c.err = fmt.Errorf("%w in %s: %w", ErrHalted, from, err)
	Logger().Error("frame controller halted", "state", from, "frame", c.target.Frame(), "err", err)
	return c.err
}

func (c *Controller) logStats(ctx context.Context) {
	s := c.stats
	attrs := []any{
		"frames", s.Frames,
		"active", c.cfg.Swapper.Active(),
		"raster_wait_avg", s.RasterWait / time.Duration(s.Frames),
		"retrace_wait_avg", s.RetraceWait / time.Duration(s.Frames),
		"frame_avg", s.FrameTime / time.Duration(s.Frames),
	}
	if st, ok := c.cfg.RasterDone.(signalStats); ok {
		_, dropped := st.Stats()
		attrs = append(attrs, "raster_dropped", dropped)
	}
	if st, ok := c.cfg.Retrace.(signalStats); ok {
		_, dropped := st.Stats()
		attrs = append(attrs, "retrace_dropped", dropped)
	}
	Logger().InfoContext(ctx, "frame stats", attrs...)
}

// Run steps until ctx is cancelled or an error halts the controller.
func (c *Controller) Run(ctx context.Context) error {
	return c.RunFrames(ctx, 0)
}

// RunFrames steps until n more frames have flipped (n == 0 runs forever),
// ctx is cancelled, or an error halts the controller.
func (c *Controller) RunFrames(ctx context.Context, n uint64) error {
	stop := c.stats.Frames + n
	for {
		if c.state == StateHalted {
			return c.err
		}
		if err := ctx.Err(); err != nil {
			return c.halt(c.state, context.Cause(ctx))
		}
		if err := c.Step(ctx); err != nil {
			return err
		}
		if n > 0 && c.state == StateBuild && c.stats.Frames >= stop {
			return nil
		}
	}
}
