package frame

import (
	"context"
	"errors"
	"testing"

	"framepipe/gfx/gbi"
)

func TestControllerFrames(t *testing.T) {
	r := newRig(t, nil)
	const n = 6
	r.frames(t, n)

	if got := r.ctl.Stats().Frames; got != n {
		t.Fatalf("Frames = %d, want %d", got, n)
	}
	if len(r.cop.tasks) != n || len(r.vid.swaps) != n {
		t.Fatalf("tasks = %d swaps = %d, want %d", len(r.cop.tasks), len(r.vid.swaps), n)
	}
	for i, cmds := range r.cop.lists {
		want := r.swap.Buffer((i + 1) % 2).Addr
		if r.vid.swaps[i] != want {
			t.Fatalf("frame %d registered %#x, want %#x", i+1, r.vid.swaps[i], want)
		}
		if last := cmds[len(cmds)-1].Op(); last != gbi.OpEndDL {
			t.Fatalf("frame %d ends with %v", i+1, last)
		}
		if r.cop.tasks[i].Data.Size != uint32(len(cmds)*gbi.CommandBytes) {
			t.Fatalf("frame %d data size %d for %d records", i+1, r.cop.tasks[i].Data.Size, len(cmds))
		}
	}
	if len(r.vid.scans) != n {
		t.Fatalf("scans = %d, want %d", len(r.vid.scans), n)
	}
	for i, sc := range r.vid.scans {
		if sc.addr != r.vid.swaps[i] {
			t.Fatalf("scan %d shows %#x, want %#x", i, sc.addr, r.vid.swaps[i])
		}
		for j := range r.overlay {
			if sc.pix[j] != r.overlay[j] {
				t.Fatalf("scan %d overlay byte %d = %#x, want %#x", i, j, sc.pix[j], r.overlay[j])
			}
		}
		if sc.pix[len(r.overlay)] != paint {
			t.Fatalf("scan %d missing rendered pixels", i)
		}
	}
	if r.ctl.State() != StateBuild {
		t.Fatalf("State = %v, want BUILD", r.ctl.State())
	}
}

func TestControllerDiscardsStaleRetrace(t *testing.T) {
	r := newRig(t, nil)
	for r.ctl.State() != StateRegister {
		if err := r.ctl.Step(t.Context()); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	// A retrace before the buffer is registered shows the old frame.
	r.vid.vblank()
	if err := r.ctl.Step(t.Context()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.retrace.Pending() {
		t.Fatalf("stale retrace still pending after register")
	}
}

func TestControllerHaltsOnOversizedScene(t *testing.T) {
	var r *rig
	r = newRig(t, SceneFunc(func() (*Scene, error) {
		return meshOnly(r, gbi.MaxCommands), nil
	}))
	err := r.ctl.Step(t.Context())
	if !errors.Is(err, ErrHalted) || !errors.Is(err, gbi.ErrListFull) {
		t.Fatalf("Step = %v, want ErrHalted wrapping ErrListFull", err)
	}
	if r.ctl.State() != StateHalted {
		t.Fatalf("State = %v, want HALTED", r.ctl.State())
	}
	if len(r.cop.tasks) != 0 || len(r.vid.swaps) != 0 {
		t.Fatalf("hardware touched: %d tasks, %d swaps", len(r.cop.tasks), len(r.vid.swaps))
	}
	if again := r.ctl.Step(t.Context()); again != err {
		t.Fatalf("second Step = %v, want %v", again, err)
	}
	if run := r.ctl.Run(t.Context()); run != err {
		t.Fatalf("Run = %v, want %v", run, err)
	}
}

func TestControllerHaltsOnSourceError(t *testing.T) {
	boom := errors.New("boom")
	r := newRig(t, SceneFunc(func() (*Scene, error) { return nil, boom }))
	if err := r.ctl.Step(t.Context()); !errors.Is(err, boom) {
		t.Fatalf("Step = %v, want %v", err, boom)
	}
	if !errors.Is(r.ctl.Err(), ErrHalted) {
		t.Fatalf("Err = %v, want ErrHalted", r.ctl.Err())
	}
}

func TestControllerHaltsWithCancelCause(t *testing.T) {
	r := newRig(t, nil)
	r.cop.silent = true
	cause := errors.New("coprocessor fault")
	ctx, cancel := context.WithCancelCause(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.ctl.Run(ctx) }()
	cancel(cause)
	err := <-done
	if !errors.Is(err, ErrHalted) || !errors.Is(err, cause) {
		t.Fatalf("Run = %v, want ErrHalted wrapping %v", err, cause)
	}
}

func TestRunFramesStopsAfterCount(t *testing.T) {
	r := newRig(t, nil)
	// Pulse the retrace on every wait so the loop can run unattended.
	ctl, err := NewController(Config{
		Source:     r.demoScene(),
		Builder:    r.builder,
		Dispatcher: r.disp,
		Swapper:    r.swap,
		RasterDone: r.raster,
		Retrace: waiterFunc(func(ctx context.Context) error {
			r.vid.vblank()
			return r.retrace.Wait(ctx)
		}),
		StatsEvery: 2,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	r.ctl = ctl
	if err := r.ctl.RunFrames(t.Context(), 3); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}
	if got := r.ctl.Stats().Frames; got != 3 {
		t.Fatalf("Frames = %d, want 3", got)
	}
	if err := r.ctl.RunFrames(t.Context(), 2); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}
	if got := r.ctl.Stats().Frames; got != 5 {
		t.Fatalf("Frames = %d, want 5", got)
	}
}

type waiterFunc func(ctx context.Context) error

func (f waiterFunc) Wait(ctx context.Context) error { return f(ctx) }

func TestStateString(t *testing.T) {
	if s := StateAwaitRetrace.String(); s != "AWAIT_RETRACE" {
		t.Fatalf("String = %q", s)
	}
	if s := State(42).String(); s != "State(42)" {
		t.Fatalf("String = %q", s)
	}
}
