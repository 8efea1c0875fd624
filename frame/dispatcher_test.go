package frame

import (
	"errors"
	"testing"

	"framepipe/gfx/gbi"
	"framepipe/hal"
)

func TestDispatcherWritesBackBeforeStart(t *testing.T) {
	r := newRig(t, nil)
	target, _ := r.swap.BuildTarget()
	if err := r.builder.Build(meshOnly(r, 2), target); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.mem.DirtyLines() == 0 {
		t.Fatalf("build left no dirty lines")
	}
	if err := r.disp.Submit(r.builder.List()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := r.cop.dirtyAtStart[0]; got != 0 {
		t.Fatalf("%d dirty lines at StartTask, want 0", got)
	}
	if !r.cop.sealedAt[0] {
		t.Fatalf("list not sealed while task outstanding")
	}
	task := r.disp.Task()
	if task.Type != hal.TaskGfx || task.Data.Addr != r.builder.List().Addr() {
		t.Fatalf("task = %+v", task)
	}
	if task.Flags&hal.TaskDPWait == 0 {
		t.Fatalf("task flags = %#x, want DP wait", task.Flags)
	}
	if task.UcodeBoot.Empty() || task.Ucode.Empty() || task.UcodeData.Empty() || task.DramStack.Empty() {
		t.Fatalf("task microcode spans = %+v", task)
	}
	if started := r.cop.tasks[0]; started.UcodeData != task.UcodeData || started.UcodeBoot != task.UcodeBoot {
		t.Fatalf("started task = %+v, want %+v", started, task)
	}
	if err := r.builder.Build(meshOnly(r, 1), target); !errors.Is(err, gbi.ErrListSealed) {
		t.Fatalf("Build while outstanding = %v, want ErrListSealed", err)
	}
	r.disp.Retire()
	if r.builder.List().Sealed() {
		t.Fatalf("list still sealed after Retire")
	}
}

func TestDispatcherReleasesOnStartFailure(t *testing.T) {
	r := newRig(t, nil)
	r.cop.fail = hal.ErrTaskBusy
	target, _ := r.swap.BuildTarget()
	if err := r.builder.Build(meshOnly(r, 1), target); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := r.disp.Submit(r.builder.List()); !errors.Is(err, hal.ErrTaskBusy) {
		t.Fatalf("Submit = %v, want ErrTaskBusy", err)
	}
	if r.builder.List().Sealed() {
		t.Fatalf("list sealed after failed start")
	}
}

func TestDispatcherRejectsOpenList(t *testing.T) {
	r := newRig(t, nil)
	if err := r.disp.Submit(r.builder.List()); !errors.Is(err, gbi.ErrListOpen) {
		t.Fatalf("Submit(empty) = %v, want ErrListOpen", err)
	}
	if len(r.cop.tasks) != 0 {
		t.Fatalf("task started for unterminated list")
	}
}

func TestNewDispatcherValidatesTemplate(t *testing.T) {
	mem := hal.NewRDRAM(4 << 10)
	cop := &fakeCoprocessor{mem: mem}
	full := hal.Task{
		UcodeBoot: hal.Span{Addr: 16, Size: 16},
		Ucode:     hal.Span{Addr: 32, Size: 32},
		UcodeData: hal.Span{Addr: 64, Size: 16},
		DramStack: hal.Span{Addr: 1024, Size: hal.MinDramStackBytes},
	}
	if _, err := NewDispatcher(cop, mem, full); err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	for name, edit := range map[string]func(*hal.Task){
		"no boot":     func(t *hal.Task) { t.UcodeBoot = hal.Span{} },
		"no ucode":    func(t *hal.Task) { t.Ucode = hal.Span{} },
		"no data":     func(t *hal.Task) { t.UcodeData = hal.Span{} },
		"small stack": func(t *hal.Task) { t.DramStack.Size = 64 },
	} {
		tmpl := full
		edit(&tmpl)
		if _, err := NewDispatcher(cop, mem, tmpl); err == nil {
			t.Fatalf("NewDispatcher(%s) = nil, want error", name)
		}
	}
}
