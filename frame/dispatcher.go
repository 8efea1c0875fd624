package frame

import (
	"errors"
	"fmt"

	"framepipe/gfx/gbi"
	"framepipe/hal"
)

// Dispatcher turns a finished command list into a coprocessor task.
//
// Only one task may be outstanding: Submit must not be called again until
// the raster-done signal for the previous task has been received and
// Retire called. This is not checked.
type Dispatcher struct {
	cop   hal.Coprocessor
	cache hal.Cache
	task  hal.Task

	outstanding *gbi.CommandList
}

// NewDispatcher returns a dispatcher submitting tasks built from tmpl.
// Everything but the data span is fixed for the life of the program. Tasks
// are graphics tasks that wait for the rasterizer to drain.
func NewDispatcher(cop hal.Coprocessor, cache hal.Cache, tmpl hal.Task) (*Dispatcher, error) {
	if cop == nil || cache == nil {
		return nil, errors.New("dispatcher: nil coprocessor or cache")
	}
	switch {
	case tmpl.UcodeBoot.Empty():
		return nil, errors.New("dispatcher: no microcode boot")
	case tmpl.Ucode.Empty():
		return nil, errors.New("dispatcher: no microcode")
	case tmpl.UcodeData.Empty():
		return nil, errors.New("dispatcher: no microcode data")
	}
	if tmpl.DramStack.Size < hal.MinDramStackBytes {
		return nil, fmt.Errorf("dispatcher: dram stack %d bytes, need %d", tmpl.DramStack.Size, hal.MinDramStackBytes)
	}
	tmpl.Type = hal.TaskGfx
	tmpl.Flags |= hal.TaskDPWait
	return &Dispatcher{cop: cop, cache: cache, task: tmpl}, nil
}

// Submit seals l, points the task at it, writes the data cache back and
// starts the task. The write-back is what makes the list, the matrices and
// every other CPU store visible to the coprocessor.
func (d *Dispatcher) Submit(l *gbi.CommandList) error {
	if err := l.Seal(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	d.task.Data = hal.Span{Addr: l.Addr(), Size: l.SizeBytes()}
	d.cache.WritebackAll()
	if err := d.cop.StartTask(&d.task); err != nil {
		l.Release()
		return fmt.Errorf("submit: %w", err)
	}
	d.outstanding = l
	return nil
}

// Retire releases the list of the finished task back to its builder.
// Call it after the raster-done signal.
func (d *Dispatcher) Retire() {
	if d.outstanding != nil {
		d.outstanding.Release()
		d.outstanding = nil
	}
}

// Task returns a copy of the last submitted descriptor.
func (d *Dispatcher) Task() hal.Task { return d.task }
