package kernel

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// HaltInfo describes the fatal error that stopped the machine.
type HaltInfo struct {
	Err   error
	Stack []byte
}

// Halter records the first fatal error of a machine and runs its handler
// once. The zero value is ready to use.
type Halter struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(HaltInfo)
}

// NewHalter returns a halter running fn on the first halt.
func NewHalter(fn func(HaltInfo)) *Halter {
	h := &Halter{}
	h.SetHandler(fn)
	return h
}

// Halted reports whether Halt has been called.
func (h *Halter) Halted() bool { return h.active.Load() }

// SetHandler installs the halt handler. It must not panic.
func (h *Halter) SetHandler(fn func(HaltInfo)) { h.handler.Store(fn) }

// Halt records err and runs the handler. Only the first call has any
// effect.
func (h *Halter) Halt(err error) {
	h.once.Do(func() {
		h.active.Store(true)
		info := HaltInfo{Err: err, Stack: debug.Stack()}
		if v := h.handler.Load(); v != nil {
			if fn, ok := v.(func(HaltInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

var process Halter

// Halted reports whether the process-wide Halt has been called.
func Halted() bool { return process.Halted() }

// SetHaltHandler installs a process-wide halt handler.
//
// The handler is invoked at most once (on the first halt). It must not panic.
func SetHaltHandler(fn func(HaltInfo)) { process.SetHandler(fn) }

// Halt records a fatal error and runs the process-wide halt handler once.
func Halt(err error) { process.Halt(err) }
