package gbi

import (
	"errors"
	"fmt"
)

// MaxCommands is the capacity of a frame's command list. It bounds the
// worst-case frame content; scenes that need more are rejected at build time.
const MaxCommands = 32

var (
	ErrListFull   = errors.New("command list full")
	ErrListSealed = errors.New("command list sealed by outstanding task")
	ErrListOpen   = errors.New("command list not terminated")
)

// Store is the CPU-side view of the memory backing a list.
type Store interface {
	Store(off uint32, p []byte)
}

// CommandList is a fixed-capacity, append-only sequence of records written
// straight into coprocessor-visible memory.
//
// The list is owned by its builder until Seal; after Seal it is read-only
// until Release, which the owner calls once the task referencing it retired.
type CommandList struct {
	store Store
	addr  uint32

	n      int
	last   Gfx
	sealed bool
}

// NewCommandList wraps store, which must hold MaxCommands records at addr.
func NewCommandList(store Store, addr, size uint32) (*CommandList, error) {
	if store == nil {
		return nil, fmt.Errorf("command list: nil store")
	}
	if size < MaxCommands*CommandBytes {
		return nil, fmt.Errorf("command list: store of %d bytes cannot hold %d commands", size, MaxCommands)
	}
	return &CommandList{store: store, addr: addr}, nil
}

// Reset empties the list for a new frame.
func (l *CommandList) Reset() error {
	if l.sealed {
		return ErrListSealed
	}
	l.n = 0
	l.last = Gfx{}
	return nil
}

// Len returns the number of records appended.
func (l *CommandList) Len() int { return l.n }

// Free returns how many more records fit.
func (l *CommandList) Free() int { return MaxCommands - l.n }

// Addr returns the device address of the first record.
func (l *CommandList) Addr() uint32 { return l.addr }

// SizeBytes returns the encoded size of the appended records.
func (l *CommandList) SizeBytes() uint32 { return uint32(l.n * CommandBytes) }

// Last returns the most recently appended record.
func (l *CommandList) Last() Gfx { return l.last }

// Terminated reports whether the final record is the end marker.
func (l *CommandList) Terminated() bool { return l.n > 0 && l.last.Op() == OpEndDL }

func (l *CommandList) Sealed() bool { return l.sealed }

// Append adds records in order. It fails without writing anything if they
// do not all fit.
func (l *CommandList) Append(cmds ...Gfx) error {
	if l.sealed {
		return ErrListSealed
	}
	if len(cmds) > l.Free() {
		return fmt.Errorf("append %d records with %d free: %w", len(cmds), l.Free(), ErrListFull)
	}
	var b [CommandBytes]byte
	for _, c := range cmds {
		c.PutBytes(b[:])
		l.store.Store(uint32(l.n*CommandBytes), b[:])
		l.n++
		l.last = c
	}
	return nil
}

// Seal marks the list as handed to hardware.
func (l *CommandList) Seal() error {
	if l.sealed {
		return ErrListSealed
	}
	if !l.Terminated() {
		return ErrListOpen
	}
	l.sealed = true
	return nil
}

// Release returns ownership to the CPU after the referencing task retired.
func (l *CommandList) Release() { l.sealed = false }
