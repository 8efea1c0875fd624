package hal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// CacheLineBytes is the data cache line size. Memory shared with hardware
// must be aligned to it so that a CPU write-back never clobbers device data.
const CacheLineBytes = 16

var ErrOutOfMemory = errors.New("rdram: out of memory")

// RDRAM is the machine's main memory plus the CPU data cache in front of it.
//
// CPU stores go through a write-back cache: they land in dirty lines and are
// invisible to devices until Writeback/WritebackAll. Devices (coprocessor,
// video) access RAM directly. All words are big-endian.
type RDRAM struct {
	mu    sync.Mutex
	ram   []byte
	cpu   []byte
	dirty []uint64

	next uint32
}

// NewRDRAM allocates size bytes of memory, rounded up to a cache line.
func NewRDRAM(size uint32) *RDRAM {
	size = alignUp(size, CacheLineBytes)
	lines := size / CacheLineBytes
	return &RDRAM{
		ram:   make([]byte, size),
		cpu:   make([]byte, size),
		dirty: make([]uint64, (lines+63)/64),
		// Address 0 is never handed out so it can mean "none".
		next: CacheLineBytes,
	}
}

func (m *RDRAM) Size() uint32 { return uint32(len(m.ram)) }

// Alloc reserves size bytes aligned to align (rounded up to a cache line).
func (m *RDRAM) Alloc(size, align uint32) (Region, error) {
	if align < CacheLineBytes {
		align = CacheLineBytes
	}
	if align&(align-1) != 0 {
		return Region{}, fmt.Errorf("rdram: alignment %d is not a power of two", align)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	addr := alignUp(m.next, align)
	end := uint64(addr) + uint64(alignUp(size, CacheLineBytes))
	if end > uint64(len(m.ram)) {
		return Region{}, fmt.Errorf("alloc %d bytes: %w", size, ErrOutOfMemory)
	}
	m.next = uint32(end)
	return Region{mem: m, Addr: addr, Size: size}, nil
}

// Store performs CPU stores of p at addr through the data cache.
func (m *RDRAM) Store(addr uint32, p []byte) {
	if len(p) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkRange(addr, len(p))

	for line := addr / CacheLineBytes; line <= (addr+uint32(len(p))-1)/CacheLineBytes; line++ {
		m.allocateLine(line)
	}
	copy(m.cpu[addr:], p)
}

// Load performs CPU loads into p from addr through the data cache.
func (m *RDRAM) Load(addr uint32, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkRange(addr, len(p))

	for i := range p {
		a := addr + uint32(i)
		if m.isDirty(a / CacheLineBytes) {
			p[i] = m.cpu[a]
		} else {
			p[i] = m.ram[a]
		}
	}
}

// WritebackAll writes every dirty line back to RAM.
func (m *RDRAM) WritebackAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for w, word := range m.dirty {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &^= 1 << b
			m.writebackLine(uint32(w*64 + b))
		}
		m.dirty[w] = 0
	}
}

// Writeback writes the dirty lines covering [addr, addr+n) back to RAM.
func (m *RDRAM) Writeback(addr, n uint32) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkRange(addr, int(n))

	for line := addr / CacheLineBytes; line <= (addr+n-1)/CacheLineBytes; line++ {
		if !m.isDirty(line) {
			continue
		}
		m.writebackLine(line)
		m.dirty[line/64] &^= 1 << (line % 64)
	}
}

// DirtyLines reports how many cache lines hold data not yet in RAM.
func (m *RDRAM) DirtyLines() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.dirty {
		n += bits.OnesCount64(w)
	}
	return n
}

// DeviceRead copies RAM contents into p, bypassing the CPU cache.
func (m *RDRAM) DeviceRead(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(addr, len(p)) {
		return fmt.Errorf("device read %#x+%d: address out of range", addr, len(p))
	}
	copy(p, m.ram[addr:])
	return nil
}

// DeviceSpan returns RAM backing [addr, addr+n) for device-side pixel access.
//
// The span is not guarded by the memory lock; callers own the range by
// protocol (a framebuffer being rendered is never touched by the CPU).
func (m *RDRAM) DeviceSpan(addr, n uint32) ([]byte, error) {
	if !m.inRange(addr, int(n)) {
		return nil, fmt.Errorf("device span %#x+%d: address out of range", addr, n)
	}
	return m.ram[addr : addr+n : addr+n], nil
}

func (m *RDRAM) allocateLine(line uint32) {
	if m.isDirty(line) {
		return
	}
	off := line * CacheLineBytes
	copy(m.cpu[off:off+CacheLineBytes], m.ram[off:off+CacheLineBytes])
	m.dirty[line/64] |= 1 << (line % 64)
}

func (m *RDRAM) writebackLine(line uint32) {
	off := line * CacheLineBytes
	copy(m.ram[off:off+CacheLineBytes], m.cpu[off:off+CacheLineBytes])
}

func (m *RDRAM) isDirty(line uint32) bool {
	return m.dirty[line/64]&(1<<(line%64)) != 0
}

func (m *RDRAM) inRange(addr uint32, n int) bool {
	return n >= 0 && uint64(addr)+uint64(n) <= uint64(len(m.ram))
}

func (m *RDRAM) checkRange(addr uint32, n int) {
	if !m.inRange(addr, n) {
		panic(fmt.Sprintf("rdram: CPU access %#x+%d out of range", addr, n))
	}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// Region is an allocated block of RDRAM addressed by the CPU.
type Region struct {
	mem  *RDRAM
	Addr uint32
	Size uint32
}

// Valid reports whether r was returned by Alloc.
func (r Region) Valid() bool { return r.mem != nil }

// Span returns the device-visible address range of r.
func (r Region) Span() Span { return Span{Addr: r.Addr, Size: r.Size} }

func (r Region) Store(off uint32, p []byte) {
	r.check(off, len(p))
	r.mem.Store(r.Addr+off, p)
}

func (r Region) Load(off uint32, p []byte) {
	r.check(off, len(p))
	r.mem.Load(r.Addr+off, p)
}

func (r Region) PutUint16(off uint32, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	r.Store(off, b[:])
}

func (r Region) PutUint32(off uint32, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	r.Store(off, b[:])
}

func (r Region) Uint32(off uint32) uint32 {
	var b [4]byte
	r.Load(off, b[:])
	return binary.BigEndian.Uint32(b[:])
}

// Writeback flushes the region's dirty lines.
func (r Region) Writeback() { r.mem.Writeback(r.Addr, r.Size) }

func (r Region) check(off uint32, n int) {
	if r.mem == nil {
		panic("rdram: access through invalid region")
	}
	if uint64(off)+uint64(n) > uint64(r.Size) {
		panic(fmt.Sprintf("rdram: region access %d+%d beyond size %d", off, n, r.Size))
	}
}
