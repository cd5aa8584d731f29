package regs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softrng/pkg"
)

// Backend performs single 32-bit bus cycles at byte offsets. Implementations
// need not check bounds; Mapping does.
type Backend interface {
	Load32(off uint32) uint32
	Store32(off uint32, v uint32)
}

// Window is the register accessor used by request handling.
type Window interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// Mapping is a live, bounds-checked view of a device's register window.
//
// Mapping is safe for concurrent use. It does not serialize accesses; two
// callers may interleave their bus cycles.
type Mapping struct {
	name  string
	b     Backend
	size  uint32
	live  atomic.Bool
	unmap func() error

	once sync.Once
	err  error
}

var _ Window = (*Mapping)(nil)

// NewMapping returns a live mapping of size bytes over b. The unmap function,
// if not nil, is called exactly once by Unmap to release the backing range.
func NewMapping(name string, b Backend, size uint32, unmap func() error) *Mapping {
	m := &Mapping{name: name, b: b, size: size, unmap: unmap}
	m.live.Store(true)
	return m
}

// Name returns the mapping's name (typically the device address and BAR).
func (m *Mapping) Name() string { return m.name }

// Size returns the length of the mapped window in bytes.
func (m *Mapping) Size() uint32 { return m.size }

// Live reports whether the mapping has not been unmapped.
func (m *Mapping) Live() bool { return m.live.Load() }

// Read32 performs one 32-bit load at off.
func (m *Mapping) Read32(off uint32) uint32 {
	m.check("read32", off)
	return m.b.Load32(off)
}

// Write32 performs one 32-bit store of v at off.
func (m *Mapping) Write32(off uint32, v uint32) {
	m.check("write32", off)
	m.b.Store32(off, v)
}

// Unmap revokes the mapping and releases the backing range. It is
// idempotent; later calls return the first call's result.
func (m *Mapping) Unmap() error {
	m.once.Do(func() {
		m.live.Store(false)
		if m.unmap != nil {
			m.err = m.unmap()
		}
		pkg.LogDebug(pkg.ComponentRegs, "window unmapped", "name", m.name, "error", m.err)
	})
	return m.err
}

func (m *Mapping) check(op string, off uint32) {
	if !m.live.Load() {
		panic(fmt.Errorf("%w: %s %s at %#x", pkg.ErrUnmapped, m.name, op, off))
	}
	if off%4 != 0 || uint64(off)+4 > uint64(m.size) {
		panic(fmt.Errorf("%w: %s %s at %#x (size %#x)", pkg.ErrOutOfRange, m.name, op, off, m.size))
	}
}

// ReadRandom64 reads Random64Lo then Random64Hi and returns (high << 32) | low.
// The two loads are separate bus cycles and may observe different device
// states.
func ReadRandom64(w Window) uint64 {
	lo := w.Read32(Random64Lo)
	hi := w.Read32(Random64Hi)
	return uint64(hi)<<32 | uint64(lo)
}
