package sim

import (
	"sync"

	"github.com/ardnew/softrng/regs"
)

// RNG is a register-level model of the RNG peripheral. It is safe for
// concurrent use; each load or store is one atomic bus cycle.
type RNG struct {
	mu    sync.Mutex
	state uint64
	latch uint64
	seeds int
}

var _ regs.Backend = (*RNG)(nil)

// NewRNG returns a model whose generator starts at seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{state: seed}
}

// Load32 implements regs.Backend. Unmapped and write-only offsets read as
// zero.
func (r *RNG) Load32(off uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch off {
	case regs.Random32:
		return uint32(r.next() >> 32)
	case regs.Random64Lo:
		r.latch = r.next()
		return uint32(r.latch)
	case regs.Random64Hi:
		return uint32(r.latch >> 32)
	default:
		return 0
	}
}

// Store32 implements regs.Backend. Writes other than Seed are ignored.
func (r *RNG) Store32(off uint32, v uint32) {
	if off != regs.Seed {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = uint64(v)
	r.seeds++
}

// Seeds returns the number of seed writes observed.
func (r *RNG) Seeds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeds
}

// next advances the generator (splitmix64).
func (r *RNG) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
