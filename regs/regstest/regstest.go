// Package regstest provides a recording register window for tests.
package regstest

import (
	"fmt"
	"sync"

	"github.com/ardnew/softrng/regs"
)

// Op is the kind of a recorded register access.
type Op uint8

// Access kinds.
const (
	OpRead Op = iota
	OpWrite
)

// String returns "R" or "W".
func (o Op) String() string {
	if o == OpWrite {
		return "W"
	}
	return "R"
}

// Access is one recorded bus cycle.
type Access struct {
	Op    Op
	Off   uint32
	Value uint32 // value returned by a read or stored by a write
}

// String formats the access as "W 0x4=0x12345678".
func (a Access) String() string {
	return fmt.Sprintf("%v %#x=%#x", a.Op, a.Off, a.Value)
}

// Recorder is a register file that records every access in program order.
// It implements both regs.Backend and regs.Window.
type Recorder struct {
	// OnRead, if set, is called before each load with the offset being
	// read. It runs without the recorder's lock held and may block.
	OnRead func(off uint32)

	// Next, if set, supplies the value for each load instead of the
	// register file.
	Next func(off uint32) uint32

	mu   sync.Mutex
	file map[uint32]uint32
	log  []Access
}

var (
	_ regs.Backend = (*Recorder)(nil)
	_ regs.Window  = (*Recorder)(nil)
)

// NewRecorder returns an empty recorder; unset registers read as zero.
func NewRecorder() *Recorder {
	return &Recorder{file: make(map[uint32]uint32)}
}

// Set presets a register value without recording an access.
func (r *Recorder) Set(off, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.file[off] = v
}

// Get returns a register value without recording an access.
func (r *Recorder) Get(off uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file[off]
}

// Load32 implements regs.Backend.
func (r *Recorder) Load32(off uint32) uint32 {
	if r.OnRead != nil {
		r.OnRead(off)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.file[off]
	if r.Next != nil {
		v = r.Next(off)
	}
	r.log = append(r.log, Access{Op: OpRead, Off: off, Value: v})
	return v
}

// Store32 implements regs.Backend.
func (r *Recorder) Store32(off uint32, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.file[off] = v
	r.log = append(r.log, Access{Op: OpWrite, Off: off, Value: v})
}

// Read32 implements regs.Window.
func (r *Recorder) Read32(off uint32) uint32 { return r.Load32(off) }

// Write32 implements regs.Window.
func (r *Recorder) Write32(off uint32, v uint32) { r.Store32(off, v) }

// Accesses returns a copy of the recorded accesses.
func (r *Recorder) Accesses() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.log...)
}

// Count returns the number of recorded accesses.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Reset discards the recorded accesses, keeping register values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
