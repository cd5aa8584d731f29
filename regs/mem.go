package regs

import (
	"encoding/binary"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// hostBigEndian is true when native byte order differs from the PCI
// little-endian register order.
var hostBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// Mem is a Backend over memory-mapped device registers. Loads and stores are
// single aligned 32-bit accesses, so the compiler can neither split nor
// merge them. Registers are little-endian regardless of host byte order.
//
// The slice must be at least 4-byte aligned, which holds for any mmap'd
// range.
type Mem []byte

// Load32 reads the register at off.
func (m Mem) Load32(off uint32) uint32 {
	v := atomic.LoadUint32((*uint32)(unsafe.Pointer(&m[off])))
	if hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	return v
}

// Store32 writes v to the register at off.
func (m Mem) Store32(off uint32, v uint32) {
	if hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m[off])), v)
}
