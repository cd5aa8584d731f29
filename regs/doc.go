// Package regs provides typed access to the RNG peripheral's register window.
//
// A [Mapping] wraps a [Backend] that performs raw 32-bit bus cycles (an
// mmap'd BAR via [Mem], or a simulated device) and adds the checks a raw
// pointer cannot: every access is bounds- and alignment-checked, and every
// access after [Mapping.Unmap] is rejected. Both conditions are broken
// preconditions of the caller, so they panic with an error wrapping
// [pkg.ErrOutOfRange] or [pkg.ErrUnmapped] rather than returning one.
//
// # Register Layout
//
//	0x0  Random32    R   next 32-bit random value
//	0x4  Seed        W   reseed the generator
//	0x8  Random64Lo  R   low half of a 64-bit random value
//	0xC  Random64Hi  R   high half of the same value
//
// [ReadRandom64] reads the low half and then the high half as two separate
// bus cycles. Nothing makes the pair atomic: if the device advances between
// the two loads (for example because another caller read 0x8 in between),
// the result combines halves of two different values.
package regs
