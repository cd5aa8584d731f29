package regs

// Register offsets within BAR0.
const (
	Random32   uint32 = 0x0 // 32-bit random value (read)
	Seed       uint32 = 0x4 // seed (write-only)
	Random64Lo uint32 = 0x8 // low 32 bits of a 64-bit random value (read)
	Random64Hi uint32 = 0xC // high 32 bits of the same value (read)
)

// WindowSize is the minimum BAR length covering every register.
const WindowSize uint32 = 0x10

// Name returns the register name for an offset, or "" if the offset is not
// a register.
func Name(off uint32) string {
	switch off {
	case Random32:
		return "random32"
	case Seed:
		return "seed"
	case Random64Lo:
		return "random64-lo"
	case Random64Hi:
		return "random64-hi"
	default:
		return ""
	}
}
