package driver

import "fmt"

// Command is an ioctl-style request number.
//
// The encoding follows the Linux generic ioctl layout:
//
//	bits 0-7:   command number (nr)
//	bits 8-15:  ioctl type (type)
//	bits 16-29: argument size (size)
//	bits 30-31: direction (dir)
type Command uint32

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// ioc constructs a command from direction, type, number, and size.
func ioc(dir, typ, nr, size uint32) Command {
	return Command(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// ior constructs a read command.
func ior(typ, nr, size uint32) Command { return ioc(iocRead, typ, nr, size) }

// iow constructs a write command.
func iow(typ, nr, size uint32) Command { return ioc(iocWrite, typ, nr, size) }

// rngType is the ioctl type character of the RNG commands.
const rngType = 'q'

// RNG commands.
var (
	CmdRand32 = ior(rngType, 1, 4) // 0x80047101
	CmdSeed   = iow(rngType, 1, 4) // 0x40047101
	CmdRand64 = ior(rngType, 2, 8) // 0x80087102
)

// Dir returns the transfer direction bits.
func (c Command) Dir() uint32 { return uint32(c) >> iocDirShift & (1<<iocDirBits - 1) }

// Type returns the ioctl type character.
func (c Command) Type() uint32 { return uint32(c) >> iocTypeShift & (1<<iocTypeBits - 1) }

// Nr returns the command number.
func (c Command) Nr() uint32 { return uint32(c) >> iocNRShift & (1<<iocNRBits - 1) }

// Size returns the argument size in bytes.
func (c Command) Size() uint32 { return uint32(c) >> iocSizeShift & (1<<iocSizeBits - 1) }

// Kind classifies the command.
func (c Command) Kind() Kind {
	switch c {
	case CmdSeed:
		return KindSeed
	case CmdRand32:
		return KindRand32
	case CmdRand64:
		return KindRand64
	default:
		return KindUnknown
	}
}

// String returns the command name, or its hex value if unrecognized.
func (c Command) String() string {
	if k := c.Kind(); k != KindUnknown {
		return k.String()
	}
	return fmt.Sprintf("0x%08x", uint32(c))
}

// Kind is the decoded operation of a Command.
type Kind uint8

// Command kinds.
const (
	KindUnknown Kind = iota
	KindSeed
	KindRand32
	KindRand64
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSeed:
		return "seed"
	case KindRand32:
		return "rand32"
	case KindRand64:
		return "rand64"
	default:
		return "unknown"
	}
}

// ArgSize returns the buffer length the kind transfers.
func (k Kind) ArgSize() int {
	switch k {
	case KindSeed, KindRand32:
		return 4
	case KindRand64:
		return 8
	default:
		return 0
	}
}

// Reads reports whether the kind copies a value out to the caller.
func (k Kind) Reads() bool {
	return k == KindRand32 || k == KindRand64
}

// ParseKind parses a kind name as returned by Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindSeed; k <= KindRand64; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// Command returns the command number of the kind, or 0 for KindUnknown.
func (k Kind) Command() Command {
	switch k {
	case KindSeed:
		return CmdSeed
	case KindRand32:
		return CmdRand32
	case KindRand64:
		return CmdRand64
	default:
		return 0
	}
}
