package bus

import (
	"context"
	"fmt"

	"github.com/ardnew/softrng/regs"
)

// ID is a PCI vendor/device identity pair.
type ID struct {
	Vendor uint16
	Device uint16
}

// String formats the identity as "1234:cafe".
func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Device)
}

// Resource flag bits (subset of the kernel's IORESOURCE_* flags).
const (
	ResourceIO  uint64 = 0x00000100
	ResourceMem uint64 = 0x00000200
)

// MaxBARs is the number of base address registers of a PCI function.
const MaxBARs = 6

// Resource describes one BAR of a device.
type Resource struct {
	Start  uint64 // Bus address of the first byte
	Length uint64 // Length in bytes, zero if unimplemented
	Flags  uint64 // Resource flags
}

// IsMem reports whether the resource is a memory BAR.
func (r Resource) IsMem() bool {
	return r.Length > 0 && r.Flags&ResourceMem != 0
}

// Candidate is a PCI function discovered on the bus.
type Candidate struct {
	Address   string // Bus address, e.g. "0000:00:04.0"
	ID        ID
	Resources [MaxBARs]Resource
}

// Resource returns BAR n, or the zero Resource if n is out of range.
func (c *Candidate) Resource(n int) Resource {
	if n < 0 || n >= MaxBARs {
		return Resource{}
	}
	return c.Resources[n]
}

// Region is an exclusive claim on one BAR of a candidate.
type Region struct {
	Address  string
	BAR      int
	Resource Resource
	Owner    string

	// Handle is the implementation's claim token.
	Handle any
}

// String formats the region as "0000:00:04.0/bar0".
func (r *Region) String() string {
	return fmt.Sprintf("%s/bar%d", r.Address, r.BAR)
}

// Action is a hotplug event kind.
type Action uint8

// Hotplug actions.
const (
	ActionAdd Action = iota + 1
	ActionRemove
)

// String returns "add" or "remove".
func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a hotplug notification. For ActionAdd, Candidate is fully
// populated; for ActionRemove only Candidate.Address is guaranteed.
type Event struct {
	Action    Action
	Candidate Candidate
}

// Bus is the platform interface to a PCI bus.
//
// Methods must be safe for concurrent use.
type Bus interface {
	// Scan returns the candidates currently present on the bus.
	Scan(ctx context.Context) ([]Candidate, error)

	// Watch delivers hotplug events until ctx is cancelled, then closes
	// the channel.
	Watch(ctx context.Context) (<-chan Event, error)

	// Enable enables the device's bus interface (memory decoding).
	Enable(c *Candidate) error

	// Disable reverses Enable.
	Disable(c *Candidate) error

	// RequestRegion claims BAR bar of the device exclusively for owner.
	// A claim held by another owner fails with an error wrapping
	// pkg.ErrRegionBusy.
	RequestRegion(c *Candidate, bar int, owner string) (*Region, error)

	// ReleaseRegion reverses RequestRegion.
	ReleaseRegion(r *Region) error

	// Map maps the claimed region. Unmap on the result releases it.
	Map(r *Region) (*regs.Mapping, error)
}
