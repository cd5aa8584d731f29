package linux

// =============================================================================
// System Paths
// =============================================================================

// SysfsPCIPath is the base path for PCI devices in sysfs.
const SysfsPCIPath = "/sys/bus/pci/devices"

// Attribute file names within a device directory.
const (
	attrVendor   = "vendor"
	attrDevice   = "device"
	attrResource = "resource"
	attrEnable   = "enable"
	attrDriver   = "driver"
)

// resourceFilePrefix prefixes per-BAR resource files ("resource0" ...).
const resourceFilePrefix = "resource"

// DefaultAllowDrivers lists kernel drivers that may be bound to a device
// without counting as an ownership conflict.
var DefaultAllowDrivers = []string{"pci-stub"}

// =============================================================================
// Netlink Constants
// =============================================================================

// ueventGroupKernel is the kernel's uevent multicast group.
const ueventGroupKernel = 1

// UEventBufferSize is the buffer size for netlink messages.
const UEventBufferSize = 4096

// ueventSubsystemPCI is the SUBSYSTEM value of PCI uevents.
const ueventSubsystemPCI = "pci"

// =============================================================================
// Polling Constants
// =============================================================================

// MaxEpollEvents is the maximum events to retrieve per epoll_wait call.
const MaxEpollEvents = 8

// watchBuffer is the hotplug event channel depth.
const watchBuffer = 16
