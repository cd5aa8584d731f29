// Package linux provides a PCI bus implementation for Linux using sysfs.
//
// Devices are discovered under /sys/bus/pci/devices, enabled through their
// "enable" attribute, claimed by taking an exclusive flock on the BAR's
// "resourceN" file, and mapped with mmap on that same file. Hotplug events
// arrive on a NETLINK_KOBJECT_UEVENT socket multiplexed with an eventfd via
// epoll so that Watch can be cancelled promptly. No cgo is required.
//
// # Requirements
//
// Mapping PCI resources through sysfs needs CAP_SYS_ADMIN (in practice,
// root), and the device must not be bound to a kernel driver other than
// one listed in [Options.AllowDrivers] (pci-stub by default). A kernel driver
// owning the device is reported as a region conflict, as is another process
// holding the flock.
//
// # Layout
//
//	/sys/bus/pci/devices/0000:00:04.0/
//	├── vendor        0x1234
//	├── device        0xcafe
//	├── resource      start end flags, one line per BAR
//	├── resource0     mmap-able BAR0
//	├── enable        write 1/0 to enable/disable
//	└── driver ->     bound kernel driver, if any
package linux
