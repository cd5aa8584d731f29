// Package bus defines the PCI bus abstraction used by the RNG driver.
//
// The [Bus] interface covers what the driver needs from its platform:
// discovering candidates, watching for hotplug, enabling a device, claiming
// one of its memory BARs exclusively, and mapping the claimed range. The
// driver implements matching, ordering and rollback on top of it.
//
// # Implementations
//
//   - [github.com/ardnew/softrng/bus/linux]: sysfs discovery, flock-based
//     region claims, mmap of resourceN files, netlink uevent hotplug
//   - [github.com/ardnew/softrng/bus/sim]: in-memory bus with a simulated
//     RNG device and fault injection, used by tests and the daemon's
//     simulate mode
//
// # Implementing a Bus
//
// Each step must be independently reversible: Disable undoes Enable,
// ReleaseRegion undoes RequestRegion, and Unmap on the returned mapping
// undoes Map. The driver relies on this to unwind a partially attached
// device in reverse order.
package bus
