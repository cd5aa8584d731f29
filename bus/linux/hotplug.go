//go:build linux

package linux

import (
	"bytes"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softrng/bus"
)

// =============================================================================
// UEvent Types
// =============================================================================

// ueventAction represents a udev action.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
	ueventChange
	ueventBind
	ueventUnbind
)

var ueventActions = map[string]ueventAction{
	"add":    ueventAdd,
	"remove": ueventRemove,
	"change": ueventChange,
	"bind":   ueventBind,
	"unbind": ueventUnbind,
}

// uevent represents a parsed netlink uevent.
type uevent struct {
	action    ueventAction
	devpath   string // DEVPATH value
	subsystem string // SUBSYSTEM value
	driver    string // DRIVER value
	pciID     string // PCI_ID value, "VVVV:DDDD"
	slotName  string // PCI_SLOT_NAME value
}

// =============================================================================
// Hotplug Monitor
// =============================================================================

// hotplugMonitor reads PCI uevents from a netlink socket.
type hotplugMonitor struct {
	fd    int                    // Netlink socket file descriptor
	root  string                 // sysfs device root for add events
	allow []string               // drivers whose bind events re-announce a device
	buf   [UEventBufferSize]byte // Buffer for receiving events
}

// newHotplugMonitor opens a non-blocking uevent socket bound to the kernel
// broadcast group.
func newHotplugMonitor(root string, allow []string) (*hotplugMonitor, error) {
	fd, err := unix.Socket(
		unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		unix.NETLINK_KOBJECT_UEVENT,
	)
	if err != nil {
		return nil, err
	}

	addr := unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: ueventGroupKernel,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &hotplugMonitor{fd: fd, root: root, allow: allow}, nil
}

// close shuts down the hotplug monitor.
func (h *hotplugMonitor) close() error {
	return unix.Close(h.fd)
}

// next reads one uevent and converts it to a bus event. ok is false when no
// data was available or the uevent was not a PCI add/remove.
func (h *hotplugMonitor) next() (ev bus.Event, ok bool, err error) {
	n, err := unix.Read(h.fd, h.buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return ev, false, nil
		}
		return ev, false, err
	}
	if n <= 0 {
		return ev, false, nil
	}
	ev, ok = toBusEvent(parseUEvent(h.buf[:n]), h.root, h.allow)
	return ev, ok, nil
}

// toBusEvent converts a PCI uevent to a bus event. Add events are resolved
// against sysfs so the candidate carries its resources; remove events carry
// only what the uevent reports. Binding to a driver in allow is reported as
// an add, since the device has just become claimable.
func toBusEvent(evt uevent, root string, allow []string) (bus.Event, bool) {
	if evt.subsystem != ueventSubsystemPCI {
		return bus.Event{}, false
	}

	slot := evt.slotName
	if slot == "" {
		slot = filepath.Base(evt.devpath)
	}
	if !isPCIAddress(slot) {
		return bus.Event{}, false
	}

	if evt.action == ueventBind && slices.Contains(allow, evt.driver) {
		evt.action = ueventAdd
	}

	switch evt.action {
	case ueventAdd:
		c, err := parsePCIDevice(filepath.Join(root, slot))
		if err != nil {
			return bus.Event{}, false
		}
		return bus.Event{Action: bus.ActionAdd, Candidate: c}, true

	case ueventRemove:
		c := bus.Candidate{Address: slot}
		if id, ok := parsePCIID(evt.pciID); ok {
			c.ID = id
		}
		return bus.Event{Action: bus.ActionRemove, Candidate: c}, true
	}
	return bus.Event{}, false
}

// =============================================================================
// UEvent Parsing
// =============================================================================

// parseUEvent parses a netlink uevent message.
func parseUEvent(data []byte) uevent {
	evt := uevent{}

	// Split into null-terminated strings
	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)

		idx := strings.IndexByte(s, '=')
		if idx < 0 {
			// Header line: action@devpath
			if at := strings.IndexByte(s, '@'); at > 0 {
				if a, ok := ueventActions[s[:at]]; ok {
					evt.action = a
					evt.devpath = s[at+1:]
				}
			}
			continue
		}

		key, value := s[:idx], s[idx+1:]
		switch key {
		case "ACTION":
			evt.action = ueventActions[value]
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		case "DRIVER":
			evt.driver = value
		case "PCI_ID":
			evt.pciID = value
		case "PCI_SLOT_NAME":
			evt.slotName = value
		}
	}
	return evt
}

// parsePCIID parses a PCI_ID value such as "1234:CAFE".
func parsePCIID(s string) (bus.ID, bool) {
	v, d, found := strings.Cut(s, ":")
	if !found {
		return bus.ID{}, false
	}
	vendor, err := strconv.ParseUint(v, 16, 16)
	if err != nil {
		return bus.ID{}, false
	}
	device, err := strconv.ParseUint(d, 16, 16)
	if err != nil {
		return bus.ID{}, false
	}
	return bus.ID{Vendor: uint16(vendor), Device: uint16(device)}, true
}
