//go:build linux

package linux

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/softrng/bus"
)

// =============================================================================
// Sysfs Parsing
// =============================================================================

// scanPCIDevices scans root for PCI functions. Entries that cannot be parsed
// are skipped.
func scanPCIDevices(root string) ([]bus.Candidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []bus.Candidate
	for _, entry := range entries {
		// PCI functions are named DDDD:BB:DD.F
		if !isPCIAddress(entry.Name()) {
			continue
		}
		c, err := parsePCIDevice(filepath.Join(root, entry.Name()))
		if err != nil {
			continue
		}
		devices = append(devices, c)
	}
	return devices, nil
}

// parsePCIDevice parses a PCI function's identity and resources from sysfs.
func parsePCIDevice(dir string) (bus.Candidate, error) {
	c := bus.Candidate{Address: filepath.Base(dir)}

	vendor, err := readSysfsHexUint16(filepath.Join(dir, attrVendor))
	if err != nil {
		return c, err
	}
	device, err := readSysfsHexUint16(filepath.Join(dir, attrDevice))
	if err != nil {
		return c, err
	}
	c.ID = bus.ID{Vendor: vendor, Device: device}

	data, err := os.ReadFile(filepath.Join(dir, attrResource))
	if err != nil {
		return c, err
	}
	res, err := parseResourceTable(data)
	if err != nil {
		return c, fmt.Errorf("%s: %w", dir, err)
	}
	c.Resources = res
	return c, nil
}

// parseResourceTable parses the "resource" attribute. Each line holds
// "start end flags" in hex; only the first bus.MaxBARs lines are BARs.
func parseResourceTable(data []byte) ([bus.MaxBARs]bus.Resource, error) {
	var out [bus.MaxBARs]bus.Resource

	sc := bufio.NewScanner(bytes.NewReader(data))
	for i := 0; i < bus.MaxBARs && sc.Scan(); i++ {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 {
			return out, fmt.Errorf("resource line %d: want 3 fields, got %d", i, len(fields))
		}
		var v [3]uint64
		for j, f := range fields {
			n, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 64)
			if err != nil {
				return out, fmt.Errorf("resource line %d: %w", i, err)
			}
			v[j] = n
		}
		start, end, flags := v[0], v[1], v[2]
		if end != 0 && end >= start {
			out[i] = bus.Resource{Start: start, Length: end - start + 1, Flags: flags}
		}
	}
	return out, sc.Err()
}

// isPCIAddress reports whether name looks like "0000:00:04.0".
func isPCIAddress(name string) bool {
	if len(name) != 12 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch i {
		case 4, 7:
			if c != ':' {
				return false
			}
		case 10:
			if c != '.' {
				return false
			}
		default:
			if !isHexDigit(c) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// boundDriver returns the name of the kernel driver bound to the device at
// dir, or "" if none.
func boundDriver(dir string) string {
	target, err := os.Readlink(filepath.Join(dir, attrDriver))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// resourcePath returns the path of BAR n's resource file.
func resourcePath(dir string, n int) string {
	return filepath.Join(dir, resourceFilePrefix+strconv.Itoa(n))
}

// =============================================================================
// Sysfs Read/Write Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readSysfsHex reads a hexadecimal value from a sysfs attribute file.
func readSysfsHex(path string, bitSize int) (uint64, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	// Remove any "0x" prefix
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, bitSize)
}

// readSysfsHexUint16 reads a hexadecimal uint16 from a sysfs attribute file.
func readSysfsHexUint16(path string) (uint16, error) {
	v, err := readSysfsHex(path, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// writeSysfsString writes s to a sysfs attribute file without truncating
// or creating it.
func writeSysfsString(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
