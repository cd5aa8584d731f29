// Package config loads rngd configuration from YAML.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default:
//
//	device:
//	  vendor: 0x1234
//	  device: 0xcafe
//	  bar: 0
//	  sysfs: /sys/bus/pci/devices
//	driver:
//	  name: my_rng_pci
//	  serialize: false
//	socket:
//	  path: /run/rngd.sock
//	  mode: 0660
//	log:
//	  level: warn
//	  format: text
//	metrics:
//	  listen: ""
//	simulate: false
//
// Identity values are always hexadecimal, with or without the 0x prefix.
// The socket mode is always octal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/pkg"
)

// Config is the daemon configuration.
type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Driver   DriverConfig  `yaml:"driver"`
	Socket   SocketConfig  `yaml:"socket"`
	Log      LogConfig     `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Simulate bool          `yaml:"simulate"`
}

// DeviceConfig selects the device to bind.
type DeviceConfig struct {
	Vendor HexID  `yaml:"vendor"`
	Device HexID  `yaml:"device"`
	BAR    int    `yaml:"bar"`
	Sysfs  string `yaml:"sysfs"`
}

// DriverConfig configures the lifecycle manager and dispatcher.
type DriverConfig struct {
	Name      string `yaml:"name"`
	Serialize bool   `yaml:"serialize"`
}

// SocketConfig configures the request socket.
type SocketConfig struct {
	Path string   `yaml:"path"`
	Mode FileMode `yaml:"mode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen disables
// it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Defaults.
const (
	DefaultVendor     HexID    = 0x1234
	DefaultDevice     HexID    = 0xcafe
	DefaultSysfs               = "/sys/bus/pci/devices"
	DefaultName                = "my_rng_pci"
	DefaultSocketPath          = "/run/rngd.sock"
	DefaultSocketMode FileMode = 0o660
	DefaultLogLevel            = "warn"
	DefaultLogFormat           = "text"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Vendor: DefaultVendor,
			Device: DefaultDevice,
			Sysfs:  DefaultSysfs,
		},
		Driver: DriverConfig{Name: DefaultName},
		Socket: SocketConfig{Path: DefaultSocketPath, Mode: DefaultSocketMode},
		Log:    LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Parse overlays YAML data on the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pkg.LogDebug(pkg.ComponentConfig, "config loaded", "path", path)
	return c, nil
}

// Validate checks field ranges. Errors wrap pkg.ErrInvalidParameter.
func (c *Config) Validate() error {
	if c.Device.BAR < 0 || c.Device.BAR >= bus.MaxBARs {
		return fmt.Errorf("%w: device.bar %d not in [0,%d)", pkg.ErrInvalidParameter, c.Device.BAR, bus.MaxBARs)
	}
	if c.Device.Sysfs == "" {
		return fmt.Errorf("%w: device.sysfs is empty", pkg.ErrInvalidParameter)
	}
	if c.Driver.Name == "" {
		return fmt.Errorf("%w: driver.name is empty", pkg.ErrInvalidParameter)
	}
	if c.Socket.Path == "" {
		return fmt.Errorf("%w: socket.path is empty", pkg.ErrInvalidParameter)
	}
	if c.Socket.Mode == 0 || c.Socket.Mode&^0o777 != 0 {
		return fmt.Errorf("%w: socket.mode %#o", pkg.ErrInvalidParameter, uint32(c.Socket.Mode))
	}
	if _, err := pkg.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := pkg.ParseLogFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// ID returns the configured device identity.
func (c *Config) ID() bus.ID {
	return bus.ID{Vendor: uint16(c.Device.Vendor), Device: uint16(c.Device.Device)}
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// HexID is a 16-bit PCI identifier written in hexadecimal.
type HexID uint16

// UnmarshalYAML parses the scalar as hex regardless of how YAML would type it.
func (h *HexID) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseHexID(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*h = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (h HexID) MarshalYAML() (any, error) {
	return h.String(), nil
}

// String formats the identifier as "0x1234".
func (h HexID) String() string {
	return fmt.Sprintf("0x%04x", uint16(h))
}

// ParseHexID parses "cafe", "0xcafe" or "0XCAFE".
func ParseHexID(s string) (HexID, error) {
	s = strings.TrimSpace(s)
	t := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(t, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", pkg.ErrInvalidParameter, s)
	}
	return HexID(v), nil
}

// FileMode is a permission written in octal.
type FileMode os.FileMode

// UnmarshalYAML parses the scalar as octal ("0660", "660" or "0o660").
func (m *FileMode) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseFileMode(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m FileMode) MarshalYAML() (any, error) {
	return fmt.Sprintf("%04o", uint32(m)), nil
}

// Perm returns the mode as an os.FileMode.
func (m FileMode) Perm() os.FileMode { return os.FileMode(m) }

// ParseFileMode parses an octal permission.
func ParseFileMode(s string) (FileMode, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: mode %q", pkg.ErrInvalidParameter, s)
	}
	return FileMode(v), nil
}
