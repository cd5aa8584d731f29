//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
)

// Options configures a Bus.
type Options struct {
	// Root is the sysfs PCI device directory. Defaults to SysfsPCIPath.
	Root string

	// AllowDrivers names kernel drivers that may be bound to a device being
	// claimed. Defaults to DefaultAllowDrivers.
	AllowDrivers []string
}

// claim is the Region.Handle of a sysfs region.
type claim struct {
	file *os.File
}

// Bus implements bus.Bus on Linux sysfs.
type Bus struct {
	root  string
	allow []string

	mu     sync.Mutex
	claims map[string]*bus.Region // keyed by Region.String()
}

var _ bus.Bus = (*Bus)(nil)

// New creates a sysfs-backed bus.
func New(opts Options) *Bus {
	b := &Bus{
		root:   opts.Root,
		allow:  opts.AllowDrivers,
		claims: make(map[string]*bus.Region),
	}
	if b.root == "" {
		b.root = SysfsPCIPath
	}
	if b.allow == nil {
		b.allow = DefaultAllowDrivers
	}
	return b
}

// Root returns the sysfs device directory.
func (b *Bus) Root() string { return b.root }

func (b *Bus) dir(c *bus.Candidate) string {
	return filepath.Join(b.root, c.Address)
}

// Scan implements bus.Bus.
func (b *Bus) Scan(ctx context.Context) ([]bus.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devices, err := scanPCIDevices(b.root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", b.root, err)
	}
	pkg.LogDebug(pkg.ComponentBus, "scan complete", "root", b.root, "devices", len(devices))
	return devices, nil
}

// Watch implements bus.Bus. It opens a uevent socket and forwards PCI add and
// remove events until ctx is cancelled.
func (b *Bus) Watch(ctx context.Context) (<-chan bus.Event, error) {
	mon, err := newHotplugMonitor(b.root, b.allow)
	if err != nil {
		return nil, fmt.Errorf("uevent socket: %w", err)
	}
	p, err := newPoller()
	if err != nil {
		mon.close()
		return nil, fmt.Errorf("poller: %w", err)
	}

	ch := make(chan bus.Event, watchBuffer)
	var pending []bus.Event
	readable := func(uint32) {
		for {
			ev, ok, err := mon.next()
			if err != nil {
				pkg.LogWarn(pkg.ComponentBus, "uevent read failed", "error", err)
				return
			}
			if !ok {
				return
			}
			pending = append(pending, ev)
		}
	}
	if err := p.addFD(mon.fd, readable); err != nil {
		p.close()
		mon.close()
		return nil, fmt.Errorf("poller: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { p.wake() })

	go func() {
		defer close(ch)
		defer mon.close()
		defer p.close()
		defer stop()

		for ctx.Err() == nil {
			if _, _, err := p.pollOnce(-1); err != nil {
				pkg.LogError(pkg.ComponentBus, "poll failed", "error", err)
				return
			}
			for _, ev := range pending {
				pkg.LogDebug(pkg.ComponentBus, "hotplug event",
					"action", ev.Action, "address", ev.Candidate.Address, "id", ev.Candidate.ID)
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
			pending = pending[:0]
		}
	}()
	return ch, nil
}

// Enable implements bus.Bus by writing the enable attribute.
func (b *Bus) Enable(c *bus.Candidate) error {
	if err := writeSysfsString(filepath.Join(b.dir(c), attrEnable), "1"); err != nil {
		return fmt.Errorf("enable %s: %w", c.Address, err)
	}
	return nil
}

// Disable implements bus.Bus.
func (b *Bus) Disable(c *bus.Candidate) error {
	if err := writeSysfsString(filepath.Join(b.dir(c), attrEnable), "0"); err != nil {
		return fmt.Errorf("disable %s: %w", c.Address, err)
	}
	return nil
}

// RequestRegion implements bus.Bus. The claim is an exclusive flock on the
// BAR's resource file, which also serves as the mmap source.
func (b *Bus) RequestRegion(c *bus.Candidate, bar int, owner string) (*bus.Region, error) {
	res := c.Resource(bar)
	if !res.IsMem() {
		return nil, fmt.Errorf("%s bar%d: %w", c.Address, bar, pkg.ErrNoResource)
	}

	dir := b.dir(c)
	if drv := boundDriver(dir); drv != "" && !slices.Contains(b.allow, drv) {
		return nil, fmt.Errorf("%s bound to %s: %w", c.Address, drv, pkg.ErrRegionBusy)
	}

	r := &bus.Region{Address: c.Address, BAR: bar, Resource: res, Owner: owner}

	b.mu.Lock()
	defer b.mu.Unlock()
	if held, ok := b.claims[r.String()]; ok {
		return nil, fmt.Errorf("%s held by %s: %w", r, held.Owner, pkg.ErrRegionBusy)
	}

	f, err := os.OpenFile(resourcePath(dir, bar), os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r, pkg.ErrNoResource)
		}
		return nil, fmt.Errorf("open %s: %w", r, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s locked by another process: %w", r, pkg.ErrRegionBusy)
		}
		return nil, fmt.Errorf("lock %s: %w", r, err)
	}

	r.Handle = &claim{file: f}
	b.claims[r.String()] = r
	pkg.LogDebug(pkg.ComponentBus, "region claimed", "region", r.String(), "owner", owner)
	return r, nil
}

// ReleaseRegion implements bus.Bus.
func (b *Bus) ReleaseRegion(r *bus.Region) error {
	cl, ok := r.Handle.(*claim)
	if !ok || cl.file == nil {
		return fmt.Errorf("release %s: %w", r, pkg.ErrInvalidParameter)
	}

	b.mu.Lock()
	delete(b.claims, r.String())
	b.mu.Unlock()

	fd := int(cl.file.Fd())
	err := errors.Join(unix.Flock(fd, unix.LOCK_UN), cl.file.Close())
	cl.file = nil
	pkg.LogDebug(pkg.ComponentBus, "region released", "region", r.String())
	return err
}

// Map implements bus.Bus by mapping the claimed resource file shared.
func (b *Bus) Map(r *bus.Region) (*regs.Mapping, error) {
	cl, ok := r.Handle.(*claim)
	if !ok || cl.file == nil {
		return nil, fmt.Errorf("map %s: %w", r, pkg.ErrInvalidParameter)
	}
	length := r.Resource.Length
	if length == 0 || length > math.MaxUint32 {
		return nil, fmt.Errorf("map %s: length %#x: %w", r, length, pkg.ErrNoResource)
	}

	data, err := unix.Mmap(int(cl.file.Fd()), 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", r, err)
	}
	pkg.LogDebug(pkg.ComponentBus, "region mapped",
		"region", r.String(), "start", fmt.Sprintf("%#x", r.Resource.Start), "len", length)

	return regs.NewMapping(r.String(), regs.Mem(data), uint32(length), func() error {
		return unix.Munmap(data)
	}), nil
}
