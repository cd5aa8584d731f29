package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
)

// Default identity and owner name of the RNG device.
var DefaultID = bus.ID{Vendor: 0x1234, Device: 0xcafe}

// DefaultName is the region owner name used when Options.Name is empty.
const DefaultName = "my_rng_pci"

// Options configures a Driver.
type Options struct {
	// ID is the identity a candidate must carry. Defaults to DefaultID.
	ID bus.ID

	// BAR is the register BAR index.
	BAR int

	// Name is the owner recorded on the claimed region. Defaults to
	// DefaultName.
	Name string

	// Serialize makes every request's register accesses mutually exclusive.
	Serialize bool

	// Metrics receives lifecycle and request counts. May be nil.
	Metrics *Metrics
}

// Driver is the lifecycle manager of a single RNG device.
type Driver struct {
	bus  bus.Bus
	opts Options

	// lifecycle serializes Attach and Detach.
	lifecycle sync.Mutex

	// mu guards active. Requests hold it shared across register access.
	mu     sync.RWMutex
	active *Device

	running atomic.Bool
}

// New creates a driver over b.
func New(b bus.Bus, opts Options) *Driver {
	if opts.ID == (bus.ID{}) {
		opts.ID = DefaultID
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	return &Driver{bus: b, opts: opts}
}

// Options returns the effective options.
func (d *Driver) Options() Options { return d.opts }

// Matches reports whether c carries the driver's identity.
func (d *Driver) Matches(c *bus.Candidate) bool {
	return c.ID == d.opts.ID
}

// Active returns the attached device, or nil.
func (d *Driver) Active() *Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Attached reports whether a device is attached.
func (d *Driver) Attached() bool { return d.Active() != nil }

// acquire returns the active device with the shared lock held. The caller
// must call release when its register accesses are complete. If no device is
// attached, dev is nil and the lock is not held.
func (d *Driver) acquire() (dev *Device, release func()) {
	d.mu.RLock()
	if d.active == nil {
		d.mu.RUnlock()
		return nil, nil
	}
	return d.active, d.mu.RUnlock
}

// Attach binds c: enable the function, claim the register BAR, then map it.
// A failure at any step undoes the earlier steps and returns *AttachError.
// A candidate with a different identity is rejected with pkg.ErrNoMatch.
func (d *Driver) Attach(ctx context.Context, c *bus.Candidate) (*Device, error) {
	if !d.Matches(c) {
		return nil, fmt.Errorf("%s (%s): %w", c.Address, c.ID, pkg.ErrNoMatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if cur := d.Active(); cur != nil {
		return nil, fmt.Errorf("attach %s: %s is attached: %w", c.Address, cur.Address(), pkg.ErrAlreadyAttached)
	}

	pkg.LogInfo(pkg.ComponentDriver, "probing device",
		"address", c.Address,
		"id", c.ID)

	dev := &Device{cand: *c}

	if err := d.bus.Enable(c); err != nil {
		return nil, d.attachFailed(dev, StepEnable, err)
	}
	dev.enabled = true

	region, err := d.bus.RequestRegion(c, d.opts.BAR, d.opts.Name)
	if err != nil {
		return nil, d.attachFailed(dev, StepClaim, err)
	}
	dev.region = region
	dev.claimed = true

	mapping, err := d.bus.Map(region)
	if err != nil {
		return nil, d.attachFailed(dev, StepMap, err)
	}
	dev.mapping = mapping
	if size := mapping.Size(); size < regs.WindowSize {
		return nil, d.attachFailed(dev, StepMap,
			fmt.Errorf("window %#x < %#x: %w", size, regs.WindowSize, pkg.ErrNoResource))
	}
	dev.attached = time.Now()

	res := region.Resource
	pkg.LogInfo(pkg.ComponentDriver, "register window mapped",
		"region", region.String(),
		"start", fmt.Sprintf("%#x", res.Start),
		"len", fmt.Sprintf("%#x", res.Length))
	pkg.LogInfo(pkg.ComponentDriver, "device attached",
		"address", c.Address,
		"rand32_nr", fmt.Sprintf("%#x", uint32(CmdRand32)),
		"seed_nr", fmt.Sprintf("%#x", uint32(CmdSeed)),
		"rand64_nr", fmt.Sprintf("%#x", uint32(CmdRand64)))

	d.mu.Lock()
	d.active = dev
	d.mu.Unlock()

	d.opts.Metrics.setAttached(true)
	return dev, nil
}

// attachFailed unwinds the completed steps of dev in reverse and builds the
// step error.
func (d *Driver) attachFailed(dev *Device, step AttachStep, err error) error {
	if rerr := d.teardown(dev); rerr != nil {
		pkg.LogWarn(pkg.ComponentDriver, "attach rollback incomplete",
			"address", dev.Address(),
			"error", rerr)
	}
	d.opts.Metrics.attachFailed(step)

	aerr := &AttachError{Address: dev.Address(), Step: step, Err: err}
	pkg.LogWarn(pkg.ComponentDriver, "attach failed",
		"address", dev.Address(),
		"step", step,
		"error", err)
	return aerr
}

// teardown undoes whatever attach steps dev records. Every step runs; errors
// are joined.
func (d *Driver) teardown(dev *Device) error {
	var errs []error
	if dev.mapping != nil {
		if err := dev.mapping.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		dev.mapping = nil
	}
	if dev.claimed {
		if err := d.bus.ReleaseRegion(dev.region); err != nil {
			errs = append(errs, fmt.Errorf("release region: %w", err))
		}
		dev.claimed = false
	}
	if dev.enabled {
		if err := d.bus.Disable(&dev.cand); err != nil {
			errs = append(errs, fmt.Errorf("disable: %w", err))
		}
		dev.enabled = false
	}
	return errors.Join(errs...)
}

// Detach unbinds the active device. It waits for in-flight requests, then
// unmaps the window, releases the region and disables the function.
// Detach without an attached device does nothing.
func (d *Driver) Detach() error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	dev := d.active
	d.active = nil
	d.mu.Unlock()

	if dev == nil {
		return nil
	}
	d.opts.Metrics.setAttached(false)

	err := d.teardown(dev)
	if err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "detach incomplete",
			"address", dev.Address(),
			"error", err)
		return fmt.Errorf("detach %s: %w", dev.Address(), err)
	}
	pkg.LogInfo(pkg.ComponentDriver, "device detached", "address", dev.Address())
	return nil
}

// Run attaches the first matching device found on the bus and then follows
// hotplug events until ctx is cancelled: a matching add attaches when idle,
// removal of the attached device detaches it. On return the device is
// detached.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer d.running.Store(false)

	// Watch before scanning so a device plugged in between is not missed.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := d.bus.Watch(wctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	cands, err := d.bus.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	pkg.LogDebug(pkg.ComponentDriver, "initial scan", "candidates", len(cands))
	for i := range cands {
		if d.tryAttach(ctx, &cands[i]) {
			break
		}
	}

	defer func() {
		if err := d.Detach(); err != nil {
			pkg.LogError(pkg.ComponentDriver, "detach on shutdown failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watch: %w", pkg.ErrClosed)
			}
			d.handleEvent(ctx, ev)
		}
	}
}

// Running reports whether Run is active.
func (d *Driver) Running() bool { return d.running.Load() }

func (d *Driver) handleEvent(ctx context.Context, ev bus.Event) {
	switch ev.Action {
	case bus.ActionAdd:
		pkg.LogDebug(pkg.ComponentDriver, "device added",
			"address", ev.Candidate.Address,
			"id", ev.Candidate.ID)
		if !d.Attached() {
			d.tryAttach(ctx, &ev.Candidate)
		}

	case bus.ActionRemove:
		dev := d.Active()
		if dev == nil || dev.Address() != ev.Candidate.Address {
			return
		}
		pkg.LogInfo(pkg.ComponentDriver, "attached device removed", "address", dev.Address())
		if err := d.Detach(); err != nil {
			pkg.LogWarn(pkg.ComponentDriver, "detach after removal failed", "error", err)
		}
	}
}

// tryAttach attaches c if it matches. It reports whether c is now attached.
func (d *Driver) tryAttach(ctx context.Context, c *bus.Candidate) bool {
	if !d.Matches(c) {
		return false
	}
	if _, err := d.Attach(ctx, c); err != nil {
		// Already logged with step detail.
		return false
	}
	return true
}
