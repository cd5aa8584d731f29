package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
)

// Op identifies a bus operation for fault injection.
type Op uint8

// Injectable operations.
const (
	OpEnable Op = iota
	OpRequestRegion
	OpMap
	numOps
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpEnable:
		return "enable"
	case OpRequestRegion:
		return "request-region"
	case OpMap:
		return "map"
	default:
		return "unknown"
	}
}

// watchBuffer is the per-watcher event queue depth.
const watchBuffer = 16

// State is the observable lifecycle state of a simulated device.
type State struct {
	Present bool
	Enabled bool
	Owner   string // Region owner, "" if unclaimed
	Mapped  int    // Live mappings
}

// slot is a plugged device.
type slot struct {
	cand    bus.Candidate
	backend regs.Backend
	enabled bool
	owner   string
	mapped  int
}

// Bus is an in-memory bus.Bus.
type Bus struct {
	mu       sync.Mutex
	slots    map[string]*slot
	faults   [numOps]error
	watchers map[chan bus.Event]struct{}
}

var _ bus.Bus = (*Bus)(nil)

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		slots:    make(map[string]*slot),
		watchers: make(map[chan bus.Event]struct{}),
	}
}

// NewCandidate returns a candidate with one 4 KiB memory BAR0.
func NewCandidate(addr string, id bus.ID) bus.Candidate {
	c := bus.Candidate{Address: addr, ID: id}
	c.Resources[0] = bus.Resource{
		Start:  0xfebf1000,
		Length: 0x1000,
		Flags:  bus.ResourceMem,
	}
	return c
}

// Plug adds a device backed by backend and notifies watchers. Plugging an
// address that is already present replaces the device.
func (b *Bus) Plug(c bus.Candidate, backend regs.Backend) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots[c.Address] = &slot{cand: c, backend: backend}
	pkg.LogDebug(pkg.ComponentBus, "sim device plugged", "addr", c.Address, "id", c.ID)
	b.emit(bus.Event{Action: bus.ActionAdd, Candidate: c})
}

// Unplug removes a device and notifies watchers. Claims and mappings held on
// it are not released; the device simply disappears as on surprise removal.
func (b *Bus) Unplug(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[addr]
	if !ok {
		return
	}
	delete(b.slots, addr)
	pkg.LogDebug(pkg.ComponentBus, "sim device unplugged", "addr", addr)
	b.emit(bus.Event{Action: bus.ActionRemove, Candidate: s.cand})
}

// InjectFault makes every subsequent op fail with err. A nil err clears it.
func (b *Bus) InjectFault(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if op < numOps {
		b.faults[op] = err
	}
}

// State returns the lifecycle state of the device at addr.
func (b *Bus) State(addr string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[addr]
	if !ok {
		return State{}
	}
	return State{Present: true, Enabled: s.enabled, Owner: s.owner, Mapped: s.mapped}
}

// Scan implements bus.Bus. Candidates are returned in address order.
func (b *Bus) Scan(ctx context.Context) ([]bus.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]bus.Candidate, 0, len(b.slots))
	for _, s := range b.slots {
		out = append(out, s.cand)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// Watch implements bus.Bus.
func (b *Bus) Watch(ctx context.Context) (<-chan bus.Event, error) {
	ch := make(chan bus.Event, watchBuffer)

	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Enable implements bus.Bus.
func (b *Bus) Enable(c *bus.Candidate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.faults[OpEnable]; err != nil {
		return err
	}
	s, err := b.lookup(c.Address)
	if err != nil {
		return err
	}
	s.enabled = true
	return nil
}

// Disable implements bus.Bus. Disabling a removed device is not an error.
func (b *Bus) Disable(c *bus.Candidate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.slots[c.Address]; ok {
		s.enabled = false
	}
	return nil
}

// RequestRegion implements bus.Bus.
func (b *Bus) RequestRegion(c *bus.Candidate, bar int, owner string) (*bus.Region, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.faults[OpRequestRegion]; err != nil {
		return nil, err
	}
	s, err := b.lookup(c.Address)
	if err != nil {
		return nil, err
	}
	res := s.cand.Resource(bar)
	if !res.IsMem() {
		return nil, fmt.Errorf("%w: %s bar%d", pkg.ErrNoResource, c.Address, bar)
	}
	if s.owner != "" {
		return nil, fmt.Errorf("%w: %s bar%d held by %q", pkg.ErrRegionBusy, c.Address, bar, s.owner)
	}
	s.owner = owner
	return &bus.Region{
		Address:  c.Address,
		BAR:      bar,
		Resource: res,
		Owner:    owner,
		Handle:   s,
	}, nil
}

// ReleaseRegion implements bus.Bus.
func (b *Bus) ReleaseRegion(r *bus.Region) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := r.Handle.(*slot)
	if !ok {
		return fmt.Errorf("%w: foreign region %s", pkg.ErrInvalidParameter, r)
	}
	if s.owner == r.Owner {
		s.owner = ""
	}
	return nil
}

// Map implements bus.Bus.
func (b *Bus) Map(r *bus.Region) (*regs.Mapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.faults[OpMap]; err != nil {
		return nil, err
	}
	s, ok := r.Handle.(*slot)
	if !ok || s.owner != r.Owner {
		return nil, fmt.Errorf("%w: region %s not claimed", pkg.ErrInvalidParameter, r)
	}

	size := r.Resource.Length
	if size > 1<<32-4 {
		size = 1<<32 - 4
	}
	s.mapped++
	return regs.NewMapping(r.String(), s.backend, uint32(size), func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		s.mapped--
		return nil
	}), nil
}

func (b *Bus) lookup(addr string) (*slot, error) {
	s, ok := b.slots[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkg.ErrNoDevice, addr)
	}
	return s, nil
}

// emit delivers an event to every watcher, dropping it for watchers whose
// queue is full. Called with b.mu held.
func (b *Bus) emit(evt bus.Event) {
	for ch := range b.watchers {
		select {
		case ch <- evt:
		default:
			pkg.LogWarn(pkg.ComponentBus, "sim event dropped", "action", evt.Action, "addr", evt.Candidate.Address)
		}
	}
}
