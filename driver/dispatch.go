package driver

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ardnew/softrng/pkg"
	"github.com/ardnew/softrng/regs"
)

// Request is a single control request. Arg is the caller's buffer: the seed
// source for CmdSeed, the destination for draws. It is not retained.
type Request struct {
	Cmd Command
	Arg []byte
}

// Dispatcher services control requests against a Driver's active device.
// It is safe for concurrent use.
type Dispatcher struct {
	drv       *Driver
	serialize bool
	metrics   *Metrics

	// regMu makes request register sequences exclusive when serialize is set.
	regMu sync.Mutex
}

// NewDispatcher returns a dispatcher for d using d's Serialize and Metrics
// options.
func NewDispatcher(d *Driver) *Dispatcher {
	return &Dispatcher{
		drv:       d,
		serialize: d.opts.Serialize,
		metrics:   d.opts.Metrics,
	}
}

// Serialized reports whether register sequences are mutually exclusive.
func (p *Dispatcher) Serialized() bool { return p.serialize }

// Dispatch executes req.
//
// Unrecognized commands fail with pkg.ErrUnsupportedRequest and known
// commands with pkg.ErrNotReady when no device is attached, in both cases
// without touching a register. A nil or short Arg fails with
// pkg.ErrTransferFault; a seed is then not written, while a draw has already
// consumed its value.
func (p *Dispatcher) Dispatch(req Request) (err error) {
	kind := req.Cmd.Kind()
	defer func() { p.metrics.observeRequest(kind, err) }()

	if kind == KindUnknown {
		return fmt.Errorf("command %s: %w", req.Cmd, pkg.ErrUnsupportedRequest)
	}

	dev, release := p.drv.acquire()
	if dev == nil {
		return fmt.Errorf("%s: %w", kind, pkg.ErrNotReady)
	}
	defer release()

	if p.serialize {
		p.regMu.Lock()
		defer p.regMu.Unlock()
	}

	return p.execute(dev.window(), kind, req.Arg)
}

// execute performs the register sequence of kind on w.
func (p *Dispatcher) execute(w regs.Window, kind Kind, arg []byte) error {
	switch kind {
	case KindSeed:
		if len(arg) < 4 {
			return transferFault(kind, arg)
		}
		v := binary.NativeEndian.Uint32(arg)
		w.Write32(regs.Seed, v)
		pkg.LogInfo(pkg.ComponentDispatch, "seed written", "value", fmt.Sprintf("0x%08x", v))

	case KindRand32:
		v := w.Read32(regs.Random32)
		if len(arg) < 4 {
			return transferFault(kind, arg)
		}
		binary.NativeEndian.PutUint32(arg, v)
		pkg.LogDebug(pkg.ComponentDispatch, "rand32", "value", v)

	case KindRand64:
		v := regs.ReadRandom64(w)
		if len(arg) < 8 {
			return transferFault(kind, arg)
		}
		binary.NativeEndian.PutUint64(arg, v)
		pkg.LogDebug(pkg.ComponentDispatch, "rand64", "value", v)
	}
	return nil
}

func transferFault(kind Kind, arg []byte) error {
	return fmt.Errorf("%s: buffer of %d bytes, need %d: %w", kind, len(arg), kind.ArgSize(), pkg.ErrTransferFault)
}

// Seed writes v to the seed register.
func (p *Dispatcher) Seed(v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	return p.Dispatch(Request{Cmd: CmdSeed, Arg: buf[:]})
}

// Rand32 draws a 32-bit random value.
func (p *Dispatcher) Rand32() (uint32, error) {
	var buf [4]byte
	if err := p.Dispatch(Request{Cmd: CmdRand32, Arg: buf[:]}); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

// Rand64 draws a 64-bit random value.
func (p *Dispatcher) Rand64() (uint64, error) {
	var buf [8]byte
	if err := p.Dispatch(Request{Cmd: CmdRand64, Arg: buf[:]}); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}
