package driver

import (
	"time"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/regs"
)

// Device is the handle of an attached device. It exists only while every
// attach step has succeeded and detach has not begun.
type Device struct {
	cand     bus.Candidate
	region   *bus.Region
	mapping  *regs.Mapping
	enabled  bool
	claimed  bool
	attached time.Time
}

// Address returns the device's bus address.
func (d *Device) Address() string { return d.cand.Address }

// ID returns the device's identity.
func (d *Device) ID() bus.ID { return d.cand.ID }

// Candidate returns the candidate the device was attached from.
func (d *Device) Candidate() bus.Candidate { return d.cand }

// Region returns the claimed register region.
func (d *Device) Region() *bus.Region { return d.region }

// AttachedAt returns the time attach completed.
func (d *Device) AttachedAt() time.Time { return d.attached }

// window returns the non-owning register view used by requests.
func (d *Device) window() regs.Window { return d.mapping }
