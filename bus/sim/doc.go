// Package sim provides an in-memory PCI bus hosting simulated RNG devices.
//
// This package implements the [bus.Bus] interface without hardware. Devices
// are plugged and unplugged programmatically, each backed by a
// [regs.Backend] register model (usually [RNG]). Every lifecycle operation
// updates observable state so tests can assert what is enabled, claimed and
// mapped after a sequence of attach and detach calls.
//
// # Fault Injection
//
// [Bus.InjectFault] makes one step fail until cleared:
//
//	b := sim.New()
//	b.Plug(sim.NewCandidate("0000:00:04.0", id), sim.NewRNG(1))
//	b.InjectFault(sim.OpMap, errors.New("no address space"))
//
// # Register Model
//
// [RNG] follows the peripheral's register layout. Reading Random64Lo
// latches a fresh 64-bit value and returns its low half; reading Random64Hi
// returns the high half of the latch. A second Random64Lo read between a
// caller's two loads therefore replaces the latch, which is how torn 64-bit
// draws arise on the real device.
package sim
