// Package driver binds a PCI random number generator and services requests
// against it.
//
// A [Driver] owns at most one attached [Device]. Attaching enables the
// function, claims its register BAR exclusively and maps the register
// window; any failing step unwinds the steps before it. Detaching reverses
// all three. [Driver.Run] drives attach and detach from bus discovery and
// hotplug events.
//
// A [Dispatcher] serves control requests identified by ioctl-style
// [Command] numbers:
//
//	CmdSeed    write a 32-bit seed
//	CmdRand32  read a 32-bit random value
//	CmdRand64  read a 64-bit random value as two 32-bit halves
//
// Requests made while no device is attached fail with pkg.ErrNotReady.
// Requests hold a read lock on the active device across their register
// accesses, so detach waits for in-flight requests and never unmaps a window
// under one.
//
// Two concurrent 64-bit draws may interleave their halves and return a value
// composed from two different device states unless [Options.Serialize] is
// set.
package driver
