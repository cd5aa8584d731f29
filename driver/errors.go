package driver

import (
	"fmt"

	"github.com/ardnew/softrng/pkg"
)

// AttachStep identifies the attach step that failed.
type AttachStep uint8

// Attach steps, in order.
const (
	StepEnable AttachStep = iota + 1
	StepClaim
	StepMap
)

// String returns the step name.
func (s AttachStep) String() string {
	switch s {
	case StepEnable:
		return "enable"
	case StepClaim:
		return "claim"
	case StepMap:
		return "map"
	default:
		return "unknown"
	}
}

// sentinel returns the pkg error class of the step.
func (s AttachStep) sentinel() error {
	switch s {
	case StepEnable:
		return pkg.ErrEnableFailed
	case StepClaim:
		return pkg.ErrRegionClaimFailed
	case StepMap:
		return pkg.ErrMappingFailed
	default:
		return pkg.ErrIO
	}
}

// AttachError reports a failed attach. Steps before Step have been undone.
//
// errors.Is matches both the step's class (pkg.ErrEnableFailed,
// pkg.ErrRegionClaimFailed or pkg.ErrMappingFailed) and the underlying bus
// error, such as pkg.ErrRegionBusy.
type AttachError struct {
	Address string
	Step    AttachStep
	Err     error
}

// Error implements error.
func (e *AttachError) Error() string {
	return fmt.Sprintf("attach %s: %v: %v", e.Address, e.Step.sentinel(), e.Err)
}

// Unwrap returns the underlying bus error.
func (e *AttachError) Unwrap() error { return e.Err }

// Is reports whether target is the step's error class.
func (e *AttachError) Is(target error) bool {
	return target == e.Step.sentinel()
}
