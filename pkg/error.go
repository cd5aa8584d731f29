package pkg

import "errors"

// Lifecycle errors.
var (
	// ErrEnableFailed indicates the device's bus interface could not be enabled.
	ErrEnableFailed = errors.New("enable failed")

	// ErrRegionClaimFailed indicates the device's resource region could not
	// be claimed.
	ErrRegionClaimFailed = errors.New("region claim failed")

	// ErrMappingFailed indicates the claimed region could not be mapped.
	ErrMappingFailed = errors.New("mapping failed")

	// ErrRegionBusy indicates the resource region is owned by another driver.
	ErrRegionBusy = errors.New("region already claimed")

	// ErrAlreadyAttached indicates a device is already attached.
	ErrAlreadyAttached = errors.New("device already attached")

	// ErrNoMatch indicates a candidate does not carry the expected identity.
	ErrNoMatch = errors.New("device identity mismatch")

	// ErrNoDevice indicates the device is not present on the bus.
	ErrNoDevice = errors.New("device not present")

	// ErrNoResource indicates the requested BAR is absent or not memory.
	ErrNoResource = errors.New("no such resource")
)

// Request errors.
var (
	// ErrNotReady indicates no device is attached.
	ErrNotReady = errors.New("device not ready")

	// ErrUnsupportedRequest indicates an unrecognized command.
	ErrUnsupportedRequest = errors.New("operation not supported")

	// ErrTransferFault indicates data could not be moved to or from the
	// caller's buffer.
	ErrTransferFault = errors.New("transfer fault")
)

// Register access errors. These are raised as panics by the accessor since
// they indicate a broken precondition, not a recoverable condition.
var (
	// ErrUnmapped indicates access to a mapping that was released.
	ErrUnmapped = errors.New("register window unmapped")

	// ErrOutOfRange indicates access outside the mapped window or unaligned.
	ErrOutOfRange = errors.New("register offset out of range")
)

// General errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlreadyRunning indicates the component is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the component is not running.
	ErrNotRunning = errors.New("not running")

	// ErrClosed indicates use of a closed endpoint.
	ErrClosed = errors.New("closed")

	// ErrIO indicates a failure that has no more specific status.
	ErrIO = errors.New("I/O error")
)

// Status is the result code carried on the request channel. Values follow
// the errno a character device would have returned for the same condition.
type Status uint8

// Status values.
const (
	StatusOK          Status = 0  // Request completed
	StatusIO          Status = 5  // EIO
	StatusFault       Status = 14 // EFAULT
	StatusNotReady    Status = 19 // ENODEV
	StatusUnsupported Status = 25 // ENOTTY
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIO:
		return "io"
	case StatusFault:
		return "fault"
	case StatusNotReady:
		return "not-ready"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the status.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusFault:
		return ErrTransferFault
	case StatusNotReady:
		return ErrNotReady
	case StatusUnsupported:
		return ErrUnsupportedRequest
	default:
		return ErrIO
	}
}

// StatusOf returns the status that reports err to a remote caller.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotReady):
		return StatusNotReady
	case errors.Is(err, ErrUnsupportedRequest):
		return StatusUnsupported
	case errors.Is(err, ErrTransferFault):
		return StatusFault
	default:
		return StatusIO
	}
}
