package wp

import (
	"errors"
	"fmt"
)

// Code categorizes controller failures.
type Code string

const (
	// CodeUnconfirmed means a toggle was requested but the re-queried
	// state did not match within one retry. The toggle channel is
	// fire-and-forget, so this is the only failure signal available.
	CodeUnconfirmed Code = "UNCONFIRMED"

	// CodeHardwareBlocksSoftware means software write-protect cannot be
	// cleared while hardware write-protect is asserted. This encodes the
	// physical chip restriction; the underlying tool is never invoked.
	CodeHardwareBlocksSoftware Code = "HARDWARE_BLOCKS_SOFTWARE"

	// CodeUnsupported means a query produced no usable data on this
	// platform or chip kind. Callers usually warn rather than fail.
	CodeUnsupported Code = "UNSUPPORTED"
)

// Error is a write-protect controller failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// is reports whether err is a controller error with the given code.
func is(err error, code Code) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// IsUnconfirmed reports whether err is an unconfirmed-toggle error.
func IsUnconfirmed(err error) bool { return is(err, CodeUnconfirmed) }

// IsHardwareBlocksSoftware reports whether err is the hardware
// precondition violation.
func IsHardwareBlocksSoftware(err error) bool { return is(err, CodeHardwareBlocksSoftware) }

// IsUnsupported reports whether err marks a query with no usable data.
func IsUnsupported(err error) bool { return is(err, CodeUnsupported) }
