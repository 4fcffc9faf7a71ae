package flashrom

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTerminated reports that the flashrom process was killed by a signal,
// so no exit code is available.
var ErrTerminated = errors.New("flashrom process terminated by a signal")

// ErrConflictingIO reports that an option set requested more than one
// io-operation (read/write/verify/erase) in a single dispatch.
var ErrConflictingIO = errors.New("conflicting io operations: at most one of read, write, verify, erase per dispatch")

// ExitError reports a flashrom invocation that exited with a nonzero code.
// Stderr is retained because flashrom writes its diagnostics there.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimRight(e.Stderr, "\n")
	if stderr == "" {
		return fmt.Sprintf("flashrom exited with code %d", e.Code)
	}
	return fmt.Sprintf("flashrom exited with code %d: %s", e.Code, stderr)
}

// ProtocolError reports output that did not parse as the expected value,
// e.g. a chip size that is not an integer.
type ProtocolError struct {
	Output string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected flashrom output (%s): %q", e.Reason, e.Output)
}

// IsExitError reports whether err is an ExitError, unwrapping as needed.
func IsExitError(err error) bool {
	var ee *ExitError
	return errors.As(err, &ee)
}

// IsProtocolError reports whether err is a ProtocolError, unwrapping as needed.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
