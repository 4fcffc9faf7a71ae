package flashrom

import (
	"context"
	"errors"
	"os/exec"
)

// Runner executes an external program and captures its output.
//
// Implementations must map process failure into the gateway taxonomy:
// a nonzero exit becomes *ExitError, termination by signal becomes
// ErrTerminated. Anything else (binary missing, fork failure) passes
// through unchanged.
type Runner interface {
	Run(ctx context.Context, path string, args []string) (stdout, stderr []byte, err error)
}

// execRunner runs processes with os/exec. It is the only Runner used
// outside tests.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, path string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	stdout, err := cmd.Output()
	var stderr []byte
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		stderr = ee.Stderr
		// ExitCode is -1 when the process died to a signal rather
		// than exiting.
		if ee.ExitCode() == -1 {
			return stdout, stderr, ErrTerminated
		}
		return stdout, stderr, &ExitError{Code: ee.ExitCode(), Stderr: string(ee.Stderr)}
	}
	if err != nil {
		return nil, nil, err
	}
	return stdout, stderr, nil
}
