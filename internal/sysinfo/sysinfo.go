// Package sysinfo wraps the platform introspection tools the harness
// consumes read-only: crossystem for the hardware write-protect switch
// and system summary, mosys for SMBIOS and firmware event log data, and
// the OS release metadata attached to the report.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrUnknownWPState reports crossystem output from which the hardware
// write-protect switch state could not be determined.
var ErrUnknownWPState = errors.New("hardware write-protect state is unknown")

// Commander runs an external tool and returns its stdout.
// Injected so parsers can be exercised without the platform tools.
type Commander func(ctx context.Context, name string, args ...string) ([]byte, error)

// execCommand is the default Commander.
func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ee.ExitCode() == -1 {
			return nil, fmt.Errorf("%s terminated by a signal", name)
		}
		return nil, fmt.Errorf("%s exited with code %d: %s", name, ee.ExitCode(), strings.TrimSpace(string(ee.Stderr)))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tools queries the platform introspection commands.
type Tools struct {
	run Commander
	log *slog.Logger
}

// New returns a Tools using the real platform commands.
func New(log *slog.Logger) *Tools {
	return &Tools{run: execCommand, log: log}
}

// NewWithCommander is New with an injected Commander, for tests.
func NewWithCommander(log *slog.Logger, run Commander) *Tools {
	return &Tools{run: run, log: log}
}

// CrosSystem runs crossystem and returns the filtered system summary
// lines together with the hardware write-protect switch state
// (wpsw_cur). The fwid/hwid accumulator lines are dropped from the
// summary, matching what operators expect in the log.
func (t *Tools) CrosSystem(ctx context.Context) ([]string, bool, error) {
	out, err := t.run(ctx, "crossystem")
	if err != nil {
		return nil, false, err
	}
	return parseCrosSystem(string(out))
}

// parseCrosSystem extracts the summary lines and the wpsw_cur value.
func parseCrosSystem(s string) ([]string, bool, error) {
	var summary []string
	var wpLine string
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if strings.Contains(line, "fwid +=") || strings.Contains(line, "hwid +=") {
			continue
		}
		summary = append(summary, line)
		if strings.Contains(line, "wpsw_cur") {
			wpLine = line
		}
	}
	if wpLine == "" {
		return nil, false, ErrUnknownWPState
	}

	val := strings.TrimSpace(wpLine)
	val = strings.TrimPrefix(val, "wpsw_cur")
	val = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(val), "="))
	if val == "" {
		return nil, false, ErrUnknownWPState
	}
	switch val[0] {
	case '1':
		return summary, true, nil
	case '0':
		return summary, false, nil
	default:
		return nil, false, ErrUnknownWPState
	}
}

// HardwareWP returns just the hardware write-protect switch state,
// logging the system summary at debug level.
func (t *Tools) HardwareWP(ctx context.Context) (bool, error) {
	summary, wpen, err := t.CrosSystem(ctx)
	if err != nil {
		return false, err
	}
	t.log.Debug("crossystem summary", "lines", len(summary))
	return wpen, nil
}

// SystemInfo returns the mosys platform summary for the report header.
func (t *Tools) SystemInfo(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "mosys", "-k", "platform", "info")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// FirmwareInfo returns the SMBIOS BIOS summary for the report header.
func (t *Tools) FirmwareInfo(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "mosys", "-k", "smbios", "info", "bios")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// EventlogList returns the firmware event log, one event per line.
func (t *Tools) EventlogList(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "mosys", "eventlog", "list")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DutControlWP drives the servo hardware write-protect line.
// The enable and disable argument pairs are a dut-control contract.
func (t *Tools) DutControlWP(ctx context.Context, assert bool) error {
	var args []string
	if assert {
		args = []string{"fw_wp_en:off", "fw_wp:on"}
	} else {
		args = []string{"fw_wp_en:on", "fw_wp:off"}
	}
	_, err := t.run(ctx, "dut-control", args...)
	return err
}

// OSRelease returns a human-readable OS release string for the report,
// preferring /etc/os-release PRETTY_NAME and falling back to the kernel
// release.
func OSRelease() string {
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
				return strings.Trim(v, `"`)
			}
		}
	}
	if data, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		return strings.TrimSpace(string(data))
	}
	return "<Unknown OS>"
}
