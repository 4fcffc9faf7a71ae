// Package wp tracks the write-protect state of the chip under test.
//
// Write-protect has two independent layers: the hardware signal (a
// battery or debug-board line the harness can only toggle through an
// external action with no feedback channel) and the software register
// driven through flashrom. The controller enforces the one physical
// coupling between them: software write-protect can be cleared only
// while the hardware signal is de-asserted.
package wp

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flashqual/internal/chip"
	"github.com/roach88/flashqual/internal/flashrom"
)

// Status sentinels matched against flashrom --wp-status output.
//
// This is a compatibility string-match policy inherited from the wrapped
// tool: the match is byte-exact against its human-readable text (after
// NFC normalization), and deliberately stays that way. Loosening it
// cannot be validated against real hardware output from here.
const (
	sentinelEnabled  = "write protect is enabled"
	sentinelDisabled = "write protect is disabled"
)

// HardwareChannel toggles and observes the hardware write-protect
// signal. Toggle is fire-and-forget; the only confirmation is a
// subsequent Status query.
type HardwareChannel interface {
	Toggle(ctx context.Context, assert bool) error
	Status(ctx context.Context) (bool, error)
}

// State is one snapshot of both write-protect layers.
type State struct {
	Hardware bool
	Software bool
}

// Controller is the write-protect state machine for one run.
type Controller struct {
	f     flashrom.Flashrom
	hw    HardwareChannel
	canHW bool
	log   *slog.Logger

	state State
	stack []State
}

// New returns a controller for the given chip kind.
//
// Kinds without a hardware toggle channel start, and stay, with the
// hardware layer asserted.
func New(f flashrom.Flashrom, kind chip.Kind, hw HardwareChannel, log *slog.Logger) *Controller {
	c := &Controller{f: f, hw: hw, canHW: kind.CanControlHardware(), log: log}
	if !c.canHW {
		c.state.Hardware = true
	}
	return c
}

// CanControlHardware reports whether the hardware layer can be toggled
// on this fixture.
func (c *Controller) CanControlHardware() bool { return c.canHW }

// Current returns the cached state pair.
func (c *Controller) Current() State { return c.state }

// Sync refreshes the cached state from ground truth: the hardware
// channel (when one exists) and the software status query.
func (c *Controller) Sync(ctx context.Context) error {
	if c.canHW {
		hw, err := c.hw.Status(ctx)
		if err != nil {
			return &Error{Code: CodeUnsupported, Message: "cannot determine hardware write-protect state", Err: err}
		}
		c.state.Hardware = hw
	}
	sw, err := c.Status(ctx)
	if err != nil {
		return err
	}
	c.state.Software = sw
	return nil
}

// SetHardware asserts or de-asserts the hardware write-protect signal.
//
// The toggle action has no feedback channel, so the requested state is
// confirmed by re-querying; one retry is allowed before the operation
// fails as unconfirmed. Kinds without a toggle channel accept assert
// requests as a no-op (the signal is permanently asserted there) and
// refuse de-asserts.
func (c *Controller) SetHardware(ctx context.Context, assert bool) error {
	if !c.canHW {
		if assert {
			return nil
		}
		return &Error{Code: CodeUnsupported, Message: "no hardware write-protect channel for this chip kind"}
	}

	if err := c.hw.Toggle(ctx, assert); err != nil {
		return &Error{Code: CodeUnconfirmed, Message: "hardware toggle dispatch failed", Err: err}
	}

	for attempt := 0; attempt < 2; attempt++ {
		got, err := c.hw.Status(ctx)
		if err != nil {
			return &Error{Code: CodeUnsupported, Message: "cannot confirm hardware write-protect state", Err: err}
		}
		if got == assert {
			c.state.Hardware = assert
			c.log.Debug("hardware write-protect confirmed", "asserted", assert)
			return nil
		}
	}
	return &Error{Code: CodeUnconfirmed, Message: "hardware write-protect state did not match request"}
}

// SetSoftware enables or disables software write-protect.
//
// Disabling while the hardware layer is asserted fails immediately with
// the precondition error and leaves the software state untouched; the
// underlying tool is not invoked. Enabling requests a full-range lock
// (offset 0, length = chip size) because some backends require an
// explicit range alongside the enable flag.
func (c *Controller) SetSoftware(ctx context.Context, enable bool) error {
	if !enable && c.state.Hardware {
		return &Error{Code: CodeHardwareBlocksSoftware,
			Message: "cannot clear software write-protect while hardware write-protect is asserted"}
	}

	if enable {
		size, err := c.f.Size(ctx)
		if err != nil {
			return err
		}
		if err := c.f.WPRange(ctx, flashrom.Range{Start: 0, Length: size}, true); err != nil {
			return err
		}
	} else {
		if err := c.f.WPDisable(ctx); err != nil {
			return err
		}
	}

	got, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if got != enable {
		return &Error{Code: CodeUnconfirmed, Message: "software write-protect state did not match request"}
	}
	c.state.Software = enable
	c.log.Debug("software write-protect confirmed", "enabled", enable)
	return nil
}

// Status queries the software write-protect state from the tool.
//
// Empty output (seen on platforms the tool cannot introspect) and output
// without either sentinel surface as Unsupported so callers can choose
// to warn instead of failing the scenario.
func (c *Controller) Status(ctx context.Context) (bool, error) {
	out, err := c.f.WPStatusOutput(ctx)
	if err != nil {
		return false, err
	}
	out = norm.NFC.String(out)
	if strings.TrimSpace(out) == "" {
		return false, &Error{Code: CodeUnsupported, Message: "write-protect status query returned no output"}
	}
	switch {
	case strings.Contains(out, sentinelEnabled):
		return true, nil
	case strings.Contains(out, sentinelDisabled):
		return false, nil
	default:
		return false, &Error{Code: CodeUnsupported, Message: "write-protect status output carries no known sentinel"}
	}
}

// List returns the protectable ranges the chip advertises.
// Platforms using the kernel SPI driver produce nothing here; that
// surfaces as Unsupported.
func (c *Controller) List(ctx context.Context) (string, error) {
	out, err := c.f.WPList(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", &Error{Code: CodeUnsupported, Message: "wp-list is not supported on platforms using the kernel SPI driver"}
	}
	return out, nil
}

// Push saves the current {hardware, software} pair.
func (c *Controller) Push() {
	c.stack = append(c.stack, c.state)
}

// Pop restores the most recently pushed pair, best-effort.
//
// Pop runs during cleanup, so restore failures are logged and swallowed
// rather than propagated. The software layer is restored unconditionally
// rather than by comparing against the cached state: scenarios drive
// range locks through the gateway directly, and those never pass through
// the controller's cache.
func (c *Controller) Pop(ctx context.Context) {
	if len(c.stack) == 0 {
		c.log.Warn("write-protect pop with no saved state")
		return
	}
	saved := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	// Clearing software write-protect is only legal while the hardware
	// line is down; drop it first when needed, restore it last.
	if !saved.Software && c.state.Hardware {
		if err := c.SetHardware(ctx, false); err != nil {
			c.log.Warn("failed to lower hardware write-protect for restore", "error", err)
		}
	}
	if err := c.SetSoftware(ctx, saved.Software); err != nil {
		c.log.Warn("failed to restore software write-protect", "want", saved.Software, "error", err)
	}
	if saved.Hardware != c.state.Hardware {
		if err := c.SetHardware(ctx, saved.Hardware); err != nil {
			c.log.Warn("failed to restore hardware write-protect", "want", saved.Hardware, "error", err)
		}
	}
}

// Depth returns the number of saved states. Used by tests and the
// sequencer's post-run sanity logging.
func (c *Controller) Depth() int { return len(c.stack) }
