// Package scenarios implements the qualification scenarios the harness
// runs against a chip. Each scenario is a small type satisfying
// tester.Scenario; scenario-local configuration (such as the layout
// section a partial-lock scenario targets) is fixed by its constructor.
package scenarios

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/flashqual/internal/chip"
	"github.com/roach88/flashqual/internal/tester"
	"github.com/roach88/flashqual/internal/wp"
)

// ToggleWP drives software write-protect to a known-disabled baseline,
// de-asserting the hardware layer first when the fixture allows it.
// Later scenarios depend on starting from this baseline.
type ToggleWP struct{}

// NewToggleWP returns the write-protect baseline scenario.
func NewToggleWP() *ToggleWP { return &ToggleWP{} }

func (s *ToggleWP) Run(ctx context.Context, env *tester.Env) error {
	// Not strictly part of the scenario: the range list is allowed to be
	// unsupported on some platforms, so it only ever warns.
	if list, err := env.WP.List(ctx); err != nil {
		if !wp.IsUnsupported(err) {
			return err
		}
		env.Log.Warn("write-protect range list unavailable", "error", err)
	} else {
		env.Log.Info("write-protect ranges", "list", strings.TrimRight(list, "\n"))
	}

	if err := env.WP.Sync(ctx); err != nil {
		if !wp.IsUnsupported(err) {
			return err
		}
		env.Log.Warn("cannot determine write-protect ground truth", "error", err)
	}

	state := env.WP.Current()
	env.Log.Info("write-protect state at entry",
		"hardware", state.Hardware, "software", state.Software)

	if state.Software && state.Hardware {
		if err := env.WP.SetHardware(ctx, false); err != nil {
			return fmt.Errorf("de-asserting hardware write-protect: %w", err)
		}
	}
	if env.WP.Current().Software {
		env.Log.Warn("chip is write protected, attempting to disable")
		if err := env.WP.SetSoftware(ctx, false); err != nil {
			return fmt.Errorf("disabling software write-protect: %w", err)
		}
	}

	enabled, err := env.WP.Status(ctx)
	if err != nil {
		return err
	}
	if enabled {
		return errors.New("cannot disable write protect, cannot continue")
	}
	env.Log.Info("successfully disabled write-protect")
	return nil
}

// Read dumps the chip and verifies the dump against the chip.
type Read struct{}

// NewRead returns the read scenario.
func NewRead() *Read { return &Read{} }

func (s *Read) Run(ctx context.Context, env *tester.Env) error {
	path := filepath.Join(filepath.Dir(env.Golden.Path()), "read.bin")
	if err := env.Flashrom.Read(ctx, path); err != nil {
		return err
	}
	return env.Flashrom.Verify(ctx, path)
}

// EraseWrite checks that erase is refused while write-protect is
// asserted, then that erase and a golden rewrite succeed once it is
// released. The chip is left golden, with write-protect restored to its
// entry state.
type EraseWrite struct{}

// NewEraseWrite returns the erase/write scenario.
func NewEraseWrite() *EraseWrite { return &EraseWrite{} }

func (s *EraseWrite) Run(ctx context.Context, env *tester.Env) error {
	if err := env.Golden.EnsureGolden(ctx); err != nil {
		return err
	}

	env.WP.Push()
	defer env.WP.Pop(ctx)

	if err := env.WP.SetSoftware(ctx, true); err != nil {
		return err
	}
	if err := env.WP.SetHardware(ctx, true); err != nil {
		return err
	}

	if err := env.Flashrom.Erase(ctx); err == nil {
		// The chip erased under full protection. Release protection and
		// restore before reporting so later scenarios stay safe.
		env.Golden.Invalidate()
		if err := env.WP.SetHardware(ctx, false); err != nil {
			return err
		}
		if err := env.WP.SetSoftware(ctx, false); err != nil {
			return err
		}
		if restoreErr := env.Golden.EnsureGolden(ctx); restoreErr != nil {
			return restoreErr
		}
		return errors.New("write protect asserted however the chip can still be erased")
	}

	if err := env.WP.SetHardware(ctx, false); err != nil {
		return err
	}
	if err := env.WP.SetSoftware(ctx, false); err != nil {
		return err
	}

	if err := env.Flashrom.Erase(ctx); err != nil {
		return fmt.Errorf("erase with write-protect released: %w", err)
	}
	env.Golden.Invalidate()
	return env.Golden.EnsureGolden(ctx)
}

// VerifyFail verifies the chip against a chip-sized random buffer.
// Registered with an expected-Fail conclusion: success here would mean
// the tool cannot tell distinct images apart.
type VerifyFail struct{}

// NewVerifyFail returns the verify-mismatch scenario.
func NewVerifyFail() *VerifyFail { return &VerifyFail{} }

func (s *VerifyFail) Run(ctx context.Context, env *tester.Env) error {
	return env.Flashrom.Verify(ctx, env.RandomImagePath)
}

// Lock validates the coupling between the two write-protect layers:
// the software layer must release only while the hardware layer is
// de-asserted, and must hold while it is asserted.
type Lock struct{}

// NewLock returns the lock-coupling scenario.
func NewLock() *Lock { return &Lock{} }

func (s *Lock) Run(ctx context.Context, env *tester.Env) error {
	env.WP.Push()
	defer env.WP.Pop(ctx)

	if err := env.WP.SetHardware(ctx, false); err != nil {
		return fmt.Errorf("de-asserting hardware write-protect: %w", err)
	}
	// Don't assume the software state; establish it.
	if err := env.WP.SetSoftware(ctx, true); err != nil {
		return err
	}

	if err := env.WP.SetSoftware(ctx, false); err != nil {
		return fmt.Errorf("software write-protect should release while hardware is de-asserted: %w", err)
	}
	if enabled, err := env.WP.Status(ctx); err != nil {
		return err
	} else if enabled {
		return errors.New("software write-protect still enabled after release")
	}

	// The other side of the coupling: asserted hardware pins software.
	if err := env.WP.SetSoftware(ctx, true); err != nil {
		return err
	}
	if err := env.WP.SetHardware(ctx, true); err != nil {
		return fmt.Errorf("asserting hardware write-protect: %w", err)
	}

	err := env.WP.SetSoftware(ctx, false)
	if err == nil {
		return errors.New("software write-protect released although hardware write-protect was asserted")
	}
	if !wp.IsHardwareBlocksSoftware(err) {
		return fmt.Errorf("releasing software write-protect under hardware write-protect: %w", err)
	}

	if enabled, statusErr := env.WP.Status(ctx); statusErr != nil {
		return statusErr
	} else if !enabled {
		return errors.New("software write protect was not enabled")
	}
	return nil
}

// EventlogSanity checks that the firmware event log contains at least
// one event, as an indication that the firmware can actually write to
// flash. The event log only exists for the host chip; other kinds skip.
type EventlogSanity struct{}

// NewEventlogSanity returns the event log scenario.
func NewEventlogSanity() *EventlogSanity { return &EventlogSanity{} }

func (s *EventlogSanity) Run(ctx context.Context, env *tester.Env) error {
	if env.Kind != chip.Host {
		env.Log.Info("skipping event log sanity check for non-host chip")
		return nil
	}
	log, err := env.Sysinfo.EventlogList(ctx)
	if err != nil {
		return err
	}
	events := 0
	for _, line := range strings.Split(log, "\n") {
		if line != "" {
			events++
		}
	}
	if events == 0 {
		return errors.New("firmware event log contained no events")
	}
	return nil
}

// ConsistencyCheck re-establishes the golden image at the end of the
// run, restoring it if any earlier scenario left the chip dirty.
type ConsistencyCheck struct{}

// NewConsistencyCheck returns the end-of-run consistency scenario.
func NewConsistencyCheck() *ConsistencyCheck { return &ConsistencyCheck{} }

func (s *ConsistencyCheck) Run(ctx context.Context, env *tester.Env) error {
	return env.Golden.EnsureGolden(ctx)
}
