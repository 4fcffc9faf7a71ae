// Package golden maintains the known-good reference image of the chip
// under test. Destructive scenarios bracket themselves with the tracker:
// EnsureGolden as a precondition, and again as a postcondition whenever
// an operation may have left the flash in an ambiguous state. It is the
// harness's only recovery mechanism.
package golden

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/flashqual/internal/flashrom"
)

// DriftError reports that the chip contents diverged from the golden
// image. Unrecoverable is set when rewriting from the golden image did
// not bring the chip back; the run cannot trust the hardware after that.
type DriftError struct {
	Unrecoverable bool
	Err           error
}

func (e *DriftError) Error() string {
	if e.Unrecoverable {
		return fmt.Sprintf("flash contents drifted from golden image and restoration failed: %v", e.Err)
	}
	return fmt.Sprintf("flash contents drifted from golden image: %v", e.Err)
}

func (e *DriftError) Unwrap() error { return e.Err }

// Tracker owns the golden image file for one run.
type Tracker struct {
	f      flashrom.Flashrom
	path   string
	log    *slog.Logger
	golden bool
}

// NewTracker returns a tracker that keeps the golden image at path.
func NewTracker(f flashrom.Flashrom, path string, log *slog.Logger) *Tracker {
	return &Tracker{f: f, path: path, log: log}
}

// Path returns the golden image file path.
func (t *Tracker) Path() string { return t.path }

// Capture reads the chip into the golden image file and verifies the
// read back against the chip. Called once per run before any scenario.
func (t *Tracker) Capture(ctx context.Context) error {
	if err := t.f.Read(ctx, t.path); err != nil {
		return fmt.Errorf("capturing golden image: %w", err)
	}
	if err := t.f.Verify(ctx, t.path); err != nil {
		t.golden = false
		return fmt.Errorf("verifying captured golden image: %w", err)
	}
	t.golden = true
	return nil
}

// IsGolden reports whether the most recent verification against the
// golden image succeeded. Pure query; it does not touch the hardware.
func (t *Tracker) IsGolden() bool { return t.golden }

// Invalidate records that the chip contents are no longer known to
// match the golden image. Destructive scenarios call this after erase
// or partial-write operations.
func (t *Tracker) Invalidate() { t.golden = false }

// EnsureGolden verifies the chip against the golden image, rewriting
// the chip from it when verification fails. A second verification
// failure after the rewrite is unrecoverable: the operator is warned
// because the physical chip may be left in a non-golden state.
func (t *Tracker) EnsureGolden(ctx context.Context) error {
	if err := t.f.Verify(ctx, t.path); err == nil {
		t.golden = true
		return nil
	}

	t.golden = false
	t.log.Warn("flash image in an inconsistent state, attempting to restore from golden image")
	if err := t.f.Write(ctx, t.path); err != nil {
		t.log.Warn("golden image restoration failed; chip may be left non-golden", "error", err)
		return &DriftError{Unrecoverable: true, Err: err}
	}
	if err := t.f.Verify(ctx, t.path); err != nil {
		t.log.Warn("golden image restoration did not verify; chip may be left non-golden", "error", err)
		return &DriftError{Unrecoverable: true, Err: err}
	}
	t.golden = true
	return nil
}
