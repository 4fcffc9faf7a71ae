package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/flashqual/internal/flashrom"
	"github.com/roach88/flashqual/internal/tester"
)

// LockSection range-locks one layout section and proves the lock holds:
// a layout write aimed into the section must fail, and the chip must
// still verify golden afterwards.
type LockSection struct {
	section string
}

// NewLockSection returns a partial-lock scenario for the named layout
// section (layout.BottomQuad and friends).
func NewLockSection(section string) *LockSection {
	return &LockSection{section: section}
}

func (s *LockSection) Run(ctx context.Context, env *tester.Env) error {
	env.Log.Debug("testing section lock", "section", s.section)

	if err := env.Golden.EnsureGolden(ctx); err != nil {
		return err
	}

	sec, err := env.Layout.Section(s.section)
	if err != nil {
		return err
	}

	env.WP.Push()
	defer env.WP.Pop(ctx)

	// Start from a fully released state, then re-assert hardware so the
	// range lock is pinned while the write attempt runs.
	if err := env.WP.SetHardware(ctx, false); err != nil {
		return err
	}
	if err := env.WP.SetSoftware(ctx, false); err != nil {
		return err
	}
	if err := env.WP.SetHardware(ctx, true); err != nil {
		return err
	}

	if err := env.Flashrom.WPRange(ctx, flashrom.Range{Start: sec.Start, Length: sec.Length}, true); err != nil {
		return fmt.Errorf("range-locking %s: %w", s.section, err)
	}
	if enabled, err := env.WP.Status(ctx); err != nil {
		return err
	} else if !enabled {
		return fmt.Errorf("write-protect not reported enabled after range-locking %s", s.section)
	}

	if err := env.Flashrom.WriteSection(ctx, env.LayoutPath, s.section, env.RandomImagePath); err == nil {
		// The locked section took a write. Release protection and restore
		// before reporting; the range lock would refuse the restore write.
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
		return errors.New("section is locked but was overwritable with random data")
	}

	if err := env.Flashrom.Verify(ctx, env.Golden.Path()); err != nil {
		env.Golden.Invalidate()
		return fmt.Errorf("section did not hold the lock, contents were modified: %w", err)
	}
	return nil
}
