package tester

import (
	"log/slog"

	"github.com/roach88/flashqual/internal/chip"
	"github.com/roach88/flashqual/internal/flashrom"
	"github.com/roach88/flashqual/internal/golden"
	"github.com/roach88/flashqual/internal/layout"
	"github.com/roach88/flashqual/internal/sysinfo"
	"github.com/roach88/flashqual/internal/wp"
)

// Env is the shared mutable test environment for one run.
//
// It is exclusively owned by the Sequencer and handed to scenarios one
// at a time; nothing here is safe for concurrent use and nothing needs
// to be. The golden image and write-protect state are run-scoped
// singletons, torn down when the run completes.
type Env struct {
	Kind     chip.Kind
	Flashrom flashrom.Flashrom
	WP       *wp.Controller
	Golden   *golden.Tracker
	Sysinfo  *sysinfo.Tools

	// Layout is the partition map computed from the chip's reported
	// size, read-only after setup.
	Layout layout.Sizes

	// LayoutPath is the descriptor file the gateway addresses named
	// sections through.
	LayoutPath string

	// RandomImagePath is a chip-sized random buffer used by scenarios
	// that must attempt to corrupt the flash.
	RandomImagePath string

	Log *slog.Logger
}
