package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/flashqual/internal/chip"
	"github.com/roach88/flashqual/internal/flashrom"
	"github.com/roach88/flashqual/internal/golden"
	"github.com/roach88/flashqual/internal/journal"
	"github.com/roach88/flashqual/internal/layout"
	"github.com/roach88/flashqual/internal/plan"
	"github.com/roach88/flashqual/internal/scenarios"
	"github.com/roach88/flashqual/internal/sysinfo"
	"github.com/roach88/flashqual/internal/tester"
	"github.com/roach88/flashqual/internal/wp"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	PrintLayout bool
	Plan        string
	Journal     string
	WorkDir     string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <flashrom-binary> <ec|host|servo-v2|dediprog>",
		Short: "Run the qualification sequence against a flash chip",
		Long: `Run the full AVL qualification sequence against the chip reached
through the given flashrom binary and programmer target.

The run captures a golden image of the chip before the first scenario and
restores the chip from it whenever a scenario leaves the flash in an
inconsistent state. Scenario failures never abort the run; they are
collated into the final report.

Example:
  flashqual run /usr/sbin/flashrom host
  flashqual run ./flashrom servo-v2 --journal ./qual.db --verbose`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQualification(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.PrintLayout, "print-layout", false, "print the computed ROM layout before running")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to a YAML run plan")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to a SQLite results journal")
	cmd.Flags().StringVar(&opts.WorkDir, "workdir", "", "scratch directory (default: a fresh temp dir)")

	return cmd
}

func runQualification(opts *RunOptions, flashromPath, target string, cmd *cobra.Command) error {
	log := configureLogging(opts.Verbose)
	startedAt := time.Now()

	kind, err := chip.Parse(target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target", err)
	}

	// An optional plan narrows the scenario set and fixes file locations.
	// Explicit flags win over plan values.
	var keep []string
	if opts.Plan != "" {
		p, err := plan.Load(opts.Plan, scenarios.Names())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load run plan", err)
		}
		keep = p.Scenarios
		if opts.WorkDir == "" {
			opts.WorkDir = p.WorkDir
		}
		if opts.Journal == "" {
			opts.Journal = p.Journal
		}
		opts.PrintLayout = opts.PrintLayout || p.PrintLayout
	}

	workdir := opts.WorkDir
	if workdir == "" {
		workdir, err = os.MkdirTemp("", "flashqual-*")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create scratch directory", err)
		}
	} else if err := os.MkdirAll(workdir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create scratch directory", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	f := flashrom.New(flashromPath, kind, log)

	log.Info("identifying flash chip", "target", kind.String())
	chipName, err := f.Name(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to identify flash chip", err)
	}
	size, err := f.Size(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flash chip size", err)
	}
	log.Info("flash chip identified", "name", chipName, "size", size)

	sizes, err := layout.Compute(size)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot partition this chip", err)
	}
	if opts.PrintLayout {
		fmt.Fprint(cmd.OutOrStdout(), sizes.Descriptor())
	}
	layoutPath := filepath.Join(workdir, "layout.txt")
	if err := sizes.WriteFile(layoutPath); err != nil {
		return WrapExitError(ExitCommandError, "failed to write layout descriptor", err)
	}

	randomPath := filepath.Join(workdir, "random.bin")
	if err := scenarios.WriteRandomImage(randomPath, size); err != nil {
		return WrapExitError(ExitCommandError, "failed to write random image", err)
	}

	tools := sysinfo.New(log)
	ctl := wp.New(f, kind, hardwareChannel(kind, tools, cmd, log), log)

	tracker := golden.NewTracker(f, filepath.Join(workdir, "golden.bin"), log)
	log.Info("capturing golden image", "path", tracker.Path())
	if err := tracker.Capture(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to capture golden image", err)
	}

	env := &tester.Env{
		Kind:            kind,
		Flashrom:        f,
		WP:              ctl,
		Golden:          tracker,
		Sysinfo:         tools,
		Layout:          sizes,
		LayoutPath:      layoutPath,
		RandomImagePath: randomPath,
		Log:             log,
	}

	cases := scenarios.Filter(scenarios.Cases(kind, tools), keep)
	results := tester.New(env, log).RunAll(ctx, cases)
	if d := ctl.Depth(); d != 0 {
		log.Warn("write-protect state stack not empty after run", "depth", d)
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate run id", err)
	}
	md := tester.Metadata{
		RunID:     runID,
		ChipName:  chipName,
		OSRelease: sysinfo.OSRelease(),
	}
	if md.SystemInfo, err = tools.SystemInfo(ctx); err != nil {
		log.Warn("system info unavailable", "error", err)
	}
	if md.FirmwareInfo, err = tools.FirmwareInfo(ctx); err != nil {
		log.Warn("firmware info unavailable", "error", err)
	}

	tester.Collate(cmd.OutOrStdout(), results, md, log)

	if opts.Journal != "" {
		if err := recordRun(ctx, opts.Journal, runID, startedAt, kind, chipName, md.OSRelease, results); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal results", err)
		}
		log.Info("results journaled", "path", opts.Journal, "run_id", runID)
	}

	// Scenario failures live in the report, not in the exit status; a
	// nonzero exit means the harness itself could not run.
	if n := tester.CountNonPass(results); n > 0 {
		log.Warn("scenarios did not pass", "failed", n, "total", len(results))
	}
	return nil
}

// hardwareChannel returns the hardware write-protect channel for the
// fixture, or nil for kinds with no channel at all. Servo targets have
// no controller channel either: their write-protect lines are driven by
// the per-scenario dut-control hooks.
func hardwareChannel(kind chip.Kind, tools *sysinfo.Tools, cmd *cobra.Command, log *slog.Logger) wp.HardwareChannel {
	switch kind {
	case chip.EC, chip.Host:
		return sysinfo.NewBatteryChannel(tools, cmd.InOrStdin(), cmd.OutOrStdout(), log)
	default:
		return nil
	}
}

func recordRun(ctx context.Context, path string, runID uuid.UUID, startedAt time.Time,
	kind chip.Kind, chipName, osRelease string, results []tester.Result) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	run := journal.Run{
		ID:        runID,
		StartedAt: startedAt,
		ChipKind:  kind.String(),
		ChipName:  chipName,
		OSRelease: osRelease,
	}
	if err := j.RecordRun(ctx, run); err != nil {
		return err
	}
	return j.RecordResults(ctx, runID, results)
}
