package tester

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// ANSI styling for the collated report.
const (
	styleBold  = "\x1b[1m"
	styleReset = "\x1b[0m"
	styleGreen = "\x1b[92m"
	styleRed   = "\x1b[31m"
)

// Metadata describes the platform under test, attached to the report
// header. Purely descriptive.
type Metadata struct {
	RunID        uuid.UUID
	ChipName     string
	OSRelease    string
	SystemInfo   string
	FirmwareInfo string
}

// Collate renders the qualification report for a finished run.
//
// The status line per scenario is color-coded and kept scannable:
// retained error detail for non-Pass outcomes goes to the logger, not
// to the primary status line.
func Collate(w io.Writer, results []Result, md Metadata, log *slog.Logger) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  =============================")
	fmt.Fprintln(w, "  =====  AVL qual RESULTS  ====")
	fmt.Fprintln(w, "  =============================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  %---------------------------%")
	fmt.Fprintf(w, "   run id: %s\n", md.RunID)
	fmt.Fprintf(w, "   os release: %s\n", md.OSRelease)
	fmt.Fprintf(w, "   chip name: %s\n", md.ChipName)
	fmt.Fprintf(w, "   system info:\n%s\n", md.SystemInfo)
	fmt.Fprintf(w, "   firmware info:\n%s\n", md.FirmwareInfo)
	fmt.Fprintln(w, "  %---------------------------%")
	fmt.Fprintln(w)

	for _, r := range results {
		color := styleGreen
		if r.Outcome != Pass {
			color = styleRed
		}
		fmt.Fprintf(w, "  %s<+> %s test:%s %s%s%s\n",
			styleBold, r.Name, styleReset, color, r.Outcome, styleReset)
		if r.Outcome != Pass && r.Err != nil {
			log.Info("scenario failure details", "name", r.Name, "error", r.Err)
		}
	}
	fmt.Fprintln(w)
}

// CountNonPass returns how many results did not conclude Pass.
func CountNonPass(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Outcome != Pass {
			n++
		}
	}
	return n
}
