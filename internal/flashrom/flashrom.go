// Package flashrom is the command gateway to the external flashing
// utility. It translates a validated option set into an argument list,
// always prefixed with the programmer selector for the target chip kind,
// runs the binary, and maps process failure into a small error taxonomy
// (ExitError, ErrTerminated, ProtocolError).
//
// The gateway is stateless: it performs no caching and holds no chip
// state. The real binary performs irreversible hardware operations, so
// everything above this package goes through the Flashrom interface and
// tests substitute a fake.
package flashrom

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/flashqual/internal/chip"
)

// Flashrom is the operation surface the rest of the harness consumes.
type Flashrom interface {
	// Name returns the chip identity reported by --flash-name.
	Name(ctx context.Context) (string, error)

	// Size returns the chip size in bytes reported by --get-size.
	Size(ctx context.Context) (int64, error)

	// Read dumps the chip contents into path.
	Read(ctx context.Context, path string) error

	// Write programs the chip from path.
	Write(ctx context.Context, path string) error

	// Verify compares the chip contents against path.
	Verify(ctx context.Context, path string) error

	// Erase erases the whole chip.
	Erase(ctx context.Context) error

	// WriteSection programs one named layout section from imagePath,
	// addressing it through the layout descriptor at layoutPath.
	WriteSection(ctx context.Context, layoutPath, section, imagePath string) error

	// WPStatusOutput returns the raw --wp-status output for sentinel
	// matching by the write-protect controller.
	WPStatusOutput(ctx context.Context) (string, error)

	// WPList returns the raw --wp-list output. Some kernel SPI driver
	// platforms produce nothing here; the empty string is returned
	// as-is for the caller to classify.
	WPList(ctx context.Context) (string, error)

	// WPRange sets or clears software write-protect over a byte range.
	WPRange(ctx context.Context, r Range, enable bool) error

	// WPDisable clears software write-protect without a range.
	WPDisable(ctx context.Context) error
}

// Cmd invokes a flashrom binary for one chip kind.
type Cmd struct {
	path   string
	kind   chip.Kind
	runner Runner
	log    *slog.Logger
}

var _ Flashrom = (*Cmd)(nil)

// New returns a gateway around the flashrom binary at path, targeting
// the given chip kind.
func New(path string, kind chip.Kind, log *slog.Logger) *Cmd {
	return &Cmd{path: path, kind: kind, runner: execRunner{}, log: log}
}

// NewWithRunner is New with an injected Runner. Tests use it to drive
// the state machines above the gateway without hardware.
func NewWithRunner(path string, kind chip.Kind, log *slog.Logger, r Runner) *Cmd {
	return &Cmd{path: path, kind: kind, runner: r, log: log}
}

// Kind returns the chip kind this gateway targets.
func (c *Cmd) Kind() chip.Kind { return c.kind }

// Dispatch translates opts into an argument list and runs the binary.
// The argument list always begins with `-p <selector>`.
func (c *Cmd) Dispatch(ctx context.Context, opts Options) (stdout, stderr []byte, err error) {
	decoded, err := opts.Args()
	if err != nil {
		return nil, nil, err
	}
	args := append([]string{"-p", c.kind.Selector()}, decoded...)

	c.log.Debug("dispatching flashrom", "path", c.path, "args", args)
	stdout, stderr, err = c.runner.Run(ctx, c.path, args)
	if err != nil {
		c.log.Debug("flashrom dispatch failed", "error", err)
		return stdout, stderr, err
	}
	c.log.Debug("flashrom dispatch done",
		"stdout_bytes", len(stdout), "stderr_bytes", len(stderr))
	return stdout, stderr, nil
}

// dropLines removes every line containing the substring m.
// flashrom on CrOS devices mixes coreboot chatter into stdout; expected
// values are recovered by dropping those lines.
func dropLines(s, m string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if !strings.Contains(line, m) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "")
}

func (c *Cmd) Name(ctx context.Context) (string, error) {
	stdout, _, err := c.Dispatch(ctx, Options{FlashName: true})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(dropLines(string(stdout), "coreboot"), " \t\r\n"), nil
}

func (c *Cmd) Size(ctx context.Context) (int64, error) {
	stdout, _, err := c.Dispatch(ctx, Options{GetSize: true})
	if err != nil {
		return 0, err
	}
	out := strings.TrimSpace(dropLines(string(stdout), "coreboot"))
	size, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, &ProtocolError{Output: out, Reason: "--get-size output did not parse as an integer"}
	}
	return size, nil
}

func (c *Cmd) Read(ctx context.Context, path string) error {
	_, _, err := c.Dispatch(ctx, Options{IO: IOOptions{Read: path}})
	return err
}

func (c *Cmd) Write(ctx context.Context, path string) error {
	_, _, err := c.Dispatch(ctx, Options{IO: IOOptions{Write: path}})
	return err
}

func (c *Cmd) Verify(ctx context.Context, path string) error {
	_, _, err := c.Dispatch(ctx, Options{IO: IOOptions{Verify: path}})
	return err
}

func (c *Cmd) Erase(ctx context.Context) error {
	_, _, err := c.Dispatch(ctx, Options{IO: IOOptions{Erase: true}})
	return err
}

func (c *Cmd) WriteSection(ctx context.Context, layoutPath, section, imagePath string) error {
	_, _, err := c.Dispatch(ctx, Options{
		IO:         IOOptions{Write: imagePath},
		Layout:     layoutPath,
		Image:      section,
		IgnoreFMAP: true,
	})
	return err
}

func (c *Cmd) WPStatusOutput(ctx context.Context) (string, error) {
	stdout, _, err := c.Dispatch(ctx, Options{WP: WPOptions{Status: true}})
	if err != nil {
		return "", err
	}
	return string(stdout), nil
}

func (c *Cmd) WPList(ctx context.Context) (string, error) {
	stdout, _, err := c.Dispatch(ctx, Options{WP: WPOptions{List: true}})
	if err != nil {
		return "", err
	}
	return string(stdout), nil
}

func (c *Cmd) WPRange(ctx context.Context, r Range, enable bool) error {
	opts := Options{WP: WPOptions{Range: &r, Enable: enable, Disable: !enable}}
	_, _, err := c.Dispatch(ctx, opts)
	return err
}

func (c *Cmd) WPDisable(ctx context.Context) error {
	_, _, err := c.Dispatch(ctx, Options{WP: WPOptions{Disable: true}})
	return err
}
