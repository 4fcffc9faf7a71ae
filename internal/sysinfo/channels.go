package sysinfo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// BatteryChannel is the hardware write-protect channel for chips
// qualified in-system (EC, host). Toggling means asking the operator to
// connect or disconnect the battery; there is no feedback channel, so
// the state is confirmed afterward through crossystem.
type BatteryChannel struct {
	tools *Tools
	in    *bufio.Reader
	out   io.Writer
	log   *slog.Logger
}

// NewBatteryChannel returns a channel prompting on out and waiting for
// operator acknowledgement on in.
func NewBatteryChannel(tools *Tools, in io.Reader, out io.Writer, log *slog.Logger) *BatteryChannel {
	return &BatteryChannel{tools: tools, in: bufio.NewReader(in), out: out, log: log}
}

// Toggle prompts the operator to flip the battery. Asserting the signal
// means the battery is connected.
func (b *BatteryChannel) Toggle(ctx context.Context, assert bool) error {
	if assert {
		fmt.Fprintln(b.out, "Replace the battery to assert hardware write-protect.")
	} else {
		fmt.Fprintln(b.out, "Disconnect the battery to de-assert hardware write-protect.")
	}
	return b.pause()
}

// pause blocks until the operator acknowledges the prompt.
func (b *BatteryChannel) pause() error {
	fmt.Fprint(b.out, "Press enter to continue...")
	_, err := b.in.ReadString('\n')
	if err == io.EOF {
		// Non-interactive stdin; carry on rather than wedge the run.
		b.log.Warn("no operator input available, continuing without acknowledgement")
		return nil
	}
	return err
}

// Status reads the write-protect switch state back through crossystem.
func (b *BatteryChannel) Status(ctx context.Context) (bool, error) {
	return b.tools.HardwareWP(ctx)
}
