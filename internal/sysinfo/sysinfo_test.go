package sysinfo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommander replays scripted output per command name and records
// every invocation.
type fakeCommander struct {
	outputs map[string]string
	err     error

	calls [][]string
}

func (f *fakeCommander) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.outputs[name]), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const crossystemSample = `arch                   = x86            # Platform architecture
fwid                   = Google_Link.1234.0.0 # Active firmware ID
fwid += extra line noise
hwid += more accumulator noise
wpsw_cur               = 1              # Firmware write-protect hardware switch
`

func TestParseCrosSystem(t *testing.T) {
	summary, wpen, err := parseCrosSystem(crossystemSample)
	require.NoError(t, err)
	assert.True(t, wpen)

	// Accumulator lines are dropped, everything else stays.
	require.Len(t, summary, 3)
	for _, line := range summary {
		assert.NotContains(t, line, "+=")
	}
}

func TestParseCrosSystem_Disabled(t *testing.T) {
	_, wpen, err := parseCrosSystem("wpsw_cur = 0 # switch\n")
	require.NoError(t, err)
	assert.False(t, wpen)
}

func TestParseCrosSystem_Unknown(t *testing.T) {
	_, _, err := parseCrosSystem("arch = x86\n")
	assert.ErrorIs(t, err, ErrUnknownWPState)

	_, _, err = parseCrosSystem("wpsw_cur = ?\n")
	assert.ErrorIs(t, err, ErrUnknownWPState)

	_, _, err = parseCrosSystem("wpsw_cur =\n")
	assert.ErrorIs(t, err, ErrUnknownWPState)
}

func TestHardwareWP(t *testing.T) {
	cmd := &fakeCommander{outputs: map[string]string{"crossystem": crossystemSample}}
	tools := NewWithCommander(testLogger(), cmd.run)

	wpen, err := tools.HardwareWP(context.Background())
	require.NoError(t, err)
	assert.True(t, wpen)
	require.Len(t, cmd.calls, 1)
	assert.Equal(t, []string{"crossystem"}, cmd.calls[0])
}

func TestDutControlWP_ArgumentPairs(t *testing.T) {
	cmd := &fakeCommander{outputs: map[string]string{}}
	tools := NewWithCommander(testLogger(), cmd.run)

	require.NoError(t, tools.DutControlWP(context.Background(), true))
	require.NoError(t, tools.DutControlWP(context.Background(), false))

	require.Len(t, cmd.calls, 2)
	assert.Equal(t, []string{"dut-control", "fw_wp_en:off", "fw_wp:on"}, cmd.calls[0])
	assert.Equal(t, []string{"dut-control", "fw_wp_en:on", "fw_wp:off"}, cmd.calls[1])
}

func TestMosysQueries(t *testing.T) {
	cmd := &fakeCommander{outputs: map[string]string{
		"mosys": "vendor=\"Google\"\n",
	}}
	tools := NewWithCommander(testLogger(), cmd.run)

	info, err := tools.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vendor=\"Google\"", info)

	_, err = tools.FirmwareInfo(context.Background())
	require.NoError(t, err)

	_, err = tools.EventlogList(context.Background())
	require.NoError(t, err)

	require.Len(t, cmd.calls, 3)
	assert.Equal(t, []string{"mosys", "-k", "platform", "info"}, cmd.calls[0])
	assert.Equal(t, []string{"mosys", "-k", "smbios", "info", "bios"}, cmd.calls[1])
	assert.Equal(t, []string{"mosys", "eventlog", "list"}, cmd.calls[2])
}

func TestTools_CommandFailure(t *testing.T) {
	cmd := &fakeCommander{err: errors.New("tool not found")}
	tools := NewWithCommander(testLogger(), cmd.run)

	_, err := tools.SystemInfo(context.Background())
	assert.Error(t, err)
	_, _, err = tools.CrosSystem(context.Background())
	assert.Error(t, err)
}

func TestBatteryChannel_TogglePrompts(t *testing.T) {
	cmd := &fakeCommander{outputs: map[string]string{"crossystem": crossystemSample}}
	tools := NewWithCommander(testLogger(), cmd.run)

	out := &strings.Builder{}
	ch := NewBatteryChannel(tools, strings.NewReader("\n\n"), out, testLogger())

	require.NoError(t, ch.Toggle(context.Background(), false))
	assert.Contains(t, out.String(), "Disconnect the battery")
	assert.Contains(t, out.String(), "Press enter to continue...")

	require.NoError(t, ch.Toggle(context.Background(), true))
	assert.Contains(t, out.String(), "Replace the battery")
}

func TestBatteryChannel_NonInteractiveStdin(t *testing.T) {
	tools := NewWithCommander(testLogger(), (&fakeCommander{}).run)
	ch := NewBatteryChannel(tools, strings.NewReader(""), io.Discard, testLogger())

	// EOF on stdin must not wedge the run.
	require.NoError(t, ch.Toggle(context.Background(), true))
}

func TestBatteryChannel_StatusReadsCrossystem(t *testing.T) {
	cmd := &fakeCommander{outputs: map[string]string{"crossystem": "wpsw_cur = 0\n"}}
	tools := NewWithCommander(testLogger(), cmd.run)
	ch := NewBatteryChannel(tools, strings.NewReader(""), io.Discard, testLogger())

	asserted, err := ch.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, asserted)
}

func TestOSRelease(t *testing.T) {
	// Whatever the host is, the fallback chain must produce something.
	assert.NotEmpty(t, OSRelease())
}
