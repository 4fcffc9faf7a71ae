package flashrom

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flashqual/internal/chip"
)

// fakeRunner records dispatched argument lists and replays scripted
// responses.
type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error

	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, path string, args []string) ([]byte, []byte, error) {
	f.calls = append(f.calls, args)
	return f.stdout, f.stderr, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeCmd(kind chip.Kind, r *fakeRunner) *Cmd {
	return NewWithRunner("/usr/sbin/flashrom", kind, testLogger(), r)
}

func TestDispatch_PrefixesProgrammerSelector(t *testing.T) {
	tests := []struct {
		kind chip.Kind
		want string
	}{
		{chip.EC, "ec"},
		{chip.Host, "host"},
		{chip.ServoV2, "ft2232_spi:type=servo-v2"},
		{chip.Dediprog, "dediprog"},
	}
	for _, tt := range tests {
		r := &fakeRunner{}
		c := newFakeCmd(tt.kind, r)
		_, _, err := c.Dispatch(context.Background(), Options{WP: WPOptions{Status: true}})
		require.NoError(t, err)
		require.Len(t, r.calls, 1)
		want := []string{"-p", tt.want, "--wp-status"}
		if diff := cmp.Diff(want, r.calls[0]); diff != "" {
			t.Errorf("argv mismatch for %s (-want +got):\n%s", tt.kind, diff)
		}
	}
}

func TestDispatch_InvalidOptionsNeverRun(t *testing.T) {
	r := &fakeRunner{}
	c := newFakeCmd(chip.Host, r)
	_, _, err := c.Dispatch(context.Background(), Options{IO: IOOptions{Read: "a", Erase: true}})
	assert.ErrorIs(t, err, ErrConflictingIO)
	assert.Empty(t, r.calls)
}

func TestName_DropsCorebootChatter(t *testing.T) {
	r := &fakeRunner{stdout: []byte("coreboot table found at 0x7cc13000\nW25Q64.V\n")}
	c := newFakeCmd(chip.Host, r)
	name, err := c.Name(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "W25Q64.V", name)
}

func TestSize(t *testing.T) {
	r := &fakeRunner{stdout: []byte("8388608\n")}
	c := newFakeCmd(chip.Host, r)
	size, err := c.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8388608), size)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"-p", "host", "--get-size"}, r.calls[0])
}

func TestSize_ProtocolError(t *testing.T) {
	r := &fakeRunner{stdout: []byte("eight megabytes\n")}
	c := newFakeCmd(chip.Host, r)
	_, err := c.Size(context.Background())
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))

	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "eight megabytes", pe.Output)
}

func TestWriteSection_Argv(t *testing.T) {
	r := &fakeRunner{}
	c := newFakeCmd(chip.EC, r)
	err := c.WriteSection(context.Background(), "/work/layout.txt", "BOTTOM_HALF", "/work/rand.bin")
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	want := []string{
		"-p", "ec",
		"-w", "/work/rand.bin",
		"-l", "/work/layout.txt",
		"-i", "BOTTOM_HALF",
		"--ignore-fmap",
	}
	assert.Equal(t, want, r.calls[0])
}

func TestWPRange_Argv(t *testing.T) {
	r := &fakeRunner{}
	c := newFakeCmd(chip.Host, r)

	err := c.WPRange(context.Background(), Range{Start: 0, Length: 0x400000}, true)
	require.NoError(t, err)
	err = c.WPRange(context.Background(), Range{Start: 0x400000, Length: 0x400000}, false)
	require.NoError(t, err)

	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"-p", "host", "--wp-range", "0x000000", "0x400000", "--wp-enable"}, r.calls[0])
	assert.Equal(t, []string{"-p", "host", "--wp-range", "0x400000", "0x400000", "--wp-disable"}, r.calls[1])
}

func TestDispatch_PropagatesRunnerErrors(t *testing.T) {
	wantErr := &ExitError{Code: 1, Stderr: "Erase operation failed!\n"}
	r := &fakeRunner{err: wantErr}
	c := newFakeCmd(chip.Host, r)
	err := c.Erase(context.Background())
	require.Error(t, err)
	assert.True(t, IsExitError(err))

	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)
}

func TestDispatch_Terminated(t *testing.T) {
	r := &fakeRunner{err: ErrTerminated}
	c := newFakeCmd(chip.Host, r)
	err := c.Erase(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
	assert.False(t, IsExitError(err))
}

func TestExitError_Message(t *testing.T) {
	e := &ExitError{Code: 3, Stderr: "no EEPROM detected\n"}
	assert.Equal(t, "flashrom exited with code 3: no EEPROM detected", e.Error())

	e = &ExitError{Code: 3}
	assert.Equal(t, "flashrom exited with code 3", e.Error())
}

func TestErrorPredicates_NilAndForeign(t *testing.T) {
	assert.False(t, IsExitError(nil))
	assert.False(t, IsProtocolError(nil))
	assert.False(t, IsExitError(errors.New("other")))
}
