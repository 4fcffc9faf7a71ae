package golden

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flashqual/internal/flashrom"
)

// fakeFlash models the chip as a single content label. Read snapshots
// the label into the named file slot, Verify compares, Write restores.
type fakeFlash struct {
	content string
	files   map[string]string

	writeErr  error
	verifyErr error // forced mismatch regardless of content

	writes, verifies int
}

func newFakeFlash(content string) *fakeFlash {
	return &fakeFlash{content: content, files: make(map[string]string)}
}

func (f *fakeFlash) Name(ctx context.Context) (string, error) { return "FAKECHIP", nil }
func (f *fakeFlash) Size(ctx context.Context) (int64, error)  { return 0x800000, nil }

func (f *fakeFlash) Read(ctx context.Context, path string) error {
	f.files[path] = f.content
	return nil
}

func (f *fakeFlash) Write(ctx context.Context, path string) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.content = f.files[path]
	return nil
}

func (f *fakeFlash) Verify(ctx context.Context, path string) error {
	f.verifies++
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if f.files[path] != f.content {
		return &flashrom.ExitError{Code: 1, Stderr: "VERIFY FAILED\n"}
	}
	return nil
}

func (f *fakeFlash) Erase(ctx context.Context) error { return nil }
func (f *fakeFlash) WriteSection(ctx context.Context, layoutPath, section, imagePath string) error {
	return nil
}
func (f *fakeFlash) WPStatusOutput(ctx context.Context) (string, error) { return "", nil }
func (f *fakeFlash) WPList(ctx context.Context) (string, error)         { return "", nil }
func (f *fakeFlash) WPRange(ctx context.Context, r flashrom.Range, enable bool) error {
	return nil
}
func (f *fakeFlash) WPDisable(ctx context.Context) error { return nil }

var _ flashrom.Flashrom = (*fakeFlash)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCapture(t *testing.T) {
	f := newFakeFlash("factory-image")
	tr := NewTracker(f, "/work/golden.bin", testLogger())
	assert.False(t, tr.IsGolden())

	require.NoError(t, tr.Capture(context.Background()))
	assert.True(t, tr.IsGolden())
	assert.Equal(t, "factory-image", f.files["/work/golden.bin"])
}

func TestCapture_VerifyFails(t *testing.T) {
	f := newFakeFlash("factory-image")
	f.verifyErr = errors.New("transient readback mismatch")
	tr := NewTracker(f, "/work/golden.bin", testLogger())

	require.Error(t, tr.Capture(context.Background()))
	assert.False(t, tr.IsGolden())
}

func TestEnsureGolden_AlreadyGolden(t *testing.T) {
	f := newFakeFlash("factory-image")
	tr := NewTracker(f, "/work/golden.bin", testLogger())
	require.NoError(t, tr.Capture(context.Background()))

	require.NoError(t, tr.EnsureGolden(context.Background()))
	assert.True(t, tr.IsGolden())
	assert.Zero(t, f.writes)
}

func TestEnsureGolden_RestoresDriftedChip(t *testing.T) {
	f := newFakeFlash("factory-image")
	tr := NewTracker(f, "/work/golden.bin", testLogger())
	require.NoError(t, tr.Capture(context.Background()))

	// Something erased the chip behind the tracker's back.
	f.content = "erased"
	tr.Invalidate()
	assert.False(t, tr.IsGolden())

	require.NoError(t, tr.EnsureGolden(context.Background()))
	assert.True(t, tr.IsGolden())
	assert.Equal(t, "factory-image", f.content)
	assert.Equal(t, 1, f.writes)
}

func TestEnsureGolden_UnrecoverableWrite(t *testing.T) {
	f := newFakeFlash("factory-image")
	tr := NewTracker(f, "/work/golden.bin", testLogger())
	require.NoError(t, tr.Capture(context.Background()))

	f.content = "erased"
	f.writeErr = errors.New("chip refuses writes")

	err := tr.EnsureGolden(context.Background())
	require.Error(t, err)
	assert.False(t, tr.IsGolden())

	var de *DriftError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Unrecoverable)
}

func TestEnsureGolden_UnrecoverableVerify(t *testing.T) {
	f := newFakeFlash("factory-image")
	tr := NewTracker(f, "/work/golden.bin", testLogger())
	require.NoError(t, tr.Capture(context.Background()))

	// The rewrite appears to succeed but verification keeps failing.
	f.content = "erased"
	f.verifyErr = errors.New("persistent mismatch")

	err := tr.EnsureGolden(context.Background())
	require.Error(t, err)

	var de *DriftError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Unrecoverable)
	assert.False(t, tr.IsGolden())
}
