package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	s, err := Compute(0x800000) // 8 MiB
	require.NoError(t, err)

	assert.Equal(t, int64(0x400000), s.Half)
	assert.Equal(t, int64(0x200000), s.Quad)
	assert.Equal(t, int64(0x7fffff), s.RomTop)
	assert.Equal(t, int64(0x3fffff), s.BottomHalfTop)
	assert.Equal(t, int64(0x1fffff), s.BottomQuadTop)
	assert.Equal(t, int64(0x600000), s.TopQuadBottom)
}

func TestCompute_InvalidSizes(t *testing.T) {
	for _, size := range []int64{0, -4, -0x800000} {
		_, err := Compute(size)
		var ise *InvalidSizeError
		require.ErrorAs(t, err, &ise, "size %d", size)
		assert.Equal(t, size, ise.Size)
	}

	_, err := Compute(0x800001)
	var ise *InvalidSizeError
	require.ErrorAs(t, err, &ise)
	assert.Contains(t, ise.Error(), "even")
}

func TestSection(t *testing.T) {
	s, err := Compute(0x800000)
	require.NoError(t, err)

	tests := []struct {
		name          string
		start, length int64
	}{
		{BottomQuad, 0, 0x200000},
		{BottomHalf, 0, 0x400000},
		{TopHalf, 0x400000, 0x400000},
		{TopQuad, 0x600000, 0x200000},
	}
	for _, tt := range tests {
		sec, err := s.Section(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.start, sec.Start, tt.name)
		assert.Equal(t, tt.length, sec.Length, tt.name)
	}

	_, err = s.Section("MIDDLE_THIRD")
	assert.Error(t, err)
}

func TestDescriptor_Golden(t *testing.T) {
	s, err := Compute(0x800000)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "descriptor_8mib", []byte(s.Descriptor()))
}

func TestDescriptor_RoundTrip(t *testing.T) {
	s, err := Compute(0x400000)
	require.NoError(t, err)

	entries, err := ParseDescriptor(s.Descriptor())
	require.NoError(t, err)

	want := []Entry{
		{Name: BottomQuad, Start: 0, End: s.BottomQuadTop},
		{Name: BottomHalf, Start: 0, End: s.BottomHalfTop},
		{Name: TopHalf, Start: s.Half, End: s.RomTop},
		{Name: TopQuad, Start: s.TopQuadBottom, End: s.RomTop},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDescriptor_Malformed(t *testing.T) {
	_, err := ParseDescriptor("000000 BOTTOM_QUAD\n")
	assert.Error(t, err)

	_, err = ParseDescriptor("000000:1fffff\n")
	assert.Error(t, err)

	_, err = ParseDescriptor("zz:1fffff BOTTOM_QUAD\n")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	s, err := Compute(0x800000)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layout.txt")
	require.NoError(t, s.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, s.Descriptor(), string(data))
}
