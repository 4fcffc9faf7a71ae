// Package layout computes the ROM partition layout used by the
// range-lock scenarios and serializes it to the descriptor format the
// flashing utility consumes.
//
// The descriptor text is a wire contract: four lines of
// `<start-hex>:<end-hex> <NAME>`, end-inclusive, lowercase hex without a
// 0x prefix, in the fixed order BOTTOM_QUAD, BOTTOM_HALF, TOP_HALF,
// TOP_QUAD. It must be reproduced bit-exact; do not reformat it.
package layout

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Section names as they appear in the descriptor.
const (
	BottomQuad = "BOTTOM_QUAD"
	BottomHalf = "BOTTOM_HALF"
	TopHalf    = "TOP_HALF"
	TopQuad    = "TOP_QUAD"
)

// SectionNames lists the four partitions in descriptor order.
var SectionNames = []string{BottomQuad, BottomHalf, TopHalf, TopQuad}

// InvalidSizeError reports a ROM size the calculator refuses to
// partition. It is raised before any destructive operation is attempted.
type InvalidSizeError struct {
	Size   int64
	Reason string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid rom size %d: %s", e.Size, e.Reason)
}

// Sizes holds the partition boundaries derived from a ROM size.
// All fields are byte offsets; the *Top fields are inclusive upper
// bounds. Computed once per run and read-only thereafter.
type Sizes struct {
	Half          int64 // rom/2
	Quad          int64 // rom/4
	RomTop        int64 // rom-1
	BottomHalfTop int64 // rom/2 - 1
	BottomQuadTop int64 // rom/4 - 1
	TopQuadBottom int64 // 3*(rom/4)
}

// Section is one named partition as (start offset, length).
type Section struct {
	Name   string
	Start  int64
	Length int64
}

// Compute derives the partition boundaries for a ROM of romSize bytes.
// Sizes that are non-positive or odd are rejected.
func Compute(romSize int64) (Sizes, error) {
	if romSize <= 0 {
		return Sizes{}, &InvalidSizeError{Size: romSize, Reason: "must be positive"}
	}
	if romSize%2 != 0 {
		return Sizes{}, &InvalidSizeError{Size: romSize, Reason: "must be even"}
	}
	return Sizes{
		Half:          romSize / 2,
		Quad:          romSize / 4,
		RomTop:        romSize - 1,
		BottomHalfTop: romSize/2 - 1,
		BottomQuadTop: romSize/4 - 1,
		TopQuadBottom: romSize / 4 * 3,
	}, nil
}

// Section returns the named partition as a (start, length) pair.
func (s Sizes) Section(name string) (Section, error) {
	switch name {
	case BottomQuad:
		return Section{Name: name, Start: 0, Length: s.Quad}, nil
	case BottomHalf:
		return Section{Name: name, Start: 0, Length: s.Half}, nil
	case TopHalf:
		return Section{Name: name, Start: s.Half, Length: s.Half}, nil
	case TopQuad:
		return Section{Name: name, Start: s.TopQuadBottom, Length: s.Quad}, nil
	default:
		return Section{}, fmt.Errorf("unknown layout section %q", name)
	}
}

// Descriptor renders the four-line layout descriptor.
// The zero start offsets are written as the literal `000000` the
// flashing utility has always been fed; everything else is bare
// lowercase hex.
func (s Sizes) Descriptor() string {
	var b strings.Builder
	fmt.Fprintf(&b, "000000:%x %s\n", s.BottomQuadTop, BottomQuad)
	fmt.Fprintf(&b, "000000:%x %s\n", s.BottomHalfTop, BottomHalf)
	fmt.Fprintf(&b, "%x:%x %s\n", s.Half, s.RomTop, TopHalf)
	fmt.Fprintf(&b, "%x:%x %s\n", s.TopQuadBottom, s.RomTop, TopQuad)
	return b.String()
}

// WriteFile writes the descriptor to path for the gateway to consume.
func (s Sizes) WriteFile(path string) error {
	return os.WriteFile(path, []byte(s.Descriptor()), 0o644)
}

// Entry is one parsed descriptor line. End is inclusive.
type Entry struct {
	Name  string
	Start int64
	End   int64
}

// ParseDescriptor reads descriptor text back into entries.
// Used to round-trip the wire format in tests and by operators checking
// --print-layout output.
func ParseDescriptor(text string) ([]Entry, error) {
	var entries []Entry
	for i, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want `start:end NAME`, got %q", i+1, line)
		}
		bounds := strings.SplitN(fields[0], ":", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("line %d: missing `:` in range %q", i+1, fields[0])
		}
		start, err := strconv.ParseInt(bounds[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad start offset %q: %w", i+1, bounds[0], err)
		}
		end, err := strconv.ParseInt(bounds[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad end offset %q: %w", i+1, bounds[1], err)
		}
		entries = append(entries, Entry{Name: fields[1], Start: start, End: end})
	}
	return entries, nil
}
