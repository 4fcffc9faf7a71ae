package flashrom

import (
	"fmt"
	"strings"
)

// Options describes one flashrom invocation. The zero value dispatches
// with no operation flags at all (flashrom then just probes the chip).
//
// Option groups mirror the flashrom CLI: write-protect sub-options, one
// io-operation, layout/image selectors, and standalone flags.
type Options struct {
	WP WPOptions
	IO IOOptions

	Layout string // -l <file>
	Image  string // -i <name>

	FlashName  bool // --flash-name
	GetSize    bool // --get-size
	IgnoreFMAP bool // --ignore-fmap
	Verbose    bool // -V
}

// WPOptions holds the write-protect sub-options.
type WPOptions struct {
	// Range requests --wp-range <start> <len> when set.
	Range *Range

	Status  bool // --wp-status
	List    bool // --wp-list
	Enable  bool // --wp-enable
	Disable bool // --wp-disable
}

// Range is a (start, length) pair in bytes.
type Range struct {
	Start  int64
	Length int64
}

// IOOptions holds the io-operation sub-options. At most one may be set.
type IOOptions struct {
	Read   string // -r <file>
	Write  string // -w <file>
	Verify string // -v <file>
	Erase  bool   // -E
}

// hexArg renders a byte offset the way flashrom's --wp-range expects it.
func hexArg(v int64) string {
	return fmt.Sprintf("0x%06X", v)
}

// Args translates the option set into a flat argument list, without the
// leading programmer selector. It rejects conflicting io-operations and
// any value containing whitespace: flashrom argument values must never
// embed spaces.
func (o Options) Args() ([]string, error) {
	ioCount := 0
	for _, set := range []bool{o.IO.Read != "", o.IO.Write != "", o.IO.Verify != "", o.IO.Erase} {
		if set {
			ioCount++
		}
	}
	if ioCount > 1 {
		return nil, ErrConflictingIO
	}

	var args []string

	if o.WP.Range != nil {
		args = append(args, "--wp-range", hexArg(o.WP.Range.Start), hexArg(o.WP.Range.Length))
	}
	switch {
	case o.WP.Status:
		args = append(args, "--wp-status")
	case o.WP.List:
		args = append(args, "--wp-list")
	case o.WP.Enable:
		args = append(args, "--wp-enable")
	case o.WP.Disable:
		args = append(args, "--wp-disable")
	}

	switch {
	case o.IO.Read != "":
		args = append(args, "-r", o.IO.Read)
	case o.IO.Write != "":
		args = append(args, "-w", o.IO.Write)
	case o.IO.Verify != "":
		args = append(args, "-v", o.IO.Verify)
	case o.IO.Erase:
		args = append(args, "-E")
	}

	if o.Layout != "" {
		args = append(args, "-l", o.Layout)
	}
	if o.Image != "" {
		args = append(args, "-i", o.Image)
	}

	if o.FlashName {
		args = append(args, "--flash-name")
	}
	if o.GetSize {
		args = append(args, "--get-size")
	}
	if o.IgnoreFMAP {
		args = append(args, "--ignore-fmap")
	}
	if o.Verbose {
		args = append(args, "-V")
	}

	for _, a := range args {
		if strings.ContainsAny(a, " \t\n") {
			return nil, fmt.Errorf("argument %q contains whitespace", a)
		}
	}

	return args, nil
}
