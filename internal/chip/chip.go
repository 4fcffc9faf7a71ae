// Package chip enumerates the flash chip targets the harness can qualify.
//
// A Kind selects the programmer string passed to flashrom and the
// capabilities the harness may assume for the fixture, most importantly
// whether a hardware write-protect toggle channel exists at all.
package chip

import "fmt"

// Kind identifies the flash chip target under qualification.
type Kind int

const (
	// EC is the embedded controller's flash, programmed in-system.
	EC Kind = iota

	// Host is the host (AP/BIOS) flash, programmed in-system.
	Host

	// ServoV2 is a chip driven externally through a servo v2 debug board.
	ServoV2

	// Dediprog is a chip clipped into a Dediprog SF programmer.
	Dediprog
)

// kindNames maps the accepted CLI spellings to kinds.
var kindNames = map[string]Kind{
	"ec":       EC,
	"host":     Host,
	"servo-v2": ServoV2,
	"dediprog": Dediprog,
}

// Parse converts a CLI target string into a Kind.
// Unrecognized strings are rejected here, before any hardware interaction.
func Parse(s string) (Kind, error) {
	k, ok := kindNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown chip kind %q: must be one of ec, host, servo-v2, dediprog", s)
	}
	return k, nil
}

// String returns the CLI spelling of the kind.
func (k Kind) String() string {
	switch k {
	case EC:
		return "ec"
	case Host:
		return "host"
	case ServoV2:
		return "servo-v2"
	case Dediprog:
		return "dediprog"
	default:
		return fmt.Sprintf("chip.Kind(%d)", int(k))
	}
}

// Selector returns the flashrom programmer selector for the kind,
// passed as `-p <selector>` on every dispatch.
func (k Kind) Selector() string {
	switch k {
	case EC:
		return "ec"
	case Host:
		return "host"
	case ServoV2:
		return "ft2232_spi:type=servo-v2"
	case Dediprog:
		return "dediprog"
	default:
		return ""
	}
}

// CanControlHardware reports whether the harness has a channel for
// toggling the hardware write-protect signal on this fixture.
//
// EC and Host targets run on the device itself, where an operator can
// disconnect the battery (or flip the WP screw) when prompted. External
// programmer fixtures have no such channel; the hardware layer behaves
// as if permanently asserted.
func (k Kind) CanControlHardware() bool {
	switch k {
	case EC, Host:
		return true
	default:
		return false
	}
}
