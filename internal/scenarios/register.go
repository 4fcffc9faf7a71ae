package scenarios

import (
	"context"

	"github.com/roach88/flashqual/internal/chip"
	"github.com/roach88/flashqual/internal/layout"
	"github.com/roach88/flashqual/internal/sysinfo"
	"github.com/roach88/flashqual/internal/tester"
)

// Scenario names, as they appear in the report and the run plan.
const (
	NameToggleWP         = "Toggle WP"
	NameRead             = "Read"
	NameEraseWrite       = "Erase/Write"
	NameVerifyFail       = "Fail to verify"
	NameLock             = "Lock"
	NameLockTopQuad      = "Lock top quad"
	NameLockBottomQuad   = "Lock bottom quad"
	NameLockBottomHalf   = "Lock bottom half"
	NameLockTopHalf      = "Lock top half"
	NameEventlogSanity   = "Host ELOG sanity"
	NameConsistencyCheck = "Flash image consistency check at end of tests"
)

// Cases builds the full scenario sequence for one chip kind, in the
// order the qualification runs them.
//
// Servo-driven chips get pre/post hooks releasing and re-asserting the
// fixture's write-protect lines around every scenario; the controller
// itself has no hardware channel for that kind.
func Cases(kind chip.Kind, tools *sysinfo.Tools) []tester.Case {
	var pre, post tester.Hook
	if kind == chip.ServoV2 {
		pre = func(ctx context.Context, env *tester.Env) error {
			return tools.DutControlWP(ctx, false)
		}
		post = func(ctx context.Context, env *tester.Env) error {
			return tools.DutControlWP(ctx, true)
		}
	}

	cases := []tester.Case{
		{Name: NameToggleWP, Scenario: NewToggleWP(), Expected: tester.ExpectPass},
		{Name: NameRead, Scenario: NewRead(), Expected: tester.ExpectPass},
		{Name: NameEraseWrite, Scenario: NewEraseWrite(), Expected: tester.ExpectPass},
		{Name: NameVerifyFail, Scenario: NewVerifyFail(), Expected: tester.ExpectFail},
		{Name: NameLock, Scenario: NewLock(), Expected: tester.ExpectPass},
		{Name: NameLockTopQuad, Scenario: NewLockSection(layout.TopQuad), Expected: tester.ExpectPass},
		{Name: NameLockBottomQuad, Scenario: NewLockSection(layout.BottomQuad), Expected: tester.ExpectPass},
		{Name: NameLockBottomHalf, Scenario: NewLockSection(layout.BottomHalf), Expected: tester.ExpectPass},
		{Name: NameLockTopHalf, Scenario: NewLockSection(layout.TopHalf), Expected: tester.ExpectPass},
		{Name: NameEventlogSanity, Scenario: NewEventlogSanity(), Expected: tester.ExpectPass},
		{Name: NameConsistencyCheck, Scenario: NewConsistencyCheck(), Expected: tester.ExpectPass},
	}

	for i := range cases {
		cases[i].Pre = pre
		cases[i].Post = post
	}
	return cases
}

// Names returns every registered scenario name in run order.
func Names() []string {
	return []string{
		NameToggleWP, NameRead, NameEraseWrite, NameVerifyFail, NameLock,
		NameLockTopQuad, NameLockBottomQuad, NameLockBottomHalf,
		NameLockTopHalf, NameEventlogSanity, NameConsistencyCheck,
	}
}

// Filter keeps only the cases whose names appear in keep, preserving
// run order. An empty keep set returns all cases.
func Filter(cases []tester.Case, keep []string) []tester.Case {
	if len(keep) == 0 {
		return cases
	}
	wanted := make(map[string]bool, len(keep))
	for _, name := range keep {
		wanted[name] = true
	}
	var out []tester.Case
	for _, c := range cases {
		if wanted[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
