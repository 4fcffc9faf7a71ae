// Package tester sequences qualification scenarios against the shared
// test environment and classifies their outcomes.
//
// Scenarios run strictly sequentially, in registration order, each
// borrowing the same mutable environment. There is exactly one physical
// chip; the sequencer owns the environment for the run's duration and
// never aliases it. A scenario that leaves the environment in an
// unexpected state can cascade into later scenarios; the write-protect
// controller and golden tracker are the only isolation the hardware
// offers.
package tester

import (
	"context"
	"fmt"
	"log/slog"
)

// Expectation is the conclusion a scenario declares at registration.
type Expectation int

const (
	// ExpectPass means the scenario body is expected to succeed.
	ExpectPass Expectation = iota
	// ExpectFail means the scenario body is expected to error.
	ExpectFail
)

func (e Expectation) String() string {
	if e == ExpectFail {
		return "Fail"
	}
	return "Pass"
}

// Outcome classifies a finished scenario.
type Outcome int

const (
	// Pass: the scenario behaved as declared (success when expected to
	// pass, or the anticipated error when expected to fail).
	Pass Outcome = iota
	// Fail is reserved for scenarios that cannot run at all.
	Fail
	// UnexpectedPass: the scenario succeeded but was expected to fail.
	UnexpectedPass
	// UnexpectedFail: the scenario errored but was expected to pass.
	UnexpectedFail
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "Pass"
	case Fail:
		return "Fail"
	case UnexpectedPass:
		return "UnexpectedPass"
	case UnexpectedFail:
		return "UnexpectedFail"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ParseOutcome converts a journaled outcome string back into an
// Outcome. The journal stores outcomes by their String form.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "Pass":
		return Pass, nil
	case "Fail":
		return Fail, nil
	case "UnexpectedPass":
		return UnexpectedPass, nil
	case "UnexpectedFail":
		return UnexpectedFail, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}

// Scenario is one independent test case body. Implementations receive
// an exclusive borrow of the environment for the duration of Run.
//
// Scenario-local configuration (e.g. which layout section a partial-lock
// scenario targets) is captured by the implementing type's constructor,
// not by closures over shared state.
type Scenario interface {
	Run(ctx context.Context, env *Env) error
}

// Hook runs before or after a scenario body. Hook errors are logged,
// never propagated: hooks exist for fixture conditioning (e.g. servo
// write-protect lines), not for assertions.
type Hook func(ctx context.Context, env *Env) error

// Case pairs a scenario with its declared expectation.
type Case struct {
	Name     string
	Scenario Scenario
	Expected Expectation

	// Pre and Post bracket the scenario body when set.
	Pre  Hook
	Post Hook
}

// Result is one finished scenario. Err is retained only for
// UnexpectedFail; an anticipated failure's error is deliberately
// dropped at reconciliation so it can never leak into the report.
type Result struct {
	Name    string
	Outcome Outcome
	Err     error
}

// reconcile maps a scenario's actual result against its declared
// expectation.
func reconcile(err error, expected Expectation) (Outcome, error) {
	if err == nil && expected == ExpectFail {
		return UnexpectedPass, nil
	}
	if err != nil && expected == ExpectPass {
		return UnexpectedFail, err
	}
	return Pass, nil
}

// Sequencer runs registered cases against one environment.
type Sequencer struct {
	env *Env
	log *slog.Logger
}

// New returns a sequencer owning env for the run's duration.
func New(env *Env, log *slog.Logger) *Sequencer {
	return &Sequencer{env: env, log: log}
}

// RunAll executes every case in registration order and returns results
// in the same order. Scenario errors never abort the run; they are
// reconciled into outcomes.
func (s *Sequencer) RunAll(ctx context.Context, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		results = append(results, s.runOne(ctx, c))
	}
	return results
}

func (s *Sequencer) runOne(ctx context.Context, c Case) Result {
	s.log.Info("scenario running", "name", c.Name, "expected", c.Expected)

	if c.Pre != nil {
		if err := c.Pre(ctx, s.env); err != nil {
			s.log.Error("scenario pre-hook failed", "name", c.Name, "error", err)
		}
	}

	err := c.Scenario.Run(ctx, s.env)

	if c.Post != nil {
		if hookErr := c.Post(ctx, s.env); hookErr != nil {
			s.log.Error("scenario post-hook failed", "name", c.Name, "error", hookErr)
		}
	}

	outcome, retained := reconcile(err, c.Expected)
	s.log.Info("scenario finished", "name", c.Name, "outcome", outcome.String())
	return Result{Name: c.Name, Outcome: outcome, Err: retained}
}
