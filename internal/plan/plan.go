// Package plan loads the optional YAML run plan. A plan narrows a run
// to a subset of scenarios and fixes the scratch and journal locations.
//
// Plans are decoded strictly (unknown fields are rejected, catching
// typos) and then validated against an embedded CUE schema before
// anything touches hardware.
package plan

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Plan selects what a run executes and where it keeps its files.
type Plan struct {
	// Scenarios lists scenario names to run, in registration order.
	// Empty means all.
	Scenarios []string `yaml:"scenarios,omitempty"`

	// WorkDir overrides the scratch directory.
	WorkDir string `yaml:"workdir,omitempty"`

	// Journal overrides the results journal path.
	Journal string `yaml:"journal,omitempty"`

	// PrintLayout prints the computed layout before running.
	PrintLayout bool `yaml:"print_layout,omitempty"`
}

// Load reads, decodes, and validates a plan file. known is the set of
// registered scenario names; a plan naming anything else is rejected.
func Load(path string, known []string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	// Strict decode catches typos like "scenario:" for "scenarios:".
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}

	// Decode again loosely for schema validation; CUE sees the raw
	// document shape, not the Go struct.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	if err := checkScenarioNames(p.Scenarios, known); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}

// validateSchema unifies the document with the embedded #Plan schema.
func validateSchema(doc map[string]any) error {
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(schemaCUE)
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("compiling plan schema: %w", err)
	}
	planDef := schemaVal.LookupPath(cue.ParsePath("#Plan"))
	if !planDef.Exists() {
		return fmt.Errorf("plan schema has no #Plan definition")
	}

	unified := planDef.Unify(ctx.Encode(doc))
	if err := unified.Err(); err != nil {
		return err
	}
	return unified.Validate(cue.Concrete(true))
}

// checkScenarioNames rejects names that are not registered.
func checkScenarioNames(names, known []string) error {
	registered := make(map[string]bool, len(known))
	for _, n := range known {
		registered[n] = true
	}
	for _, n := range names {
		if !registered[n] {
			return fmt.Errorf("unknown scenario %q", n)
		}
	}
	return nil
}
