// Package scenario defines the test scenarios the runner can execute and the
// registry used to look them up by name.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrScenarioUnknown is returned when a requested scenario name does not
	// exist in the registry.
	ErrScenarioUnknown = errors.New("unknown scenario")

	// ErrRegistryEmpty is returned when a selection yields no scenarios to run.
	ErrRegistryEmpty = errors.New("no scenarios selected")
)

// Scenario is one natural-language test case. The goal tells the model what to
// do; the assertion tells the judge what the final screen should show.
type Scenario struct {
	// Name uniquely identifies the scenario within a registry.
	Name string `yaml:"name"`

	// Goal is the natural-language instruction driving the agent loop.
	Goal string `yaml:"goal"`

	// Assertion describes the expected final state, checked after the agent
	// reports completion.
	Assertion string `yaml:"assertion"`

	// Steps are optional hints included in the planning prompt. The agent may
	// deviate from them when the screen demands it.
	Steps []string `yaml:"steps,omitempty"`

	// ShouldPass records the author's expectation, used by reporting to flag
	// scenarios whose verdict disagrees with intent.
	ShouldPass bool `yaml:"should_pass"`

	// MaxSteps overrides the configured step ceiling when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Demo marks scenarios included in the quick demo selection.
	Demo bool `yaml:"-"`
}

// Validate checks the fields a scenario cannot run without.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario name is required")
	}
	if strings.TrimSpace(s.Goal) == "" {
		return fmt.Errorf("scenario %q: goal is required", s.Name)
	}
	if strings.TrimSpace(s.Assertion) == "" {
		return fmt.Errorf("scenario %q: assertion is required", s.Name)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("scenario %q: max_steps cannot be negative", s.Name)
	}
	return nil
}

// Registry is an ordered collection of scenarios. Order is preserved because
// some scenarios depend on state left behind by earlier ones.
type Registry struct {
	scenarios []Scenario
	byName    map[string]int
}

// NewRegistry builds a registry from the given scenarios, rejecting
// duplicates and invalid entries.
func NewRegistry(scenarios []Scenario) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(scenarios))}
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q", s.Name)
		}
		r.byName[s.Name] = len(r.scenarios)
		r.scenarios = append(r.scenarios, s)
	}
	return r, nil
}

// All returns every scenario in registration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// Get looks up a scenario by name.
func (r *Registry) Get(name string) (Scenario, error) {
	idx, ok := r.byName[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q (have: %s)", ErrScenarioUnknown, name, strings.Join(r.Names(), ", "))
	}
	return r.scenarios[idx], nil
}

// Names lists scenario names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.scenarios))
	for i, s := range r.scenarios {
		names[i] = s.Name
	}
	return names
}

// Demo returns the quick demo selection.
func (r *Registry) Demo() []Scenario {
	var out []Scenario
	for _, s := range r.scenarios {
		if s.Demo {
			out = append(out, s)
		}
	}
	return out
}

// ExpectedToPass returns scenarios whose authors expect a passing verdict.
func (r *Registry) ExpectedToPass() []Scenario {
	return r.filter(true)
}

// ExpectedToFail returns scenarios whose authors expect a failing verdict.
func (r *Registry) ExpectedToFail() []Scenario {
	return r.filter(false)
}

func (r *Registry) filter(shouldPass bool) []Scenario {
	var out []Scenario
	for _, s := range r.scenarios {
		if s.ShouldPass == shouldPass {
			out = append(out, s)
		}
	}
	return out
}

// Len reports the number of registered scenarios.
func (r *Registry) Len() int {
	return len(r.scenarios)
}
