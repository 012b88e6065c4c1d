// Package plan loads YAML batch files describing a sequence of service
// invocations and runs them through a dispatcher.
//
// A plan file looks like:
//
//	steps:
//	  - name: greet
//	    service: echo
//	    attributes:
//	      message: hello
//	      times: 2
//	  - service: hostname
//	    attributes:
//	      name: example.com
//	    enabled: false
package plan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kylerisse/bottled/pkg/service"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned when a plan fails validation.
var ErrInvalidPlan = errors.New("invalid plan")

// Step is a single invocation in a plan.
type Step struct {
	Name       string         `yaml:"name"`
	Service    string         `yaml:"service"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	Enabled    *bool          `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the step should run. Steps are enabled unless
// they explicitly set enabled: false.
func (s Step) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Plan is an ordered list of steps.
type Plan struct {
	Steps []Step `yaml:"steps"`
}

// Load reads and parses the plan file at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read plan %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML plan and validates it.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not parse YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every step names a service and that step names are
// unique. Steps without a name are named "<service>-<index>".
func (p *Plan) Validate() error {
	seen := make(map[string]int, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Service == "" {
			return fmt.Errorf("%w: step %d: missing service", ErrInvalidPlan, i)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s-%d", s.Service, i)
		}
		if prev, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: step %d: name %q already used by step %d", ErrInvalidPlan, i, s.Name, prev)
		}
		seen[s.Name] = i
	}
	return nil
}

// EnabledSteps returns the steps that should run, in plan order.
func (p *Plan) EnabledSteps() []Step {
	enabled := make([]Step, 0, len(p.Steps))
	for _, s := range p.Steps {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

// Dispatcher invokes a named service.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, attrs map[string]any, yield service.Continuation) (*service.Response, error)
}

// Outcome is the result of running one step. Err is set when the service
// could not be invoked; a failed Response is not an error.
type Outcome struct {
	Step     Step
	Response *service.Response
	Err      error
}

// Run dispatches the enabled steps one after another. It stops at the
// first step that returns an error or when ctx is done, returning the
// outcomes collected so far along with that error.
func Run(ctx context.Context, d Dispatcher, p *Plan) ([]Outcome, error) {
	steps := p.EnabledSteps()
	outcomes := make([]Outcome, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		resp, err := d.Dispatch(ctx, s.Service, s.Attributes, nil)
		outcomes = append(outcomes, Outcome{Step: s, Response: resp, Err: err})
		if err != nil {
			return outcomes, fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	return outcomes, nil
}

// Failures counts the outcomes whose service responded with a failure.
func Failures(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Response != nil && o.Response.Failed() {
			n++
		}
	}
	return n
}
