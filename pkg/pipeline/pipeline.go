// Package pipeline composes processor steps into named derivations and runs
// them. A pipeline is a pure function of (source bytes, spec, focal point):
// identical inputs always produce byte-identical output, which is what lets
// the artifact cache skip regeneration on a fingerprint hit.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/degerli/imagefield/pkg/processor"
)

// Version tags the processor output format. Bump it whenever a transform's
// semantics change so previously cached artifacts are regenerated.
const Version = "1"

// Step is one processor invocation: a symbolic name plus its resolved
// parameters. Immutable once constructed.
type Step struct {
	Name   string
	Params processor.Params
}

// Canonical renders the step in a stable form for fingerprinting.
func (s Step) Canonical() string {
	return s.Name + "(" + s.Params.Canonical() + ")"
}

// Spec is an ordered, named sequence of steps.
type Spec struct {
	Name  string
	Steps []Step
}

// Canonical renders the whole spec in a stable form for fingerprinting.
func (s Spec) Canonical() string {
	parts := make([]string, 0, len(s.Steps)+1)
	parts = append(parts, s.Name)
	for _, step := range s.Steps {
		parts = append(parts, step.Canonical())
	}
	return strings.Join(parts, "|")
}

// UnknownPipelineError reports resolution of a pipeline name that was never
// registered. This is a configuration fault and aborts the run.
type UnknownPipelineError struct {
	Name string
}

func (e *UnknownPipelineError) Error() string {
	return fmt.Sprintf("unknown pipeline %q", e.Name)
}

// Registry holds the pipelines registered at process start. Read-only after
// construction; there is no global registry.
type Registry struct {
	processors *processor.Registry
	byName     map[string]Spec
}

// NewRegistry validates and indexes the given pipeline specs. Every step
// name must resolve to a registered processor and step parameters must pass
// the processor's structural checks; a bad spec is rejected here rather
// than surfacing per record at batch time.
func NewRegistry(processors *processor.Registry, specs []Spec) (*Registry, error) {
	r := &Registry{
		processors: processors,
		byName:     make(map[string]Spec, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("pipeline with empty name")
		}
		if len(spec.Steps) == 0 {
			return nil, fmt.Errorf("pipeline %q has no steps", spec.Name)
		}
		if _, exists := r.byName[spec.Name]; exists {
			return nil, fmt.Errorf("pipeline %q registered twice", spec.Name)
		}
		for _, step := range spec.Steps {
			if _, err := processors.Lookup(step.Name); err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", spec.Name, err)
			}
		}
		r.byName[spec.Name] = spec
	}
	return r, nil
}

// Resolve maps a symbolic pipeline name to its spec.
func (r *Registry) Resolve(name string) (Spec, error) {
	spec, ok := r.byName[name]
	if !ok {
		return Spec{}, &UnknownPipelineError{Name: name}
	}
	return spec, nil
}

// Names lists the registered pipeline names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsesPPOI reports whether any step of the spec consumes the focal point.
func (r *Registry) UsesPPOI(spec Spec) bool {
	for _, step := range spec.Steps {
		p, err := r.processors.Lookup(step.Name)
		if err == nil && p.UsesPPOI() {
			return true
		}
	}
	return false
}

// OutputFormat returns the format the spec will encode to given a source of
// the provided format, i.e. the last convert step's target, else the source
// format. Used for artifact key extensions before any pixel work happens.
func (r *Registry) OutputFormat(spec Spec, sourceFormat string) string {
	format := sourceFormat
	for _, step := range spec.Steps {
		if step.Name == "convert" && step.Params.Format != "" {
			format = step.Params.Format
		}
	}
	return format
}
