// Copyright 2025 The kubegate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog is the fixed registry of kubectl instructions the gateway
// is willing to run. Each instruction declares its parameter schema, whether
// it mutates cluster state, and a deterministic builder that turns validated
// parameters into an argument vector.
package catalog

import (
	"maps"
	"slices"
	"sort"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/llm"
	"github.com/kubegate/kubegate/pkg/validate"
)

// Command is what the executor runs: a discrete argument vector for the
// kubectl binary, plus an optional stdin payload for manifest-shaped input.
// Arguments are never joined into a shell string.
type Command struct {
	Args  []string
	Stdin []byte
}

// WithDryRun returns a copy of the command with kubectl's client-side
// dry-run flags appended. Only meaningful for instructions whose spec has
// SupportsDryRun set.
func (c *Command) WithDryRun() *Command {
	out := &Command{
		Args:  append(slices.Clone(c.Args), "--dry-run=client", "-o", "yaml"),
		Stdin: c.Stdin,
	}
	return out
}

// ParamSpec declares one parameter of an instruction.
type ParamSpec struct {
	Name        string
	Description string
	Required    bool
	// Default is substituted when the parameter is absent. Required and
	// Default are mutually exclusive.
	Default string
	// Type is the JSON-schema type advertised to callers ("string",
	// "integer", "boolean"). Values always arrive as strings and are
	// parsed after validation.
	Type string
	Rule validate.Rule
}

// InstructionSpec describes one catalog entry. Specs are immutable after
// process start and shared read-only by all requests.
type InstructionSpec struct {
	Name        string
	Description string
	Params      []ParamSpec

	// Mutating marks instructions that change cluster state. They never
	// execute without explicit confirmation (or a dry-run preview).
	Mutating bool
	// SupportsDryRun marks instructions whose command accepts kubectl's
	// --dry-run=client preview mode.
	SupportsDryRun bool
	// RefreshesContext marks instructions that change which cluster or
	// namespace subsequent commands target. The gateway drops its cached
	// cluster context after a successful run.
	RefreshesContext bool

	// Summarize, when set, condenses successful stdout into a compact
	// summary attached alongside the raw output.
	Summarize func(p validate.Params, stdout string) (string, error)

	// Build turns validated parameters into an argument vector. Same
	// instruction and parameters always yield the same vector, so a
	// confirmed re-submission runs exactly what the preview showed.
	Build func(p validate.Params) (*Command, error)
}

// FunctionDefinition renders the spec as a function schema for the decision
// service and the MCP surface.
func (s *InstructionSpec) FunctionDefinition() *llm.FunctionDefinition {
	props := make(map[string]*llm.Schema, len(s.Params))
	var required []string
	for _, p := range s.Params {
		typ := llm.TypeString
		switch p.Type {
		case "integer":
			typ = llm.TypeInteger
		case "boolean":
			typ = llm.TypeBoolean
		}
		desc := p.Description
		if p.Default != "" {
			desc += " (default: " + p.Default + ")"
		}
		props[p.Name] = &llm.Schema{Type: typ, Description: desc}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	return &llm.FunctionDefinition{
		Name:        s.Name,
		Description: s.Description,
		Parameters: &llm.Schema{
			Type:       llm.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

// Registry is the instruction catalog. The default registry is populated at
// init and never modified afterwards.
type Registry struct {
	specs map[string]*InstructionSpec
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*InstructionSpec)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide catalog.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a spec to the default registry.
func Register(spec *InstructionSpec) {
	defaultRegistry.Register(spec)
}

func (r *Registry) Register(spec *InstructionSpec) {
	if _, exists := r.specs[spec.Name]; exists {
		panic("instruction already registered: " + spec.Name)
	}
	r.specs[spec.Name] = spec
}

// Lookup returns the spec for name, or nil.
func (r *Registry) Lookup(name string) *InstructionSpec {
	return r.specs[name]
}

// All returns every spec, sorted by name for stable listings.
func (r *Registry) All() []*InstructionSpec {
	specs := slices.Collect(maps.Values(r.specs))
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns the sorted instruction names.
func (r *Registry) Names() []string {
	names := slices.Sorted(maps.Keys(r.specs))
	return names
}

// Validate checks a raw parameter mapping against the named instruction's
// schema. It fills declared defaults, rejects undeclared keys, and applies
// each declared rule. On success the returned Params is the only parameter
// view downstream components consume.
func (r *Registry) Validate(instruction string, raw map[string]string) (*InstructionSpec, validate.Params, error) {
	spec := r.Lookup(instruction)
	if spec == nil {
		return nil, nil, &api.UnknownInstructionError{Name: instruction}
	}
	params, err := spec.ValidateParams(raw)
	if err != nil {
		return nil, nil, err
	}
	return spec, params, nil
}

func (s *InstructionSpec) ValidateParams(raw map[string]string) (validate.Params, error) {
	declared := make(map[string]*ParamSpec, len(s.Params))
	for i := range s.Params {
		declared[s.Params[i].Name] = &s.Params[i]
	}
	for key := range raw {
		if _, ok := declared[key]; !ok {
			return nil, &api.ValidationError{Field: key, Reason: api.ReasonMalformed, Detail: "not an accepted parameter for " + s.Name}
		}
	}

	out := make(validate.Params, len(s.Params))
	for _, p := range s.Params {
		value, present := raw[p.Name]
		if !present || value == "" {
			if p.Required {
				return nil, &api.ValidationError{Field: p.Name, Reason: api.ReasonMissing, Detail: "required parameter"}
			}
			if p.Default != "" {
				out[p.Name] = p.Default
			}
			continue
		}
		if p.Rule != nil {
			if err := p.Rule(value); err != nil {
				return nil, &api.ValidationError{Field: p.Name, Reason: api.ReasonMalformed, Detail: err.Error()}
			}
		}
		out[p.Name] = value
	}
	return out, nil
}
