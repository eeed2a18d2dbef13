// Copyright (C) 2022 The OCANNL Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the two kinds of declarative configuration the
// middle-end consults: the built-in registry of named shape-logic
// templates (spec section 4.1's "declarative per-operation 'shape
// logic' spec", elaborated by name in SPEC_FULL.md's domain-stack
// section -- Pointwise, Transpose, Permute, BatchSlice, Einsum
// shorthand tables), and an optional on-disk override of the
// compiler's tunable bounds and flags.
//
// Grounded on cmd/sdb's definition.yaml/definition.json loading
// convention (db.DecodeDefinition's json-tagged structs, fed through
// sigs.k8s.io/yaml so the same struct tags work for either format).
package config

import (
	_ "embed"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/lukstafi/ocannl/shape"
	"github.com/lukstafi/ocannl/symbol"
)

//go:embed templates.yaml
var builtinTemplatesYAML []byte

// TransposeTemplate names a single-operand shape-logic recipe. Kind
// is one of "pointwise", "transpose", "permute", "batch_slice",
// matching shape.TransposeKind's values.
type TransposeTemplate struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Spec string `json:"spec,omitempty"`
}

// ComposeTemplate names a two-operand shape-logic recipe. Kind is one
// of "pointwise", "compose", "einsum", matching shape.ComposeKind's
// values.
type ComposeTemplate struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Spec string `json:"spec,omitempty"`
}

// templateFile is the on-disk/embedded shape of the registry.
type templateFile struct {
	Transpose []TransposeTemplate `json:"transpose,omitempty"`
	Compose   []ComposeTemplate   `json:"compose,omitempty"`
}

// Registry resolves a template name to a shape.Logic constructor, so
// new op kinds can be added by editing YAML rather than Go source
// (SPEC_FULL.md's ambient-stack configuration section).
type Registry struct {
	transpose map[string]TransposeTemplate
	compose   map[string]ComposeTemplate
}

// Builtin is the registry parsed from the embedded templates.yaml at
// package init. Callers that need to add or override templates should
// use LoadRegistry with an on-disk file instead of mutating this one.
var Builtin *Registry

func init() {
	r, err := parseRegistry(builtinTemplatesYAML)
	if err != nil {
		panic("config: embedded templates.yaml is invalid: " + err.Error())
	}
	Builtin = r
}

func parseRegistry(data []byte) (*Registry, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing template registry: %w", err)
	}
	r := &Registry{
		transpose: make(map[string]TransposeTemplate, len(f.Transpose)),
		compose:   make(map[string]ComposeTemplate, len(f.Compose)),
	}
	for _, t := range f.Transpose {
		r.transpose[t.Name] = t
	}
	for _, c := range f.Compose {
		r.compose[c.Name] = c
	}
	return r, nil
}

// LoadRegistry reads a YAML template registry from path, the same
// file shape as the embedded default. Useful for adding project-
// specific op templates without recompiling.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading template registry %s: %w", path, err)
	}
	return parseRegistry(data)
}

func parseTransposeKind(kind string) (shape.TransposeKind, error) {
	switch kind {
	case "pointwise":
		return shape.TPointwise, nil
	case "transpose":
		return shape.TTranspose, nil
	case "permute":
		return shape.TPermute, nil
	case "batch_slice":
		return shape.TBatchSlice, nil
	default:
		return 0, fmt.Errorf("config: unknown transpose template kind %q", kind)
	}
}

func parseComposeKind(kind string) (shape.ComposeKind, error) {
	switch kind {
	case "pointwise":
		return shape.CPointwise, nil
	case "compose":
		return shape.CCompose, nil
	case "einsum":
		return shape.CEinsum, nil
	default:
		return 0, fmt.Errorf("config: unknown compose template kind %q", kind)
	}
}

// Transpose builds a shape.TransposeLogic from the named template,
// binding it to sub (and static, required only for the batch_slice
// kind). An explicit spec, if non-empty, overrides the template's own
// (useful for permute templates that are parameterized per call site).
func (r *Registry) Transpose(name string, sub *shape.Shape, static *symbol.StaticSymbol, spec string) (shape.TransposeLogic, error) {
	t, ok := r.transpose[name]
	if !ok {
		return shape.TransposeLogic{}, fmt.Errorf("config: unknown transpose template %q", name)
	}
	kind, err := parseTransposeKind(t.Kind)
	if err != nil {
		return shape.TransposeLogic{}, err
	}
	if spec == "" {
		spec = t.Spec
	}
	return shape.TransposeLogic{Kind: kind, Sub: sub, Spec: spec, Static: static}, nil
}

// Compose builds a shape.BroadcastLogic from the named template,
// binding it to left and right. An explicit spec, if non-empty,
// overrides the template's own.
func (r *Registry) Compose(name string, left, right *shape.Shape, spec string) (shape.BroadcastLogic, error) {
	c, ok := r.compose[name]
	if !ok {
		return shape.BroadcastLogic{}, fmt.Errorf("config: unknown compose template %q", name)
	}
	kind, err := parseComposeKind(c.Kind)
	if err != nil {
		return shape.BroadcastLogic{}, err
	}
	if spec == "" {
		spec = c.Spec
	}
	return shape.BroadcastLogic{Kind: kind, Left: left, Right: right, Spec: spec}, nil
}

// Flags are the compiler's tunable bounds and switches (spec section
// 4.3's max_tracing_dim and max_visits bounds, spec section 4.5's
// integer-power-unrolling flag, and SPEC_FULL.md's StrictNonLocal
// resolution of spec section 9's Open Question 2).
type Flags struct {
	// MaxTracingDim bounds loop unrolling during usage tracing (spec
	// section 4.3: "unroll the iterator up to a bound max_tracing_dim").
	MaxTracingDim int `json:"max_tracing_dim"`
	// MaxVisits bounds the non-recurrent visit count before an array
	// is forced non-virtual (spec section 4.3: "exceeds max_visits").
	MaxVisits int `json:"max_visits"`
	// UnrollPower guards integer-power unrolling (spec section 4.5).
	UnrollPower bool `json:"unroll_power"`
	// MaxUnroll bounds how many multiplications integer-power
	// unrolling emits.
	MaxUnroll int `json:"max_unroll"`
	// StrictNonLocal promotes a memmode.NonLocal placement from a
	// warning to an error (spec section 9, Open Question 2; resolved
	// in SPEC_FULL.md as an opt-in, default-off per-compilation flag).
	StrictNonLocal bool `json:"strict_non_local"`
}

// DefaultFlags returns the compiler's built-in bounds, used when no
// on-disk override is supplied.
func DefaultFlags() Flags {
	return Flags{
		MaxTracingDim:  64,
		MaxVisits:      1,
		UnrollPower:    true,
		MaxUnroll:      8,
		StrictNonLocal: false,
	}
}

// LoadFlags reads an optional YAML override of DefaultFlags from
// path. Fields absent from the file keep their default value.
func LoadFlags(path string) (Flags, error) {
	f := DefaultFlags()
	data, err := os.ReadFile(path)
	if err != nil {
		return Flags{}, fmt.Errorf("config: reading flags %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Flags{}, fmt.Errorf("config: parsing flags %s: %w", path, err)
	}
	return f, nil
}
