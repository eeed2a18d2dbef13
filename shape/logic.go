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

package shape

import (
	"fmt"

	"github.com/lukstafi/ocannl/symbol"
)

// TransposeKind selects how a single-operand Logic relates its
// result's shape to its operand's shape.
type TransposeKind int

const (
	// TPointwise is the identity: result shape equals operand shape.
	TPointwise TransposeKind = iota
	// TTranspose swaps the Input and Output rows.
	TTranspose
	// TPermute reorders axes within a row according to an einsum-style
	// spec with no contraction (every label on both sides).
	TPermute
	// TBatchSlice indexes one fixed position out of the leading batch
	// axis, named by a static symbol resolved ahead of compilation.
	TBatchSlice
)

// ComposeKind selects how a two-operand Logic relates its result's
// shape to its operands' shapes.
type ComposeKind int

const (
	// CPointwise broadcasts two operands elementwise.
	CPointwise ComposeKind = iota
	// CCompose performs an inner-product contraction: the left
	// operand's trailing input axis is contracted against the right
	// operand's leading output axis (matrix-multiply convention).
	CCompose
	// CEinsum uses a general einsum spec (possibly involving more than
	// one contracted label).
	CEinsum
)

// TerminalInit is one of the terminal fetch kinds a Shape may
// originate from (spec section 6, "External Interfaces").
type TerminalInit interface{ isTerminalInit() }

type ConstantFill struct {
	Value  float64
	Strict bool
}

func (ConstantFill) isTerminalInit() {}

type RangeOffsets struct {
	Start, Step float64
}

func (RangeOffsets) isTerminalInit() {}

// FileMapped constrains its shape's leading batch row via TotalElems,
// using the file's length (spec section 6: "File format coupling").
// Length is supplied by the caller (the surface layer owns file I/O);
// this package never opens files itself.
type FileMapped struct {
	Path   string
	Prec   symbol.Precision
	Length int
}

func (FileMapped) isTerminalInit() {}

type StandardUniform struct{}

func (StandardUniform) isTerminalInit() {}

// Logic is the declarative per-operation shape-propagation recipe
// (spec section 4.1: "Consumes a declarative per-operation 'shape
// logic' spec"). It is pure data; Propagate interprets it against the
// already-allocated result Shape and its operands' Shapes to produce
// the constraints the solver needs.
type Logic interface{ isLogic() }

type TerminalLogic struct {
	Init TerminalInit
}

func (TerminalLogic) isLogic() {}

// TransposeLogic relates Result to a single operand Sub.
type TransposeLogic struct {
	Kind TransposeKind
	Sub  *Shape
	// Spec is the einsum/permute spec string, used when Kind ==
	// TPermute.
	Spec string
	// Static names the fixed batch-slice index, used when Kind ==
	// TBatchSlice.
	Static *symbol.StaticSymbol
}

func (TransposeLogic) isLogic() {}

// BroadcastLogic relates Result to two operands Left and Right.
type BroadcastLogic struct {
	Kind        ComposeKind
	Left, Right *Shape
	// Spec is the einsum spec string, used when Kind == CEinsum.
	Spec string
}

func (BroadcastLogic) isLogic() {}

// Propagate builds the constraints relating result's rows to the
// logic's operand(s), and enqueues Terminal* markers for every
// dimension/row of result so that FinishInference can close anything
// left unconstrained. It does not itself run the solver.
func Propagate(result *Shape, logic Logic) ([]Constraint, error) {
	var cs []Constraint
	switch l := logic.(type) {
	case TerminalLogic:
		cs = append(cs, terminalsOf(result)...)
		if fm, ok := l.Init.(FileMapped); ok && fm.Length > 0 {
			cs = append(cs, RowConstr{Row: result.Batch, N: fm.Length})
		}

	case TransposeLogic:
		tc, err := propagateTranspose(result, l)
		if err != nil {
			return nil, err
		}
		cs = append(cs, tc...)
		cs = append(cs, terminalsOf(result)...)

	case BroadcastLogic:
		bc, err := propagateBroadcast(result, l)
		if err != nil {
			return nil, err
		}
		cs = append(cs, bc...)
		cs = append(cs, terminalsOf(result)...)

	default:
		return nil, fmt.Errorf("shape: unhandled logic kind %T", logic)
	}
	return cs, nil
}

func terminalsOf(s *Shape) []Constraint {
	var cs []Constraint
	for _, r := range [...]Row{s.Batch, s.Input, s.Output} {
		cs = append(cs, TerminalRow{R: r})
		for _, d := range r.Dims {
			cs = append(cs, TerminalDim{D: d})
		}
	}
	return cs
}

func propagateTranspose(result *Shape, l TransposeLogic) ([]Constraint, error) {
	sub := l.Sub
	switch l.Kind {
	case TPointwise:
		return []Constraint{
			RowEq{A: result.Batch, B: sub.Batch},
			RowEq{A: result.Input, B: sub.Input},
			RowEq{A: result.Output, B: sub.Output},
		}, nil

	case TTranspose:
		return []Constraint{
			RowEq{A: result.Batch, B: sub.Batch},
			RowEq{A: result.Input, B: sub.Output},
			RowEq{A: result.Output, B: sub.Input},
		}, nil

	case TPermute:
		es, err := ParseEinsum(l.Spec)
		if err != nil {
			return nil, err
		}
		if len(es.Operands) != 1 {
			return nil, fmt.Errorf("permute spec %q: expected exactly one operand", l.Spec)
		}
		return permuteConstraints(result, sub, es.Operands[0], es.Result)

	case TBatchSlice:
		// the sliced-out axis is the leading (leftmost known) batch
		// axis of sub; result's batch row is sub's batch row with that
		// axis removed and the rest carried through unchanged.
		if len(sub.Batch.Dims) == 0 {
			return nil, fmt.Errorf("batch slice: operand has no leading batch axis to slice")
		}
		rest := NewClosedRow(ID{}, sub.Batch.Dims[1:]...)
		if s, open := sub.Batch.Open(); open {
			rest.open = &s
		}
		return []Constraint{
			RowEq{A: result.Batch, B: rest},
			RowEq{A: result.Input, B: sub.Input},
			RowEq{A: result.Output, B: sub.Output},
		}, nil

	default:
		return nil, fmt.Errorf("shape: unhandled transpose kind %d", l.Kind)
	}
}

// permuteConstraints builds label->Dim bindings from the operand's
// axes and equates the result's axes (in whatever order the result
// spec names them) to the same labels -- a pure reordering, since
// permute specs never contract (checkLabelBalance already verified
// the label sets match exactly).
func permuteConstraints(result, sub *Shape, opSpec, resultSpec OperandSpec) ([]Constraint, error) {
	labels := map[string]Dim{}
	var cs []Constraint
	bind := func(row Row, spec []AxisLabel) error {
		if len(row.Dims) != len(spec) {
			return fmt.Errorf("permute: operand row has %d axes, spec names %d", len(row.Dims), len(spec))
		}
		for i, lbl := range spec {
			if lbl.Fixed {
				continue
			}
			labels[lbl.Name] = row.Dims[i]
		}
		return nil
	}
	if err := bind(sub.Batch, opSpec.Batch); err != nil {
		return nil, err
	}
	if err := bind(sub.Input, opSpec.Input); err != nil {
		return nil, err
	}
	if err := bind(sub.Output, opSpec.Output); err != nil {
		return nil, err
	}

	project := func(row Row, spec []AxisLabel) error {
		if len(row.Dims) != len(spec) {
			return fmt.Errorf("permute: result row has %d axes, spec names %d", len(row.Dims), len(spec))
		}
		for i, lbl := range spec {
			if lbl.Fixed {
				cs = append(cs, DimEq{A: row.Dims[i], B: ConcreteDim(lbl.Index)})
				continue
			}
			d, ok := labels[lbl.Name]
			if !ok {
				return fmt.Errorf("permute: result label %q not bound by operand", lbl.Name)
			}
			cs = append(cs, DimEq{A: row.Dims[i], B: d})
		}
		return nil
	}
	if err := project(result.Batch, resultSpec.Batch); err != nil {
		return nil, err
	}
	if err := project(result.Input, resultSpec.Input); err != nil {
		return nil, err
	}
	if err := project(result.Output, resultSpec.Output); err != nil {
		return nil, err
	}
	return cs, nil
}

func propagateBroadcast(result *Shape, l BroadcastLogic) ([]Constraint, error) {
	switch l.Kind {
	case CPointwise:
		var cs []Constraint
		for _, kind := range [...]RowKind{Batch, Input, Output} {
			cs = append(cs,
				RowIneq{Cur: result.Row(kind), Subr: l.Left.Row(kind)},
				RowIneq{Cur: result.Row(kind), Subr: l.Right.Row(kind)},
			)
		}
		return cs, nil

	case CCompose:
		return composeConstraints(result, l.Left, l.Right)

	case CEinsum:
		es, err := ParseEinsum(l.Spec)
		if err != nil {
			return nil, err
		}
		if len(es.Operands) != 2 {
			return nil, fmt.Errorf("einsum spec %q: expected exactly two operands for BroadcastLogic", l.Spec)
		}
		return einsumConstraints(result, []*Shape{l.Left, l.Right}, es)

	default:
		return nil, fmt.Errorf("shape: unhandled compose kind %d", l.Kind)
	}
}

// composeConstraints implements the matmul convention directly: left
// (applied second, like the outer function in a composition) consumes
// its Input row from right's Output row -- left's trailing Input axis
// contracts against right's leading Output axis. The result keeps
// left's Output row (the rows of the composed map) and right's Input
// row (the columns), batches broadcast pointwise, and the hidden
// (contracted) axis does not appear in the result at all (scenario
// S2: left "3->2", right "4->3" compose to "4->2", contracting the
// shared dimension 3).
func composeConstraints(result, left, right *Shape) ([]Constraint, error) {
	if len(left.Input.Dims) == 0 {
		return nil, fmt.Errorf("compose: left operand has no input axis to contract")
	}
	if len(right.Output.Dims) == 0 {
		return nil, fmt.Errorf("compose: right operand has no output axis to contract")
	}
	contractL := left.Input.Dims[len(left.Input.Dims)-1]
	contractR := right.Output.Dims[0]

	return []Constraint{
		DimEq{A: contractL, B: contractR},
		RowEq{A: result.Output, B: left.Output},
		RowEq{A: result.Input, B: right.Input},
		RowIneq{Cur: result.Batch, Subr: left.Batch},
		RowIneq{Cur: result.Batch, Subr: right.Batch},
	}, nil
}

// einsumConstraints builds one Dim variable per distinct label (fixed
// labels become FixedIdx-style concrete dims of size 1, per spec
// section 4.1: "for them, an axis with a fixed-0 projection collapses
// to dimension 1 rather than introducing a variable" -- applied here
// uniformly since shape inference has no notion of "generative" rows
// without a prior Dim to reuse), binds each operand's axes to its
// label's Dim via RowEq/DimEq, and projects the result the same way.
func einsumConstraints(result *Shape, operands []*Shape, es EinsumSpec) ([]Constraint, error) {
	labelDim := map[string]Dim{}
	var cs []Constraint

	bindRow := func(row Row, spec []AxisLabel) error {
		if len(row.Dims) != len(spec) {
			return fmt.Errorf("einsum: operand row has %d axes, spec names %d", len(row.Dims), len(spec))
		}
		for i, lbl := range spec {
			if lbl.Fixed {
				cs = append(cs, DimEq{A: row.Dims[i], B: ConcreteDim(1)})
				continue
			}
			if existing, ok := labelDim[lbl.Name]; ok {
				cs = append(cs, DimEq{A: row.Dims[i], B: existing})
			} else {
				labelDim[lbl.Name] = row.Dims[i]
			}
		}
		return nil
	}

	for i, op := range operands {
		spec := es.Operands[i]
		if err := bindRow(op.Batch, spec.Batch); err != nil {
			return nil, err
		}
		if err := bindRow(op.Input, spec.Input); err != nil {
			return nil, err
		}
		if err := bindRow(op.Output, spec.Output); err != nil {
			return nil, err
		}
	}

	project := func(row Row, spec []AxisLabel) error {
		if len(row.Dims) != len(spec) {
			return fmt.Errorf("einsum: result row has %d axes, spec names %d", len(row.Dims), len(spec))
		}
		for i, lbl := range spec {
			if lbl.Fixed {
				cs = append(cs, DimEq{A: row.Dims[i], B: ConcreteDim(1)})
				continue
			}
			d, ok := labelDim[lbl.Name]
			if !ok {
				return fmt.Errorf("einsum: result label %q not bound by any operand", lbl.Name)
			}
			cs = append(cs, DimEq{A: row.Dims[i], B: d})
		}
		return nil
	}
	if err := project(result.Batch, es.Result.Batch); err != nil {
		return nil, err
	}
	if err := project(result.Input, es.Result.Input); err != nil {
		return nil, err
	}
	if err := project(result.Output, es.Result.Output); err != nil {
		return nil, err
	}
	return cs, nil
}
