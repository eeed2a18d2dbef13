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

package proj

import (
	"fmt"

	"github.com/lukstafi/ocannl/shape"
	"github.com/lukstafi/ocannl/symbol"
)

// Projections is the per-operation-instance iteration-space record
// produced for the backend (spec section 6): the concrete product
// space, one iterator symbol per product axis, the LHS (result) index
// vector, and one RHS index vector per operand, in the physical
// batch++output++input axis order. Fixed_idx 0 stands in for every
// degenerate (size-1) axis; a batch-sliced axis is instead indexed by
// Fixed_idx at its static offset.
type Projections struct {
	ProductDims  []shape.Dim
	ProductIters []symbol.Symbol
	LHS          []symbol.AxisIndex
	RHS          [][]symbol.AxisIndex
}

// Build derives the projections record for one operation instance:
// result is the operation's already-resolved output shape and logic
// is the same shape-propagation recipe that produced it (spec section
// 4.1); operands embedded in logic (Sub, or Left/Right) must likewise
// already be fully resolved. The result and operand shapes are
// tagged in place with the projection ids Build assigns, so later
// passes can read proj_id directly off a Dim.
func Build(env *ProjEnv, result *shape.Shape, logic shape.Logic) (*Projections, error) {
	if !result.Resolved() {
		return nil, fmt.Errorf("proj: result shape %s is not fully resolved", result)
	}

	resultDims := assignFresh(result.AxisOrder())
	writeBack(result, resultDims)

	var cs []shape.Constraint
	var operandDims [][]*shape.Dim

	switch l := logic.(type) {
	case shape.TerminalLogic:
		// no operands.

	case shape.TransposeLogic:
		if !l.Sub.Resolved() {
			return nil, fmt.Errorf("proj: operand shape %s is not fully resolved", l.Sub)
		}
		dims, err := alignTranspose(env, &cs, result, resultDims, l)
		if err != nil {
			return nil, err
		}
		operandDims = [][]*shape.Dim{dims}

	case shape.BroadcastLogic:
		if !l.Left.Resolved() {
			return nil, fmt.Errorf("proj: left operand shape %s is not fully resolved", l.Left)
		}
		if !l.Right.Resolved() {
			return nil, fmt.Errorf("proj: right operand shape %s is not fully resolved", l.Right)
		}
		left, right, err := alignBroadcast(&cs, result, resultDims, l)
		if err != nil {
			return nil, err
		}
		operandDims = [][]*shape.Dim{left, right}

	default:
		return nil, fmt.Errorf("proj: unhandled logic kind %T", logic)
	}

	if err := bindAll(env, resultDims, operandDims); err != nil {
		return nil, err
	}
	if err := env.SolveProjEquations(GetProjEquations(cs)); err != nil {
		return nil, err
	}

	return assemble(env, resultDims, operandDims), nil
}

func bindAll(env *ProjEnv, resultDims []shape.Dim, operandDims [][]*shape.Dim) error {
	for _, d := range resultDims {
		if err := env.Bind(d.ProjID(), d.Size()); err != nil {
			return err
		}
	}
	for _, dims := range operandDims {
		for _, d := range dims {
			if d == nil {
				continue
			}
			if err := env.Bind(d.ProjID(), d.Size()); err != nil {
				return err
			}
		}
	}
	return nil
}

func assemble(env *ProjEnv, resultDims []shape.Dim, operandDims [][]*shape.Dim) *Projections {
	p := &Projections{}
	seen := map[int]bool{}
	addProduct := func(d shape.Dim) {
		if d.ProjID() == 0 {
			return
		}
		rep := env.find(d.ProjID())
		if seen[rep] {
			return
		}
		idx := env.GetProjIndex(d.ProjID(), d.Size())
		if idx.IsFixed() {
			return
		}
		seen[rep] = true
		p.ProductDims = append(p.ProductDims, d)
		p.ProductIters = append(p.ProductIters, idx.Iterator())
	}
	// Operands are scanned before the result so a contracted axis
	// (present in operands, absent from the result) is discovered in
	// the order the operation's own operand list names it, matching
	// scenario S2's expected product-iterator order.
	for _, dims := range operandDims {
		for _, d := range dims {
			if d != nil {
				addProduct(*d)
			}
		}
	}
	for _, d := range resultDims {
		addProduct(d)
	}

	for _, d := range resultDims {
		p.LHS = append(p.LHS, env.GetProjIndex(d.ProjID(), d.Size()))
	}
	for _, dims := range operandDims {
		var rhs []symbol.AxisIndex
		for _, d := range dims {
			if d == nil {
				// A broadcast gap or a fixed einsum label: the operand
				// has no product dim at this position, but the axis
				// itself still exists, so it still gets an entry, the
				// same as every other degenerate axis.
				rhs = append(rhs, symbol.FixedIdx(0))
				continue
			}
			rhs = append(rhs, env.GetProjIndex(d.ProjID(), d.Size()))
		}
		p.RHS = append(p.RHS, rhs)
	}
	return p
}

// assignFresh returns a copy of dims with each element tagged with a
// brand new projection id.
func assignFresh(dims []shape.Dim) []shape.Dim {
	out := make([]shape.Dim, len(dims))
	for i, d := range dims {
		out[i] = d.WithProjID(NewProjID())
	}
	return out
}

// writeBack splits a physical-order (batch++output++input) dims slice
// back into s's three rows and stores it, so the shape's own Dim
// values carry the assigned projection ids from here on.
func writeBack(s *shape.Shape, dims []shape.Dim) {
	nb, no := len(s.Batch.Dims), len(s.Output.Dims)
	setRow(s, shape.Batch, dims[:nb])
	setRow(s, shape.Output, dims[nb:nb+no])
	setRow(s, shape.Input, dims[nb+no:])
}

func setRow(s *shape.Shape, kind shape.RowKind, dims []shape.Dim) {
	r := s.Row(kind)
	r.Dims = dims
	s.SetRow(kind, r)
}

func resultRowSlice(result *shape.Shape, resultDims []shape.Dim, kind shape.RowKind) []shape.Dim {
	nb, no := len(result.Batch.Dims), len(result.Output.Dims)
	switch kind {
	case shape.Batch:
		return resultDims[:nb]
	case shape.Output:
		return resultDims[nb : nb+no]
	default:
		return resultDims[nb+no:]
	}
}

// alignTranspose pairs a single operand's dims against the result's,
// in physical order, returning one entry per result axis (never a
// gap: TransposeLogic always relates equal-length rows).
func alignTranspose(env *ProjEnv, cs *[]shape.Constraint, result *shape.Shape, resultDims []shape.Dim, l shape.TransposeLogic) ([]*shape.Dim, error) {
	sub := l.Sub
	pairRow := func(resKind, subKind shape.RowKind) ([]*shape.Dim, error) {
		resSlice := resultRowSlice(result, resultDims, resKind)
		subDims := sub.Row(subKind).Dims
		if len(resSlice) != len(subDims) {
			return nil, fmt.Errorf("proj: transpose axis count mismatch: result %s has %d, operand %s has %d", resKind, len(resSlice), subKind, len(subDims))
		}
		out := make([]*shape.Dim, len(subDims))
		for i := range subDims {
			d := subDims[i].WithProjID(NewProjID())
			*cs = append(*cs, shape.DimEq{A: resSlice[i], B: d})
			out[i] = &d
		}
		return out, nil
	}

	var batch, output, input []*shape.Dim
	var err error
	switch l.Kind {
	case shape.TPointwise:
		batch, err = pairRow(shape.Batch, shape.Batch)
		if err != nil {
			return nil, err
		}
		output, err = pairRow(shape.Output, shape.Output)
		if err != nil {
			return nil, err
		}
		input, err = pairRow(shape.Input, shape.Input)
		if err != nil {
			return nil, err
		}

	case shape.TTranspose:
		batch, err = pairRow(shape.Batch, shape.Batch)
		if err != nil {
			return nil, err
		}
		input, err = pairRow(shape.Input, shape.Output)
		if err != nil {
			return nil, err
		}
		output, err = pairRow(shape.Output, shape.Input)
		if err != nil {
			return nil, err
		}

	case shape.TPermute:
		return alignPermute(result, resultDims, sub, l.Spec)

	case shape.TBatchSlice:
		if l.Static == nil || l.Static.Bound == nil {
			return nil, fmt.Errorf("proj: batch slice: static index not resolved")
		}
		rest := sub.Batch.Dims[1:]
		resSlice := resultRowSlice(result, resultDims, shape.Batch)
		if len(resSlice) != len(rest) {
			return nil, fmt.Errorf("proj: batch slice axis count mismatch")
		}
		slicedOut := sub.Batch.Dims[0].WithProjID(NewProjID())
		env.BindFixed(slicedOut.ProjID(), *l.Static.Bound)
		batch = make([]*shape.Dim, 0, len(rest)+1)
		batch = append(batch, &slicedOut)
		for i := range rest {
			d := rest[i].WithProjID(NewProjID())
			*cs = append(*cs, shape.DimEq{A: resSlice[i], B: d})
			batch = append(batch, &d)
		}
		output, err = pairRow(shape.Output, shape.Output)
		if err != nil {
			return nil, err
		}
		input, err = pairRow(shape.Input, shape.Input)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("proj: unhandled transpose kind %d", l.Kind)
	}

	out := make([]*shape.Dim, 0, len(batch)+len(output)+len(input))
	out = append(out, batch...)
	out = append(out, output...)
	out = append(out, input...)
	return out, nil
}

// alignPermute assigns projection classes by einsum label: an axis in
// the operand shares its label's class with whichever result axis
// carries the same label. Fixed numeric labels are not supported here
// (permute specs describe pure reorderings; a fixed label would make
// that axis a constant slice, which is TBatchSlice's job).
func alignPermute(result *shape.Shape, resultDims []shape.Dim, sub *shape.Shape, spec string) ([]*shape.Dim, error) {
	es, err := shape.ParseEinsum(spec)
	if err != nil {
		return nil, err
	}
	if len(es.Operands) != 1 {
		return nil, fmt.Errorf("proj: permute spec %q: expected exactly one operand", spec)
	}

	labelClass := map[string]int{}
	collect := func(kind shape.RowKind, axisSpec []shape.AxisLabel) error {
		resSlice := resultRowSlice(result, resultDims, kind)
		if len(resSlice) != len(axisSpec) {
			return fmt.Errorf("proj: permute: result row %s has %d axes, spec names %d", kind, len(resSlice), len(axisSpec))
		}
		for i, lbl := range axisSpec {
			if lbl.Fixed {
				return fmt.Errorf("proj: permute: fixed label on result axis is not supported")
			}
			labelClass[lbl.Name] = resSlice[i].ProjID()
		}
		return nil
	}
	if err := collect(shape.Batch, es.Result.Batch); err != nil {
		return nil, err
	}
	if err := collect(shape.Input, es.Result.Input); err != nil {
		return nil, err
	}
	if err := collect(shape.Output, es.Result.Output); err != nil {
		return nil, err
	}

	project := func(kind shape.RowKind, axisSpec []shape.AxisLabel) ([]*shape.Dim, error) {
		dims := sub.Row(kind).Dims
		if len(dims) != len(axisSpec) {
			return nil, fmt.Errorf("proj: permute: operand row %s has %d axes, spec names %d", kind, len(dims), len(axisSpec))
		}
		out := make([]*shape.Dim, len(dims))
		for i, lbl := range axisSpec {
			if lbl.Fixed {
				return nil, fmt.Errorf("proj: permute: fixed label on operand axis is not supported")
			}
			id, ok := labelClass[lbl.Name]
			if !ok {
				return nil, fmt.Errorf("proj: permute: label %q not bound by result", lbl.Name)
			}
			d := dims[i].WithProjID(id)
			out[i] = &d
		}
		return out, nil
	}
	batch, err := project(shape.Batch, es.Operands[0].Batch)
	if err != nil {
		return nil, err
	}
	output, err := project(shape.Output, es.Operands[0].Output)
	if err != nil {
		return nil, err
	}
	input, err := project(shape.Input, es.Operands[0].Input)
	if err != nil {
		return nil, err
	}
	out := make([]*shape.Dim, 0, len(batch)+len(output)+len(input))
	out = append(out, batch...)
	out = append(out, output...)
	out = append(out, input...)
	return out, nil
}

// alignBroadcast pairs both operands' dims against the result's,
// handling the three BroadcastLogic kinds. CPointwise rows may be
// shorter than the result's (true broadcasting: a gap means the
// operand has no axis there at all). CCompose contracts left's
// trailing Input axis against right's leading Output axis; that pair
// shares one class but neither survives into the result. CEinsum
// binds by label, same as the shape package's own einsumConstraints.
func alignBroadcast(cs *[]shape.Constraint, result *shape.Shape, resultDims []shape.Dim, l shape.BroadcastLogic) ([]*shape.Dim, []*shape.Dim, error) {
	switch l.Kind {
	case shape.CPointwise:
		left := alignBroadcastRows(cs, result, resultDims, l.Left)
		right := alignBroadcastRows(cs, result, resultDims, l.Right)
		return left, right, nil

	case shape.CCompose:
		return alignCompose(cs, result, resultDims, l.Left, l.Right)

	case shape.CEinsum:
		return alignEinsum(result, resultDims, l.Left, l.Right, l.Spec)

	default:
		return nil, nil, fmt.Errorf("proj: unhandled compose kind %d", l.Kind)
	}
}

// alignBroadcastRow aligns one operand row against the result's same
// row under the broadcasting rule (new axes prepend, so a shorter
// operand row aligns to the result row's trailing positions); a
// position the operand row doesn't reach at all is a gap (nil).
func alignBroadcastRow(cs *[]shape.Constraint, resSlice []shape.Dim, opDims []shape.Dim) []*shape.Dim {
	out := make([]*shape.Dim, len(resSlice))
	nr, no := len(resSlice), len(opDims)
	for i := 0; i < nr; i++ {
		posFromEnd := nr - i
		if posFromEnd > no {
			continue
		}
		d := opDims[no-posFromEnd].WithProjID(NewProjID())
		*cs = append(*cs, shape.DimIneq{Cur: resSlice[i], Subr: d})
		out[i] = &d
	}
	return out
}

func alignBroadcastRows(cs *[]shape.Constraint, result *shape.Shape, resultDims []shape.Dim, operand *shape.Shape) []*shape.Dim {
	var out []*shape.Dim
	for _, kind := range [...]shape.RowKind{shape.Batch, shape.Output, shape.Input} {
		resSlice := resultRowSlice(result, resultDims, kind)
		out = append(out, alignBroadcastRow(cs, resSlice, operand.Row(kind).Dims)...)
	}
	return out
}

func alignCompose(cs *[]shape.Constraint, result *shape.Shape, resultDims []shape.Dim, left, right *shape.Shape) ([]*shape.Dim, []*shape.Dim, error) {
	if len(left.Input.Dims) != 1 || len(right.Output.Dims) != 1 {
		return nil, nil, fmt.Errorf("proj: compose: only a single contracted axis per side is supported")
	}

	resBatch := resultRowSlice(result, resultDims, shape.Batch)
	leftBatch := alignBroadcastRow(cs, resBatch, left.Batch.Dims)
	rightBatch := alignBroadcastRow(cs, resBatch, right.Batch.Dims)

	var leftOut []*shape.Dim
	{
		resSlice := resultRowSlice(result, resultDims, shape.Output)
		if len(resSlice) != len(left.Output.Dims) {
			return nil, nil, fmt.Errorf("proj: compose: result output row does not match left operand's output row")
		}
		leftOut = make([]*shape.Dim, len(resSlice))
		for i := range resSlice {
			d := left.Output.Dims[i].WithProjID(NewProjID())
			*cs = append(*cs, shape.DimEq{A: resSlice[i], B: d})
			leftOut[i] = &d
		}
	}
	var rightIn []*shape.Dim
	{
		resSlice := resultRowSlice(result, resultDims, shape.Input)
		if len(resSlice) != len(right.Input.Dims) {
			return nil, nil, fmt.Errorf("proj: compose: result input row does not match right operand's input row")
		}
		rightIn = make([]*shape.Dim, len(resSlice))
		for i := range resSlice {
			d := right.Input.Dims[i].WithProjID(NewProjID())
			*cs = append(*cs, shape.DimEq{A: resSlice[i], B: d})
			rightIn[i] = &d
		}
	}

	hiddenL := left.Input.Dims[0].WithProjID(NewProjID())
	hiddenR := right.Output.Dims[0].WithProjID(hiddenL.ProjID())

	leftDims := append(append([]*shape.Dim{}, leftBatch...), leftOut...)
	leftDims = append(leftDims, &hiddenL)
	rightDims := append(append([]*shape.Dim{}, rightBatch...), &hiddenR)
	rightDims = append(rightDims, rightIn...)
	return leftDims, rightDims, nil
}

func alignEinsum(result *shape.Shape, resultDims []shape.Dim, left, right *shape.Shape, spec string) ([]*shape.Dim, []*shape.Dim, error) {
	es, err := shape.ParseEinsum(spec)
	if err != nil {
		return nil, nil, err
	}
	if len(es.Operands) != 2 {
		return nil, nil, fmt.Errorf("proj: einsum spec %q: expected exactly two operands", spec)
	}

	labelClass := map[string]int{}
	bind := func(dims []shape.Dim, axisSpec []shape.AxisLabel) ([]*shape.Dim, error) {
		if len(dims) != len(axisSpec) {
			return nil, fmt.Errorf("proj: einsum: operand row has %d axes, spec names %d", len(dims), len(axisSpec))
		}
		out := make([]*shape.Dim, len(dims))
		for i, lbl := range axisSpec {
			if lbl.Fixed {
				out[i] = nil
				continue
			}
			id, ok := labelClass[lbl.Name]
			if !ok {
				id = NewProjID()
				labelClass[lbl.Name] = id
			}
			d := dims[i].WithProjID(id)
			out[i] = &d
		}
		return out, nil
	}

	operandDims := make([][]*shape.Dim, 2)
	for i, op := range []*shape.Shape{left, right} {
		spec := es.Operands[i]
		batch, err := bind(op.Batch.Dims, spec.Batch)
		if err != nil {
			return nil, nil, err
		}
		output, err := bind(op.Output.Dims, spec.Output)
		if err != nil {
			return nil, nil, err
		}
		input, err := bind(op.Input.Dims, spec.Input)
		if err != nil {
			return nil, nil, err
		}
		dims := append(append([]*shape.Dim{}, batch...), output...)
		operandDims[i] = append(dims, input...)
	}

	project := func(kind shape.RowKind, axisSpec []shape.AxisLabel) error {
		resSlice := resultRowSlice(result, resultDims, kind)
		if len(resSlice) != len(axisSpec) {
			return fmt.Errorf("proj: einsum: result row %s has %d axes, spec names %d", kind, len(resSlice), len(axisSpec))
		}
		for i, lbl := range axisSpec {
			if lbl.Fixed {
				continue
			}
			id, ok := labelClass[lbl.Name]
			if !ok {
				return fmt.Errorf("proj: einsum: result label %q not bound by any operand", lbl.Name)
			}
			resSlice[i] = resSlice[i].WithProjID(id)
		}
		return nil
	}
	if err := project(shape.Batch, es.Result.Batch); err != nil {
		return nil, nil, err
	}
	if err := project(shape.Output, es.Result.Output); err != nil {
		return nil, nil, err
	}
	if err := project(shape.Input, es.Result.Input); err != nil {
		return nil, nil, err
	}

	return operandDims[0], operandDims[1], nil
}
