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

import "github.com/lukstafi/ocannl/symbol"

// Shape is the three rows describing one tensor: batch, input, and
// output axes. The physical axis order used for indexing is
// batch ++ output ++ input (spec section 3), which differs from the
// declaration order (batch, input, output) -- input axes are the
// contraction axes of an operation and are deliberately placed last so
// they vary fastest in the iteration order chosen by package proj.
type Shape struct {
	id symbol.Symbol

	Batch  Row
	Input  Row
	Output Row

	// Label is a debug-only name for the tensor this shape describes.
	Label string

	// Tensor is an opaque back-reference to the tensor this shape
	// belongs to, supplied by the caller (the surface DSL layer); the
	// shape package never dereferences it.
	Tensor any
}

// New allocates a fresh Shape with a unique identity and the three
// given rows re-tagged to belong to it.
func New(label string, batch, input, output Row) *Shape {
	id := symbol.New("shape")
	batch.id = ID{ShapeID: id, Kind: Batch}
	input.id = ID{ShapeID: id, Kind: Input}
	output.id = ID{ShapeID: id, Kind: Output}
	return &Shape{id: id, Batch: batch, Input: input, Output: output, Label: label}
}

// ID returns the shape's unique identity.
func (s *Shape) ID() symbol.Symbol { return s.id }

// Row returns one of the shape's three rows by kind.
func (s *Shape) Row(k RowKind) Row {
	switch k {
	case Batch:
		return s.Batch
	case Input:
		return s.Input
	default:
		return s.Output
	}
}

// SetRow overwrites one of the shape's three rows by kind; used by the
// solver when substituting a row variable's solution back into the
// shape it was found in.
func (s *Shape) SetRow(k RowKind, r Row) {
	switch k {
	case Batch:
		s.Batch = r
	case Input:
		s.Input = r
	default:
		s.Output = r
	}
}

// AxisOrder returns the dims of the shape in the physical indexing
// order batch ++ output ++ input.
func (s *Shape) AxisOrder() []Dim {
	out := make([]Dim, 0, len(s.Batch.Dims)+len(s.Output.Dims)+len(s.Input.Dims))
	out = append(out, s.Batch.Dims...)
	out = append(out, s.Output.Dims...)
	out = append(out, s.Input.Dims...)
	return out
}

// Resolved reports whether every row of the shape is closed and every
// dim is concrete -- the post-condition of FinishInference (spec
// testable property 1).
func (s *Shape) Resolved() bool {
	for _, r := range [...]Row{s.Batch, s.Input, s.Output} {
		if !r.Closed() {
			return false
		}
		for _, d := range r.Dims {
			if d.IsVar() {
				return false
			}
		}
	}
	return true
}

// String renders the shape using the same batch|input->output
// convention as the einsum surface syntax (spec section 4.1), which
// differs from the physical batch++output++input indexing order used
// internally by package proj.
func (s *Shape) String() string {
	txt := s.Batch.String() + "|" + s.Input.String() + "->" + s.Output.String()
	if s.Label != "" {
		return s.Label + ": " + txt
	}
	return txt
}
