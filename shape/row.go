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
	"strings"

	"github.com/lukstafi/ocannl/symbol"
)

// RowKind is one of the three axis kinds composing a Shape.
type RowKind int

const (
	Batch RowKind = iota
	Input
	Output
)

func (k RowKind) String() string {
	switch k {
	case Batch:
		return "batch"
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "?"
	}
}

// ConstraintKind distinguishes the two forms a Row's dims_constraint
// may take.
type ConstraintKind int

const (
	Unconstrained ConstraintKind = iota
	TotalElems
)

// DimsConstraint is a Row-level side constraint: either none, or a
// required product of axis sizes (spec: "dims_constraint that is
// either Unconstrained or TotalElems n").
type DimsConstraint struct {
	Kind ConstraintKind
	N    int
}

// Row is an ordered list of Dim with a trailing openness marker.
//
// Axes are stored in the order they are *known*, following the
// broadcasting convention that new axes are prepended: Dims[0] is the
// leftmost known axis and, for an open row, further axes may still be
// discovered to its left.
type Row struct {
	id ID

	Dims []Dim

	// open, if non-nil, is the row variable standing for the (possibly
	// empty) extensible prefix to the left of Dims. A nil open marks a
	// Broadcastable (closed) row: Dims is the complete axis list.
	open *symbol.Symbol

	Constraint DimsConstraint
}

// ID identifies a Row by the tensor shape it belongs to and which of
// the three rows (batch/input/output) it is.
type ID struct {
	ShapeID symbol.Symbol
	Kind    RowKind
}

// NewClosedRow returns a Broadcastable (closed) row with the given
// dims and no further constraint.
func NewClosedRow(id ID, dims ...Dim) Row {
	return Row{id: id, Dims: dims}
}

// NewOpenRow returns a row that may still be extended with more axes
// to its left, via a fresh row variable.
func NewOpenRow(id ID, dims ...Dim) Row {
	v := symbol.New("row")
	return Row{id: id, Dims: dims, open: &v}
}

// ID returns the row's identity.
func (r Row) ID() ID { return r.id }

// Open reports whether the row can still be extended leftward, and if
// so returns the row variable standing for the unknown prefix.
func (r Row) Open() (symbol.Symbol, bool) {
	if r.open == nil {
		return symbol.Symbol{}, false
	}
	return *r.open, true
}

// Closed reports whether the row is Broadcastable (no further axes).
func (r Row) Closed() bool { return r.open == nil }

// Close returns a copy of r with its openness marker removed: no more
// axes can be discovered to the left. The solver does not call it; it
// closes rows by solving their row variable instead.
func (r Row) Close() Row {
	r.open = nil
	return r
}

// Prepend returns a copy of r with additional dims inserted to the
// left of the existing ones (the broadcasting convention: trailing
// axes are preserved, new axes extend the row leftward).
func (r Row) Prepend(dims ...Dim) Row {
	nd := make([]Dim, 0, len(dims)+len(r.Dims))
	nd = append(nd, dims...)
	nd = append(nd, r.Dims...)
	r.Dims = nd
	return r
}

// NumElems returns the product of all known dim sizes, or -1 if any
// dim is still a variable.
func (r Row) NumElems() int {
	n := 1
	for _, d := range r.Dims {
		if d.IsVar() {
			return -1
		}
		n *= d.Size()
	}
	return n
}

func (r Row) String() string {
	parts := make([]string, len(r.Dims))
	for i, d := range r.Dims {
		parts[i] = d.String()
	}
	s := strings.Join(parts, ",")
	if r.open != nil {
		if s == "" {
			return "[.." + r.open.String() + "]"
		}
		return "[.." + r.open.String() + "," + s + "]"
	}
	return "[" + s + "]"
}
