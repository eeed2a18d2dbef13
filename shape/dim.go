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

// Package shape implements the row-polymorphic shape inference
// subsystem: dimensions, rows, shapes, the constraint vocabulary, and
// the solver that closes a system of shape constraints into concrete
// dimension arrays.
package shape

import (
	"fmt"

	"github.com/lukstafi/ocannl/symbol"
)

// Dim is a single axis of a Row: either a variable awaiting
// resolution, or a concrete size. Concrete dims may additionally carry
// a label (used to check that two dims that are supposed to denote
// the same logical axis agree in size) and a projection-class id
// (filled in later by package proj).
type Dim struct {
	isVar  bool
	varSym symbol.Symbol

	size  int
	label string

	// projID, when non-zero, tags this dimension with the projection
	// equivalence-class id that package proj assigned to it. Zero
	// means "untagged."
	projID int
}

// DimVar returns a fresh dimension variable, optionally labeled.
func DimVar(label string) Dim {
	return Dim{isVar: true, varSym: symbol.New(label), label: label}
}

// dimFromVar wraps an existing symbol as a dim variable, without
// minting a new one. Used internally by the solver when it needs to
// refer back to a variable it already has the symbol for.
func dimFromVar(sym symbol.Symbol) Dim {
	return Dim{isVar: true, varSym: sym}
}

// ConcreteDim returns a concrete dimension of the given size.
func ConcreteDim(size int) Dim {
	return Dim{size: size}
}

// LabeledDim returns a concrete dimension of the given size carrying a
// label; two LabeledDim values with the same label must carry the same
// size (this is checked by the solver, see sameConcreteDim).
func LabeledDim(size int, label string) Dim {
	return Dim{size: size, label: label}
}

// IsVar reports whether d is an unresolved dimension variable.
func (d Dim) IsVar() bool { return d.isVar }

// Var returns the variable symbol; valid only if IsVar().
func (d Dim) Var() symbol.Symbol { return d.varSym }

// Size returns the concrete size; valid only if !IsVar().
func (d Dim) Size() int { return d.size }

// Label returns the dimension's debug label, which may be empty.
func (d Dim) Label() string { return d.label }

// ProjID returns the projection-class id tagged onto this dimension,
// or 0 if untagged.
func (d Dim) ProjID() int { return d.projID }

// WithProjID returns a copy of d tagged with the given projection id.
func (d Dim) WithProjID(id int) Dim {
	d.projID = id
	return d
}

func (d Dim) String() string {
	if d.isVar {
		return d.varSym.String()
	}
	if d.label != "" {
		return fmt.Sprintf("%d[%s]", d.size, d.label)
	}
	return fmt.Sprintf("%d", d.size)
}

// dimGround reports whether n >= m under the ground dim-inequality
// rule of spec section 4.1: "n >= m iff n = m or m = 1." Both dims
// must be concrete.
func dimGround(cur, subr Dim) bool {
	return cur.size == subr.size || subr.size == 1
}

// sameConcreteDim reports whether two concrete dims are the same
// dimension: equal sizes, and (if both labeled) equal labels. This is
// the "mismatching labels on two concrete dims" check from the
// solver's DimEq case.
func sameConcreteDim(a, b Dim) (ok bool, labelConflict bool) {
	if a.size != b.size {
		return false, false
	}
	if a.label != "" && b.label != "" && a.label != b.label {
		return false, true
	}
	return true, false
}
