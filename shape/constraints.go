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

// Constraint is one of the inequality/equality shapes the solver
// consumes. Direction convention (spec section 4.1): Cur is the
// super-tensor side and cannot shrink; Subr is the sub-tensor side and
// may be broadcast against Cur.
type Constraint interface {
	isConstraint()
	// trace renders the constraint for ShapeError diagnostics.
	trace() string
}

// DimEq unifies two dims.
type DimEq struct {
	A, B Dim
}

func (DimEq) isConstraint()   {}
func (c DimEq) trace() string { return c.A.String() + " = " + c.B.String() }

// RowEq unifies two rows, aligned on their trailing axes.
type RowEq struct {
	A, B Row
}

func (RowEq) isConstraint()   {}
func (c RowEq) trace() string { return c.A.String() + " = " + c.B.String() }

// DimIneq requires Cur >= Subr under the ground dim rule.
type DimIneq struct {
	Cur, Subr Dim
}

func (DimIneq) isConstraint()   {}
func (c DimIneq) trace() string { return c.Cur.String() + " >= " + c.Subr.String() }

// RowIneq requires Cur >= Subr axis-wise, after aligning trailing axes
// and extending the shorter side with fresh variables if it is open.
type RowIneq struct {
	Cur, Subr Row
}

func (RowIneq) isConstraint()   {}
func (c RowIneq) trace() string { return c.Cur.String() + " >= " + c.Subr.String() }

// RowConstr pins a row's total element count.
type RowConstr struct {
	Row Row
	N   int
}

func (RowConstr) isConstraint()   {}
func (c RowConstr) trace() string { return c.Row.String() + " has TotalElems" }

// TerminalDim marks a dim variable that should be closed at its LUB
// (or the neutral value, 1, if it has none) on the finishing round.
type TerminalDim struct {
	D Dim
}

func (TerminalDim) isConstraint()   {}
func (c TerminalDim) trace() string { return "terminal " + c.D.String() }

// TerminalRow marks a row variable that should be closed at its LUB
// (or the neutral value, the empty extension) on the finishing round.
type TerminalRow struct {
	R Row
}

func (TerminalRow) isConstraint()   {}
func (c TerminalRow) trace() string { return "terminal " + c.R.String() }
