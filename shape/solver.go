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

// Solve runs the constraint vocabulary described in spec section 4.1
// to a fixed point: equalities are unified immediately, inequalities
// tighten LUBs (and may force equalities when bounds cross), and
// TotalElems row constraints are solved as soon as at most one
// variable remains. Any constraint that cannot yet be resolved (most
// commonly a RowConstr still waiting on more than one unknown) is
// returned for a later round; Solve never loses a constraint.
func (e *Env) Solve(cs []Constraint) ([]Constraint, error) {
	queue := append([]Constraint(nil), cs...)
	var deferred []Constraint

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		switch k := c.(type) {
		case DimEq:
			next, err := e.solveDimEq(k.A, k.B, c)
			if err != nil {
				return nil, err
			}
			queue = append(queue, next...)

		case RowEq:
			next, err := e.solveRowEq(k.A, k.B, c)
			if err != nil {
				return nil, err
			}
			queue = append(queue, next...)

		case DimIneq:
			next, err := e.solveDimIneq(k.Cur, k.Subr, c)
			if err != nil {
				return nil, err
			}
			queue = append(queue, next...)

		case RowIneq:
			next, err := e.solveRowIneq(k.Cur, k.Subr, c)
			if err != nil {
				return nil, err
			}
			queue = append(queue, next...)

		case RowConstr:
			next, solved, err := e.solveRowConstr(k)
			if err != nil {
				return nil, err
			}
			if !solved {
				deferred = append(deferred, next...)
			} else {
				queue = append(queue, next...)
			}

		case TerminalDim, TerminalRow:
			deferred = append(deferred, c)

		default:
			deferred = append(deferred, c)
		}
	}
	return deferred, nil
}

func (e *Env) solveDimEq(a, b Dim, orig Constraint) ([]Constraint, error) {
	a = e.substDim(a)
	b = e.substDim(b)

	switch {
	case !a.IsVar() && !b.IsVar():
		ok, labelConflict := sameConcreteDim(a, b)
		if labelConflict {
			return nil, errf([]Constraint{orig}, "dim label conflict: %s vs %s", a, b)
		}
		if !ok {
			return nil, errf([]Constraint{orig}, "dim size mismatch: %s vs %s", a, b)
		}
		return nil, nil

	case a.IsVar() && !b.IsVar():
		return e.solveDimVar(a.Var(), b), nil

	case !a.IsVar() && b.IsVar():
		return e.solveDimVar(b.Var(), a), nil

	default:
		e.unifyDimVars(a.Var(), b.Var())
		return nil, nil
	}
}

// solveRowEq aligns a and b on their trailing axes, emits DimEq
// constraints for the aligned pairs, and resolves whichever side is
// open against the other's leftover leading axes.
func (e *Env) solveRowEq(a, b Row, orig Constraint) ([]Constraint, error) {
	a = e.substRow(a)
	b = e.substRow(b)

	na, nb := len(a.Dims), len(b.Dims)
	n := na
	if nb < n {
		n = nb
	}
	var out []Constraint
	for i := 1; i <= n; i++ {
		out = append(out, DimEq{A: a.Dims[na-i], B: b.Dims[nb-i]})
	}

	switch {
	case na == nb:
		if err := e.closeOrUnifyRowVars(a, b, orig); err != nil {
			return nil, err
		}
	case na > nb:
		leftover := append([]Dim(nil), a.Dims[:na-nb]...)
		if err := e.resolveShorterSide(b, leftover, orig); err != nil {
			return nil, err
		}
	default:
		leftover := append([]Dim(nil), b.Dims[:nb-na]...)
		if err := e.resolveShorterSide(a, leftover, orig); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// closeOrUnifyRowVars handles the equal-length case of RowEq: if
// exactly one side is open, it resolves to the empty extension
// (no leftover axes remain to explain); if both are open, their row
// variables are unified; if both are closed, there is nothing further
// to do.
func (e *Env) closeOrUnifyRowVars(a, b Row, orig Constraint) error {
	aSym, aOpen := a.Open()
	bSym, bOpen := b.Open()
	switch {
	case aOpen && bOpen:
		e.unifyRowVars(aSym, bSym)
	case aOpen && !bOpen:
		e.solveRowVar(aSym, NewClosedRow(ID{}))
	case !aOpen && bOpen:
		e.solveRowVar(bSym, NewClosedRow(ID{}))
	}
	return nil
}

// resolveShorterSide handles the unequal-length case: short is the
// shorter row, leftover is the longer row's excess leading axes. If
// short is open, its row variable resolves to leftover; if closed,
// that is an axis-count mismatch.
func (e *Env) resolveShorterSide(short Row, leftover []Dim, orig Constraint) error {
	sym, open := short.Open()
	if !open {
		return errf([]Constraint{orig}, "axis count mismatch: %s cannot absorb %d more axes", short, len(leftover))
	}
	if occursInLeftover(sym, leftover) {
		return errf([]Constraint{orig}, "infinite axes: row variable %s occurs in its own solution", sym)
	}
	e.solveRowVar(sym, NewClosedRow(ID{}, leftover...))
	return nil
}

func occursInLeftover(sym symbol.Symbol, leftover []Dim) bool {
	for _, d := range leftover {
		if d.IsVar() && d.Var().Equal(sym) {
			return true
		}
	}
	return false
}

func (e *Env) unifyRowVars(a, b symbol.Symbol) {
	if a.Equal(b) {
		return
	}
	repr, other := a, b
	if b.ID() < a.ID() {
		repr, other = b, a
	}
	reprEnt := e.rowEntryFor(repr)
	otherEnt := e.rowEntryFor(other)
	reprEnt.curVars = append(reprEnt.curVars, otherEnt.curVars...)
	reprEnt.subrVars = append(reprEnt.subrVars, otherEnt.subrVars...)
	if reprEnt.lub == nil {
		reprEnt.lub = otherEnt.lub
	}
	// aliasing for rows is modeled by solving `other` to a row that is
	// itself still open on `repr`, so later substitution chains through.
	solved := NewClosedRow(ID{})
	solved.open = &repr
	solved.Dims = nil
	otherEnt.solved = &solved
}

func (e *Env) solveDimIneq(cur, subr Dim, orig Constraint) ([]Constraint, error) {
	cur = e.substDim(cur)
	subr = e.substDim(subr)

	switch {
	case !cur.IsVar() && !subr.IsVar():
		if !dimGround(cur, subr) {
			return nil, errf([]Constraint{orig}, "dim inequality violated: %s >= %s", cur, subr)
		}
		return nil, nil

	case !cur.IsVar() && subr.IsVar():
		if cur.Size() == 1 {
			// n=1 forces m=1.
			return e.solveDimVar(subr.Var(), ConcreteDim(1)), nil
		}
		ent := e.dimEntryFor(e.canonicalDim(subr.Var()))
		if ent.lub != nil && ent.lub.Size() != cur.Size() {
			// bounds cross: the only value satisfying every bound seen
			// so far is the broadcastable dim, 1.
			return e.solveDimVar(subr.Var(), ConcreteDim(1)), nil
		}
		cp := cur
		ent.lub = &cp
		return nil, nil

	case cur.IsVar() && !subr.IsVar():
		if subr.Size() == 1 {
			// any n satisfies n >= 1; no constraint to record.
			return nil, nil
		}
		// m != 1 forces n = m exactly.
		return e.solveDimVar(cur.Var(), subr), nil

	default:
		curSym := e.canonicalDim(cur.Var())
		subrSym := e.canonicalDim(subr.Var())
		if curSym.Equal(subrSym) {
			return nil, nil
		}
		ce := e.dimEntryFor(curSym)
		se := e.dimEntryFor(subrSym)
		ce.subrVars = uniqueAppend(ce.subrVars, subrSym)
		se.curVars = uniqueAppend(se.curVars, curSym)
		return nil, nil
	}
}

// solveRowIneq aligns trailing axes as DimIneq constraints and, when
// one side has fewer known axes and is open, extends it with a
// template of fresh variables bounded by the other side's excess axes
// (spec: "construct a template of fresh variables and equate the
// supertype to it").
func (e *Env) solveRowIneq(cur, subr Row, orig Constraint) ([]Constraint, error) {
	cur = e.substRow(cur)
	subr = e.substRow(subr)

	nc, ns := len(cur.Dims), len(subr.Dims)
	n := nc
	if ns < n {
		n = ns
	}
	var out []Constraint
	for i := 1; i <= n; i++ {
		out = append(out, DimIneq{Cur: cur.Dims[nc-i], Subr: subr.Dims[ns-i]})
	}

	switch {
	case nc == ns:
		// nothing further; any remaining openness is resolved by a
		// later Terminal* pass or another constraint.
	case nc > ns:
		// cur (the super/dominant side) already has more known axes;
		// extend subr with a template bounded below by cur's excess.
		extra := cur.Dims[:nc-ns]
		template, err := e.extendRow(subr, len(extra), orig)
		if err != nil {
			return nil, err
		}
		for i, d := range extra {
			out = append(out, DimIneq{Cur: d, Subr: template[i]})
		}
	default:
		// subr has more known axes than cur; cur must still dominate,
		// so the fresh template added to cur is the Cur side of each
		// new inequality and subr's excess dims are the Subr side.
		extra := subr.Dims[:ns-nc]
		template, err := e.extendRow(cur, len(extra), orig)
		if err != nil {
			return nil, err
		}
		for i, d := range extra {
			out = append(out, DimIneq{Cur: template[i], Subr: d})
		}
	}
	return out, nil
}

// extendRow grows the open row `short` with n fresh dim variables,
// resolves short's row variable to that template, and returns the
// template dims so the caller can relate them (in the correct
// Cur/Subr direction for its situation) to the other row's excess
// axes. The template is cached per (row var, n) so re-deriving the
// same extension twice reuses the same fresh variables instead of
// minting new ones (spec section 5).
func (e *Env) extendRow(short Row, n int, orig Constraint) ([]Dim, error) {
	sym, open := short.Open()
	if !open {
		return nil, errf([]Constraint{orig}, "axis count mismatch: %s cannot absorb %d more axes", short, n)
	}
	key := cacheKey(sym, n)
	template, cached := e.templateCache[key]
	if !cached {
		template = make([]Dim, n)
		for i := range template {
			template[i] = DimVar("")
		}
		e.templateCache[key] = template
		e.solveRowVar(sym, NewClosedRow(ID{}, template...))
	}
	return template, nil
}

// solveRowConstr attempts to resolve a TotalElems constraint: if the
// row is closed and has at most one remaining variable, that variable
// is solved as n / product(knowns). Returns solved=false (and the
// original constraint echoed back) if the row is still open or has
// more than one unresolved variable.
func (e *Env) solveRowConstr(c RowConstr) ([]Constraint, bool, error) {
	r := e.substRow(c.Row)
	if _, open := r.Open(); open {
		return []Constraint{RowConstr{Row: r, N: c.N}}, false, nil
	}

	product := 1
	var freeVar *Dim
	freeCount := 0
	for i := range r.Dims {
		d := r.Dims[i]
		if d.IsVar() {
			freeCount++
			freeVar = &r.Dims[i]
			continue
		}
		product *= d.Size()
	}
	if freeCount > 1 {
		return []Constraint{RowConstr{Row: r, N: c.N}}, false, nil
	}
	if freeCount == 0 {
		if product != c.N {
			return nil, false, errf([]Constraint{c}, "TotalElems %d unsatisfiable: row %s has %d elements", c.N, r, product)
		}
		return nil, true, nil
	}
	if product == 0 || c.N%product != 0 {
		return nil, false, errf([]Constraint{c}, "TotalElems %d unsatisfiable: %s does not divide evenly", c.N, r)
	}
	q := c.N / product
	if q == 0 {
		return nil, false, errf([]Constraint{c}, "TotalElems %d unsatisfiable: quotient is zero for %s", c.N, r)
	}
	return e.solveDimVar(freeVar.Var(), ConcreteDim(q)), true, nil
}

// FinishInference runs Solve to a fixed point, then closes any
// remaining Terminal markers by substituting the accumulated LUB (or
// the neutral value if none), then runs Solve once more to propagate
// those closures. After FinishInference returns successfully, every
// shape reachable from the given terminals has no variables left
// (spec testable property 1).
func (e *Env) FinishInference(cs []Constraint) error {
	pending := cs
	for {
		next, err := e.Solve(pending)
		if err != nil {
			return err
		}
		if len(next) == len(pending) && sameConstraintSet(next, pending) {
			pending = next
			break
		}
		pending = next
	}

	var terminals []Constraint
	var stillPending []Constraint
	for _, c := range pending {
		switch c.(type) {
		case TerminalDim, TerminalRow:
			terminals = append(terminals, c)
		default:
			stillPending = append(stillPending, c)
		}
	}
	for _, c := range terminals {
		switch t := c.(type) {
		case TerminalDim:
			d := e.substDim(t.D)
			if d.IsVar() {
				ent := e.dimEntryFor(e.canonicalDim(d.Var()))
				if ent.lub != nil {
					e.solveDimVar(d.Var(), *ent.lub)
				} else {
					e.solveDimVar(d.Var(), ConcreteDim(1))
				}
			}
		case TerminalRow:
			r := e.substRow(t.R)
			if sym, open := r.Open(); open {
				ent := e.rowEntryFor(sym)
				if ent.lub != nil {
					e.solveRowVar(sym, *ent.lub)
				} else {
					e.solveRowVar(sym, NewClosedRow(ID{}))
				}
			}
		}
	}

	if len(stillPending) > 0 {
		final, err := e.Solve(stillPending)
		if err != nil {
			return err
		}
		if len(final) > 0 {
			return errf(final, "shape inference did not reach a fixed point: %d constraints remain", len(final))
		}
	}

	// Belt-and-suspenders: close any dim/row variable the env ever
	// minted (including templates synthesized mid-solve by extendRow,
	// which predate any TerminalDim/TerminalRow marker) that is still
	// unsolved once every explicit constraint has been exhausted. This
	// keeps testable property 1 (no leftover variables) true even for a
	// variable that happens never to be compared against anything
	// concrete.
	e.closeRemaining()
	return nil
}

// closeRemaining walks every dim/row variable the env has ever seen
// and solves whatever is still unsolved to its accumulated LUB, or to
// the neutral value (1 for a dim, the empty row for a row) if it has
// none. Aliased (non-representative) variables are skipped; they
// resolve through their representative instead.
func (e *Env) closeRemaining() {
	for _, ent := range e.dims {
		if ent.solved != nil || ent.alias != nil {
			continue
		}
		if ent.lub != nil {
			cp := *ent.lub
			ent.solved = &cp
		} else {
			one := ConcreteDim(1)
			ent.solved = &one
		}
	}
	for _, ent := range e.rows {
		if ent.solved != nil {
			continue
		}
		if ent.lub != nil {
			cp := *ent.lub
			ent.solved = &cp
		} else {
			empty := NewClosedRow(ID{})
			ent.solved = &empty
		}
	}
}

func sameConstraintSet(a, b []Constraint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].trace() != b[i].trace() {
			return false
		}
	}
	return true
}
