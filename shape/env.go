// Copyright (C) 2022 The OCANNL Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero License as published by
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
	"golang.org/x/exp/slices"

	"github.com/lukstafi/ocannl/symbol"
)

// Env is the shape-inference environment for a single compilation
// unit. Design Notes (spec section 9) call out the original
// implementation's environment as process-wide global state kept only
// for developer ergonomics; here it is an explicit value threaded
// through every solver call instead, so concurrent or repeated
// compilations never interfere with one another.
type Env struct {
	dims map[uint64]*dimEntry
	rows map[uint64]*rowEntry

	// templateCache avoids re-minting fresh row variables when the
	// same row-variable extension (same row var, same number of new
	// axes) is required more than once during a single inference run;
	// see cacheKey below.
	templateCache map[uint64][]Dim
}

// dimEntry is either Solved (value known) or Bounds (still open, with
// whatever LUB information has accumulated so far).
type dimEntry struct {
	solved *Dim

	// alias, if set, means this variable has been unified with another
	// still-unsolved variable; alias names the representative.
	alias *symbol.Symbol

	// curVars/subrVars record the *other* dim variables this one has
	// been compared against via DimIneq, so that once either side
	// solves, the relationship can be rechecked.
	curVars  []symbol.Symbol
	subrVars []symbol.Symbol

	// lub is the tightest concrete dim known to bound this variable
	// from above (accumulated from the Subr side of DimIneq
	// constraints against a concrete Cur).
	lub *Dim
}

// canonicalDim follows the alias chain for a dim variable to its
// representative. Variables unified via DimEq before either side was
// concrete share one representative's entry.
func (e *Env) canonicalDim(sym symbol.Symbol) symbol.Symbol {
	for {
		ent, ok := e.dims[sym.ID()]
		if !ok || ent.alias == nil {
			return sym
		}
		sym = *ent.alias
	}
}

type rowEntry struct {
	solved *Row

	curVars  []symbol.Symbol
	subrVars []symbol.Symbol

	lub *Row
}

// NewEnv allocates a fresh, empty shape-inference environment.
func NewEnv() *Env {
	return &Env{
		dims:          make(map[uint64]*dimEntry),
		rows:          make(map[uint64]*rowEntry),
		templateCache: make(map[uint64][]Dim),
	}
}

func (e *Env) dimEntryFor(sym symbol.Symbol) *dimEntry {
	d, ok := e.dims[sym.ID()]
	if !ok {
		d = &dimEntry{}
		e.dims[sym.ID()] = d
	}
	return d
}

func (e *Env) rowEntryFor(sym symbol.Symbol) *rowEntry {
	r, ok := e.rows[sym.ID()]
	if !ok {
		r = &rowEntry{}
		e.rows[sym.ID()] = r
	}
	return r
}

// substDim follows a (possibly chained) variable to its solved value,
// returning d unchanged if it is concrete or still unsolved.
func (e *Env) substDim(d Dim) Dim {
	for d.IsVar() {
		canon := e.canonicalDim(d.Var())
		ent, ok := e.dims[canon.ID()]
		if !ok || ent.solved == nil {
			if !canon.Equal(d.Var()) {
				return dimFromVar(canon)
			}
			return d
		}
		d = *ent.solved
	}
	return d
}

// substRow follows a row variable to its solved replacement rows; a
// closed/solved row is returned with its Dims individually substituted
// too.
func (e *Env) substRow(r Row) Row {
	for {
		sym, open := r.Open()
		if !open {
			break
		}
		ent, ok := e.rows[sym.ID()]
		if !ok || ent.solved == nil {
			break
		}
		solved := *ent.solved
		// the row variable stood for the unknown left prefix, so the
		// axes it resolved to go in front of the axes we already knew
		// about (broadcasting prepends). solved may itself still be
		// open (another row variable), in which case the loop
		// continues and chases the chain to its end.
		merged := make([]Dim, 0, len(solved.Dims)+len(r.Dims))
		merged = append(merged, solved.Dims...)
		merged = append(merged, r.Dims...)
		r.Dims = merged
		r.open = solved.open
	}
	for i, d := range r.Dims {
		r.Dims[i] = e.substDim(d)
	}
	return r
}

// solveDimVar solves the dim variable v (or its canonical
// representative) to value, propagating the solution to any recorded
// relationships, and returns any freshly derivable constraints.
func (e *Env) solveDimVar(v symbol.Symbol, value Dim) []Constraint {
	v = e.canonicalDim(v)
	ent := e.dimEntryFor(v)
	if ent.solved != nil {
		return nil
	}
	cp := value
	ent.solved = &cp

	var out []Constraint
	for _, other := range ent.curVars {
		out = append(out, DimIneq{Cur: value, Subr: dimFromVar(other)})
	}
	for _, other := range ent.subrVars {
		out = append(out, DimIneq{Cur: dimFromVar(other), Subr: value})
	}
	return out
}

// unifyDimVars merges two still-unsolved dim variables into one
// equivalence class (DimEq between two variables). Their recorded
// bound relationships are merged onto the surviving representative.
func (e *Env) unifyDimVars(a, b symbol.Symbol) {
	a, b = e.canonicalDim(a), e.canonicalDim(b)
	if a.Equal(b) {
		return
	}
	// deterministic representative choice so repeated unifications of
	// the same pair are idempotent regardless of call order.
	repr, other := a, b
	if b.ID() < a.ID() {
		repr, other = b, a
	}
	reprEnt := e.dimEntryFor(repr)
	otherEnt := e.dimEntryFor(other)
	reprEnt.curVars = append(reprEnt.curVars, otherEnt.curVars...)
	reprEnt.subrVars = append(reprEnt.subrVars, otherEnt.subrVars...)
	if reprEnt.lub == nil {
		reprEnt.lub = otherEnt.lub
	}
	otherEnt.alias = &repr
	otherEnt.curVars = nil
	otherEnt.subrVars = nil
}

func (e *Env) solveRowVar(v symbol.Symbol, value Row) []Constraint {
	ent := e.rowEntryFor(v)
	if ent.solved != nil {
		return nil
	}
	cp := value
	ent.solved = &cp
	return nil
}

// cacheKey returns a deterministic key for the (row_var, length_delta)
// template cache; see solver.go's extendRow.
func cacheKey(rowVar symbol.Symbol, delta int) uint64 {
	return siphashTemplateKey(rowVar.ID(), uint64(int64(delta)))
}

// Close rewrites each of s's three rows to its fully-substituted form,
// following whatever row/dim variables the solver resolved. Callers
// should invoke this once per shape after FinishInference returns
// successfully; before that point a Shape's Batch/Input/Output fields
// may still hold the stale pre-solve snapshot, since Row values are
// substituted by the env rather than mutated in place.
func (e *Env) Close(s *Shape) {
	s.SetRow(Batch, e.substRow(s.Batch))
	s.SetRow(Input, e.substRow(s.Input))
	s.SetRow(Output, e.substRow(s.Output))
}

func uniqueAppend(list []symbol.Symbol, s symbol.Symbol) []symbol.Symbol {
	if slices.ContainsFunc(list, func(o symbol.Symbol) bool { return o.Equal(s) }) {
		return list
	}
	return append(list, s)
}
