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

package virtual

import (
	"fmt"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

// Inline builds the scalar computation that replaces a read
// Get(array, callIdcs) at a consumer, by unifying array's recorded
// canonical index tuple with callIdcs and replaying its accepted
// defining fragments (spec section 4.4 "Inlining"). prec is the
// precision the resulting local scope is tagged with (the array's own
// element precision).
func Inline(store *trace.Store, array symbol.Symbol, callIdcs []symbol.AxisIndex, prec symbol.Precision) (llir.Expr, error) {
	r := store.RecordFor(array)
	comps := relevantComputations(r.Computations, array)
	if len(comps) == 0 {
		return nil, fmt.Errorf("virtual: array %s has no recorded computations to inline", array)
	}

	canonical := comps[0].Idcs
	for _, c := range comps[1:] {
		if !idcsEqual(c.Idcs, canonical) {
			return nil, fmt.Errorf("virtual: array %s has inconsistent canonical index tuples across its recorded fragments", array)
		}
	}

	bind, err := unify(canonical, callIdcs)
	if err != nil {
		return nil, fmt.Errorf("virtual: inlining array %s: %w", array, err)
	}

	scopeID := symbol.New(array.Label)
	ctx := &substCtx{array: array, canonical: canonical, bind: bind, scopeID: scopeID, rename: map[symbol.Symbol]symbol.Symbol{}}

	stmts := make([]llir.Stmt, len(comps))
	for i, c := range comps {
		s, err := ctx.stmt(c.Fragment)
		if err != nil {
			return nil, err
		}
		stmts[i] = s
	}

	var body llir.Stmt
	if len(stmts) == 1 {
		body = stmts[0]
	} else {
		body = &llir.Seq{Stmts: stmts}
	}

	return &llir.LocalScope{Scope: scopeID, Prec: prec, Body: body, OrigIndices: callIdcs}, nil
}

// relevantComputations returns the suffix of comps (in program order)
// that is needed to reconstruct array's value at a read: everything
// back to, and including, the most recent fragment that zeroes the
// array out. If none of comps zeroes it out, the whole history is
// needed (spec section 4.4: "Multiple fragments accumulate in program
// order and will be replayed in reverse order when inlined" -- the
// search for the cut point runs backward, but the fragments it keeps
// are spliced in their original forward order, since that is the
// order their side effects must execute in).
func relevantComputations(comps []trace.Computation, array symbol.Symbol) []trace.Computation {
	for i := len(comps) - 1; i >= 0; i-- {
		if fragmentZeroesOut(comps[i].Fragment, array) {
			return comps[i:]
		}
	}
	return comps
}

func fragmentZeroesOut(s llir.Stmt, array symbol.Symbol) bool {
	switch v := s.(type) {
	case llir.ZeroOut:
		return v.Array.Equal(array)
	case *llir.Seq:
		for _, st := range v.Stmts {
			if fragmentZeroesOut(st, array) {
				return true
			}
		}
		return false
	case *llir.For:
		return fragmentZeroesOut(v.Body, array)
	default:
		return false
	}
}

// unify matches array's canonical index tuple against a read's call
// site index vector: an iterator position is always bound (old
// iterator -> whatever the call site provides there); a fixed
// position must match the call site's identical fixed value and
// contributes no binding (spec section 4.4: "equal iterators are
// bound (old -> new), matching fixed indices drop out; anything else
// aborts inlining for this site").
func unify(canonical, callIdcs []symbol.AxisIndex) (map[symbol.Symbol]symbol.AxisIndex, error) {
	if len(canonical) != len(callIdcs) {
		return nil, fmt.Errorf("canonical index tuple has %d axes, call site has %d", len(canonical), len(callIdcs))
	}
	bind := make(map[symbol.Symbol]symbol.AxisIndex, len(canonical))
	for i, c := range canonical {
		call := callIdcs[i]
		if c.IsFixed() {
			if !call.IsFixed() || call.Fixed() != c.Fixed() {
				return nil, fmt.Errorf("canonical axis %d is fixed at %d, call site provides %s", i, c.Fixed(), call)
			}
			continue
		}
		bind[c.Iterator()] = call
	}
	return bind, nil
}

// substCtx carries the state needed to rewrite one defining fragment
// into the body of the local scope that replaces array: bind
// translates the fragment's own canonical-axis iterator symbols to
// the call site's index expressions; rename gives every other loop
// introduced by the fragment (e.g. a contraction loop that is not one
// of array's own axes) a fresh symbol, so splicing the fragment into a
// different surrounding loop nest cannot alias an unrelated binding
// of the same name (spec section 4.4: "All other reads/loops are
// passed through with variable substitution (fresh loop symbols to
// avoid capture)").
type substCtx struct {
	array     symbol.Symbol
	canonical []symbol.AxisIndex
	bind      map[symbol.Symbol]symbol.AxisIndex
	scopeID   symbol.Symbol
	rename    map[symbol.Symbol]symbol.Symbol
}

func (c *substCtx) child() *substCtx {
	renamed := make(map[symbol.Symbol]symbol.Symbol, len(c.rename))
	for k, v := range c.rename {
		renamed[k] = v
	}
	return &substCtx{array: c.array, canonical: c.canonical, bind: c.bind, scopeID: c.scopeID, rename: renamed}
}

func (c *substCtx) substIdx(idx symbol.AxisIndex) symbol.AxisIndex {
	if idx.IsFixed() {
		return idx
	}
	it := idx.Iterator()
	if repl, ok := c.bind[it]; ok {
		return repl
	}
	if fresh, ok := c.rename[it]; ok {
		return symbol.IterIdx(fresh)
	}
	return idx
}

func (c *substCtx) substIdcs(idcs []symbol.AxisIndex) []symbol.AxisIndex {
	if idcs == nil {
		return nil
	}
	out := make([]symbol.AxisIndex, len(idcs))
	for i, idx := range idcs {
		out[i] = c.substIdx(idx)
	}
	return out
}

func (c *substCtx) stmt(s llir.Stmt) (llir.Stmt, error) {
	switch v := s.(type) {
	case nil:
		return nil, nil
	case llir.Noop:
		return v, nil
	case llir.Comment:
		return v, nil
	case *llir.Seq:
		out := make([]llir.Stmt, len(v.Stmts))
		for i, st := range v.Stmts {
			r, err := c.stmt(st)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &llir.Seq{Stmts: out}, nil
	case *llir.For:
		// A loop over one of array's own canonical axes disappears
		// entirely: it is replaced, axis by axis, by the call site's
		// index expressions, so only its body survives.
		if _, ok := c.bind[v.Index]; ok {
			return c.stmt(v.Body)
		}
		child := c.child()
		fresh := symbol.New(v.Index.Label)
		child.rename[v.Index] = fresh
		body, err := child.stmt(v.Body)
		if err != nil {
			return nil, err
		}
		return &llir.For{Index: fresh, From: v.From, To: v.To, Body: body, TraceIt: v.TraceIt}, nil
	case llir.ZeroOut:
		if v.Array.Equal(c.array) {
			return &llir.SetLocal{Scope: c.scopeID, Value: llir.Const{Value: 0}}, nil
		}
		return v, nil
	case *llir.Set:
		val, err := c.expr(v.Value)
		if err != nil {
			return nil, err
		}
		if v.Array.Equal(c.array) {
			if !idcsEqual(v.Idcs, c.canonical) {
				return nil, fmt.Errorf("virtual: Set of %s uses index tuple %v, fragment's canonical tuple is %v", c.array, v.Idcs, c.canonical)
			}
			return &llir.SetLocal{Scope: c.scopeID, Value: val}, nil
		}
		return &llir.Set{Array: v.Array, Idcs: c.substIdcs(v.Idcs), Value: val}, nil
	case *llir.SetLocal:
		val, err := c.expr(v.Value)
		if err != nil {
			return nil, err
		}
		return &llir.SetLocal{Scope: v.Scope, Value: val}, nil
	case *llir.StagedCallback:
		return nil, fmt.Errorf("virtual: cannot inline a fragment containing staged callback %q", v.Label)
	default:
		return nil, fmt.Errorf("virtual: inline: unhandled statement type %T", s)
	}
}

func (c *substCtx) expr(e llir.Expr) (llir.Expr, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case llir.Const:
		return v, nil
	case llir.GetLocal:
		return v, nil
	case llir.Get:
		if v.Array.Equal(c.array) {
			if !idcsEqual(v.Idcs, c.canonical) {
				return nil, fmt.Errorf("virtual: Get of %s uses index tuple %v, fragment's canonical tuple is %v", c.array, v.Idcs, c.canonical)
			}
			return llir.GetLocal{Scope: c.scopeID}, nil
		}
		return llir.Get{Array: v.Array, Idcs: c.substIdcs(v.Idcs)}, nil
	case llir.GetGlobal:
		return llir.GetGlobal{Ident: v.Ident, Idcs: c.substIdcs(v.Idcs)}, nil
	case llir.EmbedIndex:
		return llir.EmbedIndex{Index: c.substIdx(v.Index)}, nil
	case *llir.Binop:
		a, err := c.expr(v.A)
		if err != nil {
			return nil, err
		}
		b, err := c.expr(v.B)
		if err != nil {
			return nil, err
		}
		return &llir.Binop{Op: v.Op, A: a, B: b}, nil
	case *llir.Unop:
		a, err := c.expr(v.A)
		if err != nil {
			return nil, err
		}
		return &llir.Unop{Op: v.Op, A: a}, nil
	case *llir.LocalScope:
		body, err := c.stmt(v.Body)
		if err != nil {
			return nil, err
		}
		return &llir.LocalScope{Scope: v.Scope, Prec: v.Prec, Body: body, OrigIndices: c.substIdcs(v.OrigIndices)}, nil
	default:
		return nil, fmt.Errorf("virtual: inline: unhandled expression type %T", e)
	}
}
