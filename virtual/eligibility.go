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

// Package virtual implements virtualization and cleanup (spec section
// 4.4, "virtual_llc" / "cleanup_virtual_llc"): deciding which arrays
// may be replaced by a scalar local, substituting their defining
// fragments into every read site, and removing the now-dead array
// writes that remain.
//
// Grounded on plan/pir/projectelim.go's single-walk
// used-set-then-filter idiom (discover, then delete what turned out
// unused) and expr/simplify.go's stateless Rewriter-returning-itself
// pattern, both adapted from expr.Node to llir.Node.
package virtual

import (
	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

// checker walks one array's defining fragment and decides whether it
// satisfies process_computation's five acceptance rules (spec section
// 4.4). It stops recording as soon as one rule is violated; the first
// violation's reason is what is reported.
type checker struct {
	array        symbol.Symbol
	canonical    []symbol.AxisIndex
	hasCanonical bool
	rejected     bool
	reason       trace.Provenance
}

func (c *checker) reject(reason trace.Provenance) {
	if !c.rejected {
		c.rejected = true
		c.reason = reason
	}
}

// ProcessComputation is process_computation (spec section 4.4): it
// decides whether fragment is an eligible defining fragment for
// array. On success it returns the single canonical index tuple every
// write within fragment agreed on (hasIdcs is false if array is
// written at no index at all, e.g. a scalar).
func ProcessComputation(array symbol.Symbol, fragment llir.Stmt) (ok bool, canonical []symbol.AxisIndex, hasIdcs bool, reason trace.Provenance) {
	c := &checker{array: array}
	c.stmt(fragment, nil)
	if c.rejected {
		return false, nil, false, c.reason
	}
	return true, c.canonical, c.hasCanonical, trace.ProvenanceNone
}

func (c *checker) stmt(s llir.Stmt, scope []symbol.Symbol) {
	if c.rejected {
		return
	}
	switch v := s.(type) {
	case nil, llir.Noop, llir.Comment:
		return
	case llir.ZeroOut:
		return
	case *llir.Seq:
		for _, st := range v.Stmts {
			c.stmt(st, scope)
		}
	case *llir.For:
		if !v.TraceIt {
			c.reject(trace.ProvenanceUntracedLoop)
			return
		}
		child := append(append([]symbol.Symbol{}, scope...), v.Index)
		c.stmt(v.Body, child)
	case *llir.Set:
		c.expr(v.Value, scope)
		if v.Array.Equal(c.array) {
			c.checkIdcs(v.Idcs, scope)
		}
	case *llir.SetLocal:
		c.expr(v.Value, scope)
	case *llir.StagedCallback:
		c.reject(trace.ProvenanceStagedCallback)
	}
}

func (c *checker) checkIdcs(idcs []symbol.AxisIndex, scope []symbol.Symbol) {
	if c.rejected {
		return
	}
	seen := make(map[symbol.Symbol]bool, len(idcs))
	for _, idx := range idcs {
		if idx.IsFixed() {
			continue
		}
		it := idx.Iterator()
		if !inScope(it, scope) {
			c.reject(trace.ProvenanceEscapingIterator)
			return
		}
		if seen[it] {
			c.reject(trace.ProvenanceNonLinearIndex)
			return
		}
		seen[it] = true
	}
	if !c.hasCanonical {
		c.canonical = idcs
		c.hasCanonical = true
		return
	}
	if !idcsEqual(c.canonical, idcs) {
		c.reject(trace.ProvenanceMultiIndex)
	}
}

func (c *checker) expr(e llir.Expr, scope []symbol.Symbol) {
	if c.rejected {
		return
	}
	switch v := e.(type) {
	case nil, llir.Const, llir.GetLocal:
		return
	case llir.Get:
		c.checkReadIdcs(v.Idcs, scope)
	case llir.GetGlobal:
		c.checkReadIdcs(v.Idcs, scope)
	case llir.EmbedIndex:
		c.checkReadIdcs([]symbol.AxisIndex{v.Index}, scope)
	case *llir.Binop:
		c.expr(v.A, scope)
		c.expr(v.B, scope)
	case *llir.Unop:
		c.expr(v.A, scope)
	case *llir.LocalScope:
		c.stmt(v.Body, scope)
	}
}

// checkReadIdcs enforces rule (iii) on an index vector read elsewhere
// in the fragment (not a write to c.array, so unlike checkIdcs it
// never updates c.canonical): every non-fixed iterator must be bound
// by an enclosing For currently in scope, or the fragment would
// splice an unmatched iterator into whatever loop nest it lands in.
func (c *checker) checkReadIdcs(idcs []symbol.AxisIndex, scope []symbol.Symbol) {
	if c.rejected {
		return
	}
	for _, idx := range idcs {
		if idx.IsFixed() {
			continue
		}
		if !inScope(idx.Iterator(), scope) {
			c.reject(trace.ProvenanceEscapingIterator)
			return
		}
	}
}

func inScope(s symbol.Symbol, scope []symbol.Symbol) bool {
	for _, x := range scope {
		if x.Equal(s) {
			return true
		}
	}
	return false
}

func idcsEqual(a, b []symbol.AxisIndex) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
