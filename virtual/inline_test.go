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
	"testing"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

// TestInlinePeelsCanonicalLoop checks the common case: a[i] = 1 under
// a traced loop, inlined at a[2], should peel the loop entirely and
// leave a two-statement local scope body with no remaining For.
func TestInlinePeelsCanonicalLoop(t *testing.T) {
	a := symbol.New("a")
	i := symbol.New("i")
	frag := &llir.Seq{Stmts: []llir.Stmt{
		llir.ZeroOut{Array: a},
		&llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
			Array: a,
			Idcs:  []symbol.AxisIndex{symbol.IterIdx(i)},
			Value: llir.Const{Value: 1},
		}},
	}}

	st := trace.NewStore()
	if err := Accept(st, a, "fill", frag); err != nil {
		t.Fatal(err)
	}

	scope, err := Inline(st, a, []symbol.AxisIndex{symbol.FixedIdx(2)}, symbol.Single)
	if err != nil {
		t.Fatal(err)
	}
	ls, ok := scope.(*llir.LocalScope)
	if !ok {
		t.Fatalf("got %T, want *llir.LocalScope", scope)
	}
	if len(ls.OrigIndices) != 1 || !ls.OrigIndices[0].Equal(symbol.FixedIdx(2)) {
		t.Errorf("got orig indices %v, want [2]", ls.OrigIndices)
	}
	var containsFor func(s llir.Stmt) bool
	containsFor = func(s llir.Stmt) bool {
		switch v := s.(type) {
		case *llir.For:
			return true
		case *llir.Seq:
			for _, st := range v.Stmts {
				if containsFor(st) {
					return true
				}
			}
		}
		return false
	}
	if containsFor(ls.Body) {
		t.Error("the canonical loop should have been peeled, not left in the inlined body")
	}
}

// TestInlineRenamesNonCanonicalLoop checks that a reduction loop
// nested under the canonical loop, but indexed by a different
// iterator, is kept but given a fresh symbol.
func TestInlineRenamesNonCanonicalLoop(t *testing.T) {
	a := symbol.New("a")
	x := symbol.New("x")
	i := symbol.New("i")
	k := symbol.New("k")
	acc := symbol.New("acc")

	reduction := &llir.LocalScope{
		Scope: acc,
		Prec:  symbol.Single,
		Body: &llir.Seq{Stmts: []llir.Stmt{
			&llir.SetLocal{Scope: acc, Value: llir.Const{Value: 0}},
			&llir.For{Index: k, From: 0, To: 3, TraceIt: true, Body: &llir.SetLocal{
				Scope: acc,
				Value: &llir.Binop{Op: llir.Add, A: llir.GetLocal{Scope: acc}, B: llir.Get{Array: x, Idcs: []symbol.AxisIndex{symbol.IterIdx(k)}}},
			}},
		}},
	}
	frag := &llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: a,
		Idcs:  []symbol.AxisIndex{symbol.IterIdx(i)},
		Value: reduction,
	}}

	st := trace.NewStore()
	if err := Accept(st, a, "reduce", frag); err != nil {
		t.Fatal(err)
	}

	scope, err := Inline(st, a, []symbol.AxisIndex{symbol.FixedIdx(2)}, symbol.Single)
	if err != nil {
		t.Fatal(err)
	}
	ls := scope.(*llir.LocalScope)
	setOuter, ok := ls.Body.(*llir.SetLocal)
	if !ok {
		t.Fatalf("got %T, want *llir.SetLocal", ls.Body)
	}
	innerScope, ok := setOuter.Value.(*llir.LocalScope)
	if !ok {
		t.Fatalf("got %T, want *llir.LocalScope", setOuter.Value)
	}
	if !innerScope.Scope.Equal(acc) {
		t.Error("the reduction's own local scope id must survive unrenamed")
	}
	innerSeq := innerScope.Body.(*llir.Seq)
	forK, ok := innerSeq.Stmts[1].(*llir.For)
	if !ok {
		t.Fatalf("got %T, want *llir.For", innerSeq.Stmts[1])
	}
	if forK.Index.Equal(k) {
		t.Error("the non-canonical reduction loop should have been given a fresh symbol")
	}
}

// TestInlineRejectsFixedMismatch checks that a fixed canonical axis
// that disagrees with the call site's fixed value aborts inlining.
func TestInlineRejectsFixedMismatch(t *testing.T) {
	a := symbol.New("a")
	frag := &llir.Set{Array: a, Idcs: []symbol.AxisIndex{symbol.FixedIdx(0)}, Value: llir.Const{Value: 1}}

	st := trace.NewStore()
	if err := Accept(st, a, "fixed", frag); err != nil {
		t.Fatal(err)
	}
	if _, err := Inline(st, a, []symbol.AxisIndex{symbol.FixedIdx(1)}, symbol.Single); err == nil {
		t.Error("expected an error for mismatched fixed canonical axis")
	}
}

// TestInlineDropsMatchingFixedAxis checks that a fixed canonical axis
// matching the call site contributes no binding and does not block
// inlining.
func TestInlineDropsMatchingFixedAxis(t *testing.T) {
	a := symbol.New("a")
	frag := &llir.Set{Array: a, Idcs: []symbol.AxisIndex{symbol.FixedIdx(0)}, Value: llir.Const{Value: 1}}

	st := trace.NewStore()
	if err := Accept(st, a, "fixed", frag); err != nil {
		t.Fatal(err)
	}
	if _, err := Inline(st, a, []symbol.AxisIndex{symbol.FixedIdx(0)}, symbol.Single); err != nil {
		t.Fatal(err)
	}
}
