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

// TestInlineAllReplacesGetInPlace checks the single-array case: a
// consumer statement reading Get(a, [j]) has that read replaced by a
// LocalScope once a is virtual.
func TestInlineAllReplacesGetInPlace(t *testing.T) {
	a := symbol.New("a")
	b := symbol.New("b")
	i := symbol.New("i")
	j := symbol.New("j")

	fragA := &llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 1},
	}}
	st := trace.NewStore()
	if err := Accept(st, a, "a", fragA); err != nil {
		t.Fatal(err)
	}

	program := &llir.For{Index: j, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: b,
		Idcs:  []symbol.AxisIndex{symbol.IterIdx(j)},
		Value: llir.Get{Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(j)}},
	}}

	out, err := InlineAll(st, program, nil)
	if err != nil {
		t.Fatal(err)
	}
	forJ := out.(*llir.For)
	setB := forJ.Body.(*llir.Set)
	if _, ok := setB.Value.(*llir.LocalScope); !ok {
		t.Fatalf("got %T, want *llir.LocalScope after inlining", setB.Value)
	}
}

// TestInlineAllResolvesTransitiveVirtualChain checks that inlining a
// reaches into a's own fragment, which itself reads virtual array x;
// one InlineAll call must resolve the whole chain, leaving no Get of
// either a or x.
func TestInlineAllResolvesTransitiveVirtualChain(t *testing.T) {
	a := symbol.New("a")
	x := symbol.New("x")
	b := symbol.New("b")
	i := symbol.New("i")
	j := symbol.New("j")

	fragX := &llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: x, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 7},
	}}
	fragA := &llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: a,
		Idcs:  []symbol.AxisIndex{symbol.IterIdx(i)},
		Value: &llir.Binop{Op: llir.Add, A: llir.Get{Array: x, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}}, B: llir.Const{Value: 1}},
	}}

	st := trace.NewStore()
	if err := Accept(st, x, "x", fragX); err != nil {
		t.Fatal(err)
	}
	if err := Accept(st, a, "a", fragA); err != nil {
		t.Fatal(err)
	}

	program := &llir.For{Index: j, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: b,
		Idcs:  []symbol.AxisIndex{symbol.IterIdx(j)},
		Value: llir.Get{Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(j)}},
	}}

	out, err := InlineAll(st, program, nil)
	if err != nil {
		t.Fatal(err)
	}

	var containsGetOf func(n llir.Node, target symbol.Symbol) bool
	containsGetOf = func(n llir.Node, target symbol.Symbol) bool {
		switch v := n.(type) {
		case llir.Get:
			return v.Array.Equal(target)
		case *llir.For:
			return containsGetOf(v.Body, target)
		case *llir.Seq:
			for _, s := range v.Stmts {
				if containsGetOf(s, target) {
					return true
				}
			}
			return false
		case *llir.Set:
			return containsGetOf(v.Value, target)
		case *llir.SetLocal:
			return containsGetOf(v.Value, target)
		case *llir.Binop:
			return containsGetOf(v.A, target) || containsGetOf(v.B, target)
		case *llir.Unop:
			return containsGetOf(v.A, target)
		case *llir.LocalScope:
			return containsGetOf(v.Body, target)
		default:
			return false
		}
	}
	if containsGetOf(out, a) {
		t.Error("expected no remaining Get of a after InlineAll")
	}
	if containsGetOf(out, x) {
		t.Error("expected no remaining Get of x after InlineAll (transitive inlining)")
	}
}
