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

// TestCleanupRemovesVirtualArrayWrites checks that, once an array is
// virtual, its remaining ZeroOut/Set nodes are deleted while a
// sibling non-virtual array's writes are left alone.
func TestCleanupRemovesVirtualArrayWrites(t *testing.T) {
	a := symbol.New("a")
	b := symbol.New("b")
	i := symbol.New("i")

	program := &llir.Seq{Stmts: []llir.Stmt{
		llir.ZeroOut{Array: a},
		&llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Seq{Stmts: []llir.Stmt{
			&llir.Set{Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 1}},
			&llir.Set{Array: b, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 2}},
		}}},
	}}

	st := trace.NewStore()
	fragA := &llir.For{Index: i, From: 0, To: 4, TraceIt: true, Body: &llir.Set{
		Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 1},
	}}
	if err := Accept(st, a, "a", fragA); err != nil {
		t.Fatal(err)
	}

	out, err := Cleanup(st, program)
	if err != nil {
		t.Fatal(err)
	}

	seq := out.(*llir.Seq)
	if len(seq.Stmts) != 1 {
		t.Fatalf("got %d top-level statements, want 1 (ZeroOut(a) should be deleted)", len(seq.Stmts))
	}
	forLoop := seq.Stmts[0].(*llir.For)
	body := forLoop.Body.(*llir.Seq)
	if len(body.Stmts) != 1 {
		t.Fatalf("got %d loop-body statements, want 1 (Set(a,...) should be deleted)", len(body.Stmts))
	}
	if s, ok := body.Stmts[0].(*llir.Set); !ok || !s.Array.Equal(b) {
		t.Errorf("remaining statement should be the write to the non-virtual array b, got %#v", body.Stmts[0])
	}
}

// TestCleanupErrorsOnSurvivingVirtualGet checks that a Get of a still
// virtual array (one that was never replaced by Inline) is reported
// as an error rather than silently left in place.
func TestCleanupErrorsOnSurvivingVirtualGet(t *testing.T) {
	a := symbol.New("a")
	b := symbol.New("b")

	fragA := &llir.Set{Array: a, Idcs: nil, Value: llir.Const{Value: 1}}
	st := trace.NewStore()
	if err := Accept(st, a, "a", fragA); err != nil {
		t.Fatal(err)
	}

	program := &llir.Set{Array: b, Idcs: nil, Value: llir.Get{Array: a, Idcs: nil}}
	if _, err := Cleanup(st, program); err == nil {
		t.Error("expected an error for a surviving Get of a still-virtual array")
	}
}

// TestCleanupRejectsEscapedIterator checks the in-scope assertion: an
// index referencing a symbol with no enclosing For is an error.
func TestCleanupRejectsEscapedIterator(t *testing.T) {
	a := symbol.New("a")
	i := symbol.New("i")
	program := &llir.Set{Array: a, Idcs: []symbol.AxisIndex{symbol.IterIdx(i)}, Value: llir.Const{Value: 0}}

	st := trace.NewStore()
	if _, err := Cleanup(st, program); err == nil {
		t.Error("expected an error for an index iterator with no enclosing loop")
	}
}
