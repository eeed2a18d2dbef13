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

package simplify

import (
	"testing"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
)

func constExpr(v float64) llir.Expr { return llir.Const{Value: v} }

func TestSimplifyConstantFolding(t *testing.T) {
	e := &llir.Binop{Op: llir.Add, A: constExpr(2), B: constExpr(3)}
	got := SimplifyExpr(e, Options{})
	want := llir.Const{Value: 5}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyIdentities(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	cases := []struct {
		name string
		e    llir.Expr
		want llir.Expr
	}{
		{"x+0", &llir.Binop{Op: llir.Add, A: x, B: constExpr(0)}, x},
		{"0+x", &llir.Binop{Op: llir.Add, A: constExpr(0), B: x}, x},
		{"x-0", &llir.Binop{Op: llir.Sub, A: x, B: constExpr(0)}, x},
		{"x*1", &llir.Binop{Op: llir.Mul, A: x, B: constExpr(1)}, x},
		{"1*x", &llir.Binop{Op: llir.Mul, A: constExpr(1), B: x}, x},
		{"x/1", &llir.Binop{Op: llir.Div, A: x, B: constExpr(1)}, x},
		{"x*0", &llir.Binop{Op: llir.Mul, A: x, B: constExpr(0)}, constExpr(0)},
		{"0*x", &llir.Binop{Op: llir.Mul, A: constExpr(0), B: x}, constExpr(0)},
		{"0/x", &llir.Binop{Op: llir.Div, A: constExpr(0), B: x}, constExpr(0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SimplifyExpr(c.e, Options{})
			if !llir.Equal(got, c.want) {
				t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(c.want))
			}
		})
	}
}

func TestSimplifyArg1Arg2(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	y := llir.Get{Array: symbol.New("y")}
	if got := SimplifyExpr(&llir.Binop{Op: llir.Arg1, A: x, B: y}, Options{}); !llir.Equal(got, x) {
		t.Errorf("Arg1: got %s, want %s", llir.ToString(got), llir.ToString(x))
	}
	if got := SimplifyExpr(&llir.Binop{Op: llir.Arg2, A: x, B: y}, Options{}); !llir.Equal(got, y) {
		t.Errorf("Arg2: got %s, want %s", llir.ToString(got), llir.ToString(y))
	}
}

func TestSimplifyUnopIdentityAndConstant(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	if got := SimplifyExpr(&llir.Unop{Op: llir.Identity, A: x}, Options{}); !llir.Equal(got, x) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(x))
	}
	got := SimplifyExpr(&llir.Unop{Op: llir.Neg, A: constExpr(4)}, Options{})
	if !llir.Equal(got, constExpr(-4)) {
		t.Errorf("got %s, want -4", llir.ToString(got))
	}
}

func TestSimplifyEmbedIndexFixed(t *testing.T) {
	got := SimplifyExpr(llir.EmbedIndex{Index: symbol.FixedIdx(7)}, Options{})
	if !llir.Equal(got, constExpr(7)) {
		t.Errorf("got %s, want 7", llir.ToString(got))
	}
}

func TestSimplifyReassociatesConstants(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	// (x + 2) + 3 -> x + 5
	e := &llir.Binop{Op: llir.Add, A: &llir.Binop{Op: llir.Add, A: x, B: constExpr(2)}, B: constExpr(3)}
	got := SimplifyExpr(e, Options{})
	want := &llir.Binop{Op: llir.Add, A: x, B: constExpr(5)}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyReassociatesSub(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	// (x - 2) - 3 -> x - 5
	e := &llir.Binop{Op: llir.Sub, A: &llir.Binop{Op: llir.Sub, A: x, B: constExpr(2)}, B: constExpr(3)}
	got := SimplifyExpr(e, Options{})
	want := &llir.Binop{Op: llir.Sub, A: x, B: constExpr(5)}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyReassociatesDiv(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	// (x / 2) / 3 -> x / 6
	e := &llir.Binop{Op: llir.Div, A: &llir.Binop{Op: llir.Div, A: x, B: constExpr(2)}, B: constExpr(3)}
	got := SimplifyExpr(e, Options{})
	want := &llir.Binop{Op: llir.Div, A: x, B: constExpr(6)}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyUnrollsIntegerPower(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	e := &llir.Binop{Op: llir.ToPowOf, A: x, B: constExpr(3)}
	got := SimplifyExpr(e, Options{UnrollPower: true})
	want := &llir.Binop{Op: llir.Mul, A: &llir.Binop{Op: llir.Mul, A: x, B: x}, B: x}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyLeavesPowerAloneWithoutFlag(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	e := &llir.Binop{Op: llir.ToPowOf, A: x, B: constExpr(3)}
	got := SimplifyExpr(e, Options{UnrollPower: false})
	if _, ok := got.(*llir.Binop); !ok {
		t.Fatalf("got %T, want unchanged *llir.Binop", got)
	}
}

func TestSimplifyNegativePowerUsesReciprocal(t *testing.T) {
	x := llir.Get{Array: symbol.New("x")}
	e := &llir.Binop{Op: llir.ToPowOf, A: x, B: constExpr(-2)}
	got := SimplifyExpr(e, Options{UnrollPower: true})
	want := &llir.Unop{Op: llir.Recip, A: &llir.Binop{Op: llir.Mul, A: x, B: x}}
	if !llir.Equal(got, want) {
		t.Errorf("got %s, want %s", llir.ToString(got), llir.ToString(want))
	}
}

func TestSimplifyLocalScopeSingleAssignment(t *testing.T) {
	id := symbol.New("v")
	ls := &llir.LocalScope{
		Scope: id,
		Prec:  symbol.Single,
		Body:  &llir.SetLocal{Scope: id, Value: constExpr(9)},
	}
	got := Simplify(&llir.SetLocal{Scope: symbol.New("out"), Value: ls}, Options{})
	out := got.(*llir.SetLocal)
	if !llir.Equal(out.Value, constExpr(9)) {
		t.Errorf("got %s, want 9", llir.ToString(out.Value))
	}
}

func TestSimplifyLocalScopeTwoAssignmentsSubstitutes(t *testing.T) {
	id := symbol.New("acc")
	x := llir.Get{Array: symbol.New("x")}
	ls := &llir.LocalScope{
		Scope: id,
		Prec:  symbol.Single,
		Body: &llir.Seq{Stmts: []llir.Stmt{
			&llir.SetLocal{Scope: id, Value: constExpr(0)},
			&llir.SetLocal{Scope: id, Value: &llir.Binop{Op: llir.Add, A: llir.GetLocal{Scope: id}, B: x}},
		}},
	}
	got := SimplifyExpr(ls, Options{})
	want := &llir.Binop{Op: llir.Add, A: constExpr(0), B: x}
	// after constant folding 0+x collapses further to x
	want2 := x
	if !llir.Equal(got, want) && !llir.Equal(got, want2) {
		t.Errorf("got %s, want either %s or %s", llir.ToString(got), llir.ToString(want), llir.ToString(want2))
	}
}

func TestSimplifySeqDropsNoopAndFlattens(t *testing.T) {
	a := symbol.New("a")
	s := &llir.Seq{Stmts: []llir.Stmt{
		llir.Noop{},
		&llir.Seq{Stmts: []llir.Stmt{&llir.Set{Array: a, Value: constExpr(1)}}},
		llir.Noop{},
	}}
	got := Simplify(s, Options{})
	if _, ok := got.(*llir.Set); !ok {
		t.Fatalf("got %T, want the lone *llir.Set after flattening", got)
	}
}
