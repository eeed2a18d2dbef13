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

import "testing"

func TestDimEqConcrete(t *testing.T) {
	cases := []struct {
		a, b    Dim
		wantErr bool
	}{
		{ConcreteDim(3), ConcreteDim(3), false},
		{ConcreteDim(3), ConcreteDim(4), true},
		{LabeledDim(3, "x"), LabeledDim(3, "x"), false},
		{LabeledDim(3, "x"), LabeledDim(3, "y"), true},
	}
	for _, c := range cases {
		env := NewEnv()
		err := env.FinishInference([]Constraint{DimEq{A: c.a, B: c.b}})
		if (err != nil) != c.wantErr {
			t.Errorf("DimEq(%s, %s): err=%v, wantErr=%v", c.a, c.b, err, c.wantErr)
		}
	}
}

func TestDimEqVariable(t *testing.T) {
	env := NewEnv()
	v := DimVar("n")
	if err := env.FinishInference([]Constraint{DimEq{A: v, B: ConcreteDim(7)}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 7 {
		t.Errorf("got %s, want concrete 7", got)
	}
}

func TestDimEqTwoVariables(t *testing.T) {
	env := NewEnv()
	a, b := DimVar("a"), DimVar("b")
	if err := env.FinishInference([]Constraint{
		DimEq{A: a, B: b},
		DimEq{A: a, B: ConcreteDim(5)},
	}); err != nil {
		t.Fatal(err)
	}
	gb := env.substDim(b)
	if gb.IsVar() || gb.Size() != 5 {
		t.Errorf("unified variable b resolved to %s, want 5", gb)
	}
}

func TestDimIneqBroadcast(t *testing.T) {
	cases := []struct {
		name    string
		cur     Dim
		subr    Dim
		wantErr bool
	}{
		{"equal", ConcreteDim(3), ConcreteDim(3), false},
		{"subr-one", ConcreteDim(3), ConcreteDim(1), false},
		{"mismatch", ConcreteDim(3), ConcreteDim(2), true},
	}
	for _, c := range cases {
		env := NewEnv()
		err := env.FinishInference([]Constraint{DimIneq{Cur: c.cur, Subr: c.subr}})
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err=%v, wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestDimIneqForcesOne(t *testing.T) {
	env := NewEnv()
	v := DimVar("m")
	if err := env.FinishInference([]Constraint{DimIneq{Cur: ConcreteDim(1), Subr: v}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 1 {
		t.Errorf("got %s, want concrete 1 (n=1 forces m=1)", got)
	}
}

func TestDimIneqForcesExact(t *testing.T) {
	env := NewEnv()
	v := DimVar("n")
	if err := env.FinishInference([]Constraint{DimIneq{Cur: v, Subr: ConcreteDim(4)}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 4 {
		t.Errorf("got %s, want concrete 4 (m!=1 forces n=m)", got)
	}
}

func TestRowEqClosedMismatch(t *testing.T) {
	a := NewClosedRow(ID{}, ConcreteDim(2), ConcreteDim(3))
	b := NewClosedRow(ID{}, ConcreteDim(2), ConcreteDim(4))
	env := NewEnv()
	if err := env.FinishInference([]Constraint{RowEq{A: a, B: b}}); err == nil {
		t.Error("expected axis size mismatch error, got nil")
	}
}

func TestRowEqOpenAbsorbsLeftover(t *testing.T) {
	open := NewOpenRow(ID{}, ConcreteDim(3))
	closed := NewClosedRow(ID{}, ConcreteDim(2), ConcreteDim(3))
	env := NewEnv()
	if err := env.FinishInference([]Constraint{RowEq{A: open, B: closed}}); err != nil {
		t.Fatal(err)
	}
	got := env.substRow(open)
	if !got.Closed() || len(got.Dims) != 2 || got.Dims[0].Size() != 2 || got.Dims[1].Size() != 3 {
		t.Errorf("got %s, want closed row [2,3]", got)
	}
}

func TestRowConstrTotalElems(t *testing.T) {
	v := DimVar("v")
	row := NewClosedRow(ID{}, ConcreteDim(2), v, ConcreteDim(5))
	env := NewEnv()
	if err := env.FinishInference([]Constraint{RowConstr{Row: row, N: 30}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 3 {
		t.Errorf("got %s, want concrete 3", got)
	}
}

func TestRowConstrTotalElemsConflict(t *testing.T) {
	v := DimVar("v")
	row := NewClosedRow(ID{}, ConcreteDim(2), v, ConcreteDim(5))
	env := NewEnv()
	if err := env.FinishInference([]Constraint{RowConstr{Row: row, N: 31}}); err == nil {
		t.Error("expected unsatisfiable TotalElems error, got nil")
	}
}

func TestTerminalDimClosesToOne(t *testing.T) {
	v := DimVar("v")
	env := NewEnv()
	if err := env.FinishInference([]Constraint{TerminalDim{D: v}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 1 {
		t.Errorf("got %s, want neutral concrete 1", got)
	}
}

func TestTerminalRowClosesToEmpty(t *testing.T) {
	r := NewOpenRow(ID{})
	env := NewEnv()
	if err := env.FinishInference([]Constraint{TerminalRow{R: r}}); err != nil {
		t.Fatal(err)
	}
	got := env.substRow(r)
	if !got.Closed() || len(got.Dims) != 0 {
		t.Errorf("got %s, want closed empty row", got)
	}
}
