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

// TestScenarioPointwiseBroadcast is scenario S1: a pointwise add
// between a [ ]|[ ]->[3] operand and a [2]|[ ]->[3] operand should
// broadcast the batch row up to 2.
func TestScenarioPointwiseBroadcast(t *testing.T) {
	left := New("left", NewClosedRow(ID{}), NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(3)))
	right := New("right", NewClosedRow(ID{}, ConcreteDim(2)), NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(3)))
	result := New("result", NewOpenRow(ID{}), NewOpenRow(ID{}), NewOpenRow(ID{}))

	env := NewEnv()
	cs, err := Propagate(result, BroadcastLogic{Kind: CPointwise, Left: left, Right: right})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.FinishInference(cs); err != nil {
		t.Fatal(err)
	}
	env.Close(result)

	if !result.Resolved() {
		t.Fatalf("result not fully resolved: %s", result)
	}
	if len(result.Batch.Dims) != 1 || result.Batch.Dims[0].Size() != 2 {
		t.Errorf("batch row: %s, want [2]", result.Batch)
	}
	if len(result.Input.Dims) != 0 {
		t.Errorf("input row: %s, want []", result.Input)
	}
	if len(result.Output.Dims) != 1 || result.Output.Dims[0].Size() != 3 {
		t.Errorf("output row: %s, want [3]", result.Output)
	}
}

// TestScenarioMatmulCompose is scenario S2: composing a "3->2" shape
// with a "4->3" shape via inner-product contraction yields "4->2".
func TestScenarioMatmulCompose(t *testing.T) {
	left := New("left", NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(3)), NewClosedRow(ID{}, ConcreteDim(2)))
	right := New("right", NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(4)), NewClosedRow(ID{}, ConcreteDim(3)))
	result := New("result", NewOpenRow(ID{}), NewOpenRow(ID{}), NewOpenRow(ID{}))

	env := NewEnv()
	cs, err := Propagate(result, BroadcastLogic{Kind: CCompose, Left: left, Right: right})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.FinishInference(cs); err != nil {
		t.Fatal(err)
	}
	env.Close(result)

	if !result.Resolved() {
		t.Fatalf("result not fully resolved: %s", result)
	}
	if len(result.Input.Dims) != 1 || result.Input.Dims[0].Size() != 4 {
		t.Errorf("input row: %s, want [4]", result.Input)
	}
	if len(result.Output.Dims) != 1 || result.Output.Dims[0].Size() != 2 {
		t.Errorf("output row: %s, want [2]", result.Output)
	}
}

// TestScenarioMatmulComposeContractionMismatch checks that composing
// two operands whose hidden dimensions disagree is rejected.
func TestScenarioMatmulComposeContractionMismatch(t *testing.T) {
	left := New("left", NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(3)), NewClosedRow(ID{}, ConcreteDim(2)))
	right := New("right", NewClosedRow(ID{}), NewClosedRow(ID{}, ConcreteDim(4)), NewClosedRow(ID{}, ConcreteDim(5)))
	result := New("result", NewOpenRow(ID{}), NewOpenRow(ID{}), NewOpenRow(ID{}))

	env := NewEnv()
	cs, err := Propagate(result, BroadcastLogic{Kind: CCompose, Left: left, Right: right})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.FinishInference(cs); err == nil {
		t.Error("expected hidden-dimension mismatch error, got nil")
	}
}

// TestScenarioTotalElemsResolution is scenario S6: a closed row
// [2, v, 5] under TotalElems 30 solves v to 3; TotalElems 31 is
// unsatisfiable.
func TestScenarioTotalElemsResolution(t *testing.T) {
	v := DimVar("v")
	row := NewClosedRow(ID{}, ConcreteDim(2), v, ConcreteDim(5))

	env := NewEnv()
	if err := env.FinishInference([]Constraint{RowConstr{Row: row, N: 30}}); err != nil {
		t.Fatal(err)
	}
	got := env.substDim(v)
	if got.IsVar() || got.Size() != 3 {
		t.Fatalf("v resolved to %s, want 3", got)
	}

	v2 := DimVar("v2")
	row2 := NewClosedRow(ID{}, ConcreteDim(2), v2, ConcreteDim(5))
	env2 := NewEnv()
	if err := env2.FinishInference([]Constraint{RowConstr{Row: row2, N: 31}}); err == nil {
		t.Error("expected TotalElems 31 to be unsatisfiable, got nil error")
	}
}
