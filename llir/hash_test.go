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

package llir

import (
	"testing"

	"github.com/lukstafi/ocannl/symbol"
)

func TestHashEqualForStructurallyEqualTrees(t *testing.T) {
	arr := symbol.New("a")
	build := func() Node {
		return &Binop{Op: Add, A: Const{Value: 1}, B: Get{Array: arr, Idcs: []symbol.AxisIndex{symbol.FixedIdx(0)}}}
	}
	if Hash(build()) != Hash(build()) {
		t.Error("structurally identical trees hashed differently")
	}
}

func TestHashDiffersForDifferentConstants(t *testing.T) {
	a := Const{Value: 1}
	b := Const{Value: 2}
	if Hash(a) == Hash(b) {
		t.Error("Const{1} and Const{2} hashed the same")
	}
}

func TestHashDiffersForDifferentOps(t *testing.T) {
	a := &Binop{Op: Add, A: Const{Value: 1}, B: Const{Value: 2}}
	b := &Binop{Op: Sub, A: Const{Value: 1}, B: Const{Value: 2}}
	if Hash(a) == Hash(b) {
		t.Error("Add and Sub binops hashed the same")
	}
}

func TestHashDiffersForDifferentArrays(t *testing.T) {
	x, y := symbol.New("x"), symbol.New("y")
	a := Get{Array: x, Idcs: []symbol.AxisIndex{symbol.FixedIdx(0)}}
	b := Get{Array: y, Idcs: []symbol.AxisIndex{symbol.FixedIdx(0)}}
	if Hash(a) == Hash(b) {
		t.Error("Get nodes over different arrays hashed the same")
	}
}

func TestHashStagedCallbackIgnoresRunIdentity(t *testing.T) {
	a := &StagedCallback{Label: "print", Run: func() {}}
	b := &StagedCallback{Label: "print", Run: func() {}}
	if Hash(a) != Hash(b) {
		t.Error("StagedCallback hash should depend only on Label")
	}
}
