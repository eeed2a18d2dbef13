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

import "testing"

func TestApplyBinop(t *testing.T) {
	cases := []struct {
		op   BinOp
		a, b float64
		want float64
	}{
		{Add, 2, 3, 5},
		{Sub, 5, 3, 2},
		{Mul, 4, 2.5, 10},
		{Div, 9, 3, 3},
		{ToPowOf, 2, 10, 1024},
		{Max, 3, 9, 9},
		{Min, 3, 9, 3},
		{ReluGate, 1, 7, 7},
		{ReluGate, -1, 7, 0},
		{Cmplt, 1, 2, 1},
		{Cmplt, 2, 1, 0},
		{Arg1, 11, 22, 11},
		{Arg2, 11, 22, 22},
	}
	for _, c := range cases {
		if got := ApplyBinop(c.op, c.a, c.b); got != c.want {
			t.Errorf("ApplyBinop(%s, %v, %v) = %v, want %v", c.op, c.a, c.b, got, c.want)
		}
	}
}

func TestApplyUnop(t *testing.T) {
	cases := []struct {
		op   UnOp
		a    float64
		want float64
	}{
		{Identity, 3, 3},
		{Neg, 3, -3},
		{Recip, 4, 0.25},
		{Sqrt, 9, 3},
		{Relu, -5, 0},
		{Relu, 5, 5},
	}
	for _, c := range cases {
		if got := ApplyUnop(c.op, c.a); got != c.want {
			t.Errorf("ApplyUnop(%s, %v) = %v, want %v", c.op, c.a, got, c.want)
		}
	}
}
