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

package trace

import (
	"testing"

	"github.com/lukstafi/ocannl/symbol"
)

func TestIdxKey(t *testing.T) {
	cases := []struct {
		idcs []int
		want string
	}{
		{nil, ""},
		{[]int{3}, "3"},
		{[]int{1, 2, 3}, "1,2,3"},
	}
	for _, c := range cases {
		if got := idxKey(c.idcs); got != c.want {
			t.Errorf("idxKey(%v) = %q, want %q", c.idcs, got, c.want)
		}
	}
}

func TestMaxVisitCountIgnoresRecurrentEntries(t *testing.T) {
	r := newRecord(symbol.New("a"))
	r.Visits["0"] = Visits{Count: 9}
	r.Visits["1"] = Visits{Recurrent: true}
	if got := r.MaxVisitCount(); got != 9 {
		t.Errorf("MaxVisitCount() = %d, want 9", got)
	}
}

func TestAddComputationAppendsInOrder(t *testing.T) {
	r := newRecord(symbol.New("a"))
	r.AddComputation(Computation{Label: "first"})
	r.AddComputation(Computation{Label: "second"})
	if len(r.Computations) != 2 || r.Computations[0].Label != "first" || r.Computations[1].Label != "second" {
		t.Errorf("got %+v, want [first, second] in order", r.Computations)
	}
}
