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

package proj

import "github.com/lukstafi/ocannl/shape"

// GetProjEquations walks a list of already-ground (variable-free)
// dim constraints -- the same DimEq/DimIneq facts the shape solver
// used, now carrying projection ids -- and derives the ProjEq/Iterated
// facts implied by them: two concrete, non-degenerate dims related by
// an equality or a ground inequality must iterate together.
func GetProjEquations(cs []shape.Constraint) []Equation {
	var eqs []Equation
	add := func(a, b shape.Dim) {
		if a.ProjID() == 0 || b.ProjID() == 0 {
			return
		}
		if a.Size() == 1 || b.Size() == 1 {
			// the degenerate side is fixed, not iterated; it never
			// shares a class with the other side.
			return
		}
		eqs = append(eqs, ProjEq{A: a.ProjID(), B: b.ProjID()})
	}
	for _, c := range cs {
		switch k := c.(type) {
		case shape.DimEq:
			add(k.A, k.B)
		case shape.DimIneq:
			add(k.Cur, k.Subr)
		}
	}
	return eqs
}
