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

import "github.com/lukstafi/ocannl/proj"

// BuildLoopNest wraps body in nested For loops over p's product
// iterators, outermost first (spec section 4.2: "Lowering... builds,
// for each accumulation, nested For loops over the product iterators
// of the projections, with the innermost body a single Set"). A
// degenerate operation instance whose projections carry no product
// iterators at all (every axis resolved to Fixed_idx 0) returns body
// unwrapped.
//
// traceIt is applied to every loop in the nest; callers that want
// per-axis control should build the nest by hand instead.
func BuildLoopNest(p *proj.Projections, traceIt bool, body Stmt) Stmt {
	out := body
	for i := len(p.ProductIters) - 1; i >= 0; i-- {
		out = &For{
			Index:   p.ProductIters[i],
			From:    0,
			To:      p.ProductDims[i].Size(),
			Body:    out,
			TraceIt: traceIt,
		}
	}
	return out
}
