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

	"github.com/lukstafi/ocannl/proj"
	"github.com/lukstafi/ocannl/shape"
	"github.com/lukstafi/ocannl/symbol"
)

func TestBuildLoopNestWrapsOutermostFirst(t *testing.T) {
	iOuter, iInner := symbol.New("i_outer"), symbol.New("i_inner")
	p := &proj.Projections{
		ProductDims:  []shape.Dim{shape.ConcreteDim(2), shape.ConcreteDim(3)},
		ProductIters: []symbol.Symbol{iOuter, iInner},
	}
	body := Noop{}
	nest := BuildLoopNest(p, true, body)

	outer, ok := nest.(*For)
	if !ok {
		t.Fatalf("got %T, want *For", nest)
	}
	if !outer.Index.Equal(iOuter) || outer.From != 0 || outer.To != 2 {
		t.Errorf("outer loop = %+v, want index %s from 0 to 2", outer, iOuter)
	}
	inner, ok := outer.Body.(*For)
	if !ok {
		t.Fatalf("outer body is %T, want *For", outer.Body)
	}
	if !inner.Index.Equal(iInner) || inner.From != 0 || inner.To != 3 {
		t.Errorf("inner loop = %+v, want index %s from 0 to 3", inner, iInner)
	}
	if !Equal(inner.Body, body) {
		t.Errorf("innermost body = %v, want the original body", inner.Body)
	}
}

func TestBuildLoopNestNoProductIteratorsReturnsBodyUnwrapped(t *testing.T) {
	p := &proj.Projections{}
	body := Noop{}
	nest := BuildLoopNest(p, true, body)
	if !Equal(nest, body) {
		t.Errorf("got %v, want body unwrapped", nest)
	}
}
