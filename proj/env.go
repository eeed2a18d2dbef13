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

// Package proj derives, for one operation instance, the iteration
// space and per-operand index expressions from the operation's
// already-resolved shapes: a union-find over projection-class ids
// decides which axes across operands share one loop iterator.
package proj

import (
	"fmt"

	"github.com/lukstafi/ocannl/symbol"
)

// Equation is one fact fed to SolveProjEquations: either two
// projection classes denote the same iteration axis (ProjEq), or a
// class must be iterated rather than defaulted to non-product even
// though its only known size happens to be 1 (Iterated).
type Equation interface{ isEquation() }

// ProjEq states that projection classes A and B must share one loop
// iterator.
type ProjEq struct{ A, B int }

func (ProjEq) isEquation() {}

// Iterated forces class P to be treated as a product axis.
type Iterated struct{ P int }

func (Iterated) isEquation() {}

type classInfo struct {
	sizeKnown bool
	size      int
	iter      symbol.Symbol
	hasIter   bool
	forced    bool

	// fixedIdx, if non-nil, overrides the class to always resolve to
	// this compile-time-fixed position instead of ever minting an
	// iterator -- used for an axis that package shape's TBatchSlice
	// logic slices at a single static offset rather than iterating.
	fixedIdx *int
}

// ProjEnv is the projection-inference environment (spec section 3):
// a union-find over projection-class ids, the representative's
// assigned iterator (once minted), and whether the class is a
// "non-product" fixed index rather than a genuine loop axis.
//
// Grounded on the disjoint-set structure in
// katalvlaran-lvlath/prim_kruskal's Kruskal implementation (map-based
// parent/rank, iterative find with path compression, union by rank),
// adapted from graph vertex ids to projection-class ids.
type ProjEnv struct {
	parent map[int]int
	rank   map[int]int
	info   map[int]*classInfo
}

// NewProjEnv allocates a fresh, empty projection environment.
func NewProjEnv() *ProjEnv {
	return &ProjEnv{
		parent: make(map[int]int),
		rank:   make(map[int]int),
		info:   make(map[int]*classInfo),
	}
}

// NewProjID mints a fresh, process-unique projection-class id.
func NewProjID() int {
	return int(symbol.New("proj").ID())
}

func (e *ProjEnv) find(p int) int {
	if _, ok := e.parent[p]; !ok {
		e.parent[p] = p
		return p
	}
	for e.parent[p] != p {
		e.parent[p] = e.parent[e.parent[p]] // path halving
		p = e.parent[p]
	}
	return p
}

func (e *ProjEnv) infoFor(p int) *classInfo {
	r := e.find(p)
	ci, ok := e.info[r]
	if !ok {
		ci = &classInfo{}
		e.info[r] = ci
	}
	return ci
}

// union merges the equivalence classes of a and b, union by rank,
// carrying forward whichever accumulated facts (known size, assigned
// iterator, forced-product) either side had recorded.
func (e *ProjEnv) union(a, b int) int {
	ra, rb := e.find(a), e.find(b)
	if ra == rb {
		return ra
	}
	if e.rank[ra] < e.rank[rb] {
		ra, rb = rb, ra
	}
	e.parent[rb] = ra
	if e.rank[ra] == e.rank[rb] {
		e.rank[ra]++
	}
	if bi, ok := e.info[rb]; ok {
		ai := e.infoFor(ra)
		if bi.sizeKnown {
			ai.sizeKnown, ai.size = true, bi.size
		}
		if bi.hasIter {
			ai.iter, ai.hasIter = bi.iter, true
		}
		ai.forced = ai.forced || bi.forced
		if bi.fixedIdx != nil {
			ai.fixedIdx = bi.fixedIdx
		}
		delete(e.info, rb)
	}
	return ra
}

// Bind records the concrete dim size belonging to projection class p.
// A class bound to two different sizes is a shape inconsistency that
// projection inference could not have caught earlier (e.g. a
// contraction across two operands whose hidden dimensions disagree).
// p == 0 (untagged) is a no-op.
func (e *ProjEnv) Bind(p, size int) error {
	if p == 0 {
		return nil
	}
	ci := e.infoFor(p)
	if ci.sizeKnown && ci.size != size {
		return fmt.Errorf("proj: class %d bound to conflicting sizes %d and %d", e.find(p), ci.size, size)
	}
	ci.sizeKnown, ci.size = true, size
	return nil
}

// SolveProjEquations processes a batch of equations: ProjEq unions
// the two classes (after verifying, via Bind's bookkeeping, that they
// do not carry conflicting sizes -- Bind must be called for every
// dim before this runs); Iterated marks its class as a genuine
// product axis even if its bound size is 1.
func (e *ProjEnv) SolveProjEquations(eqs []Equation) error {
	for _, eq := range eqs {
		switch k := eq.(type) {
		case ProjEq:
			if k.A == 0 || k.B == 0 {
				continue
			}
			ai, bi := e.infoFor(k.A), e.infoFor(k.B)
			if ai.sizeKnown && bi.sizeKnown && ai.size != bi.size {
				return fmt.Errorf("proj: classes %d and %d disagree on size (%d vs %d)", k.A, k.B, ai.size, bi.size)
			}
			e.union(k.A, k.B)
		case Iterated:
			if k.P == 0 {
				continue
			}
			e.infoFor(k.P).forced = true
		}
	}
	return nil
}

// BindFixed overrides class p to always resolve to the given
// compile-time position rather than ever being iterated, regardless
// of its bound size -- the batch-slice axis a TBatchSlice operation
// indexes at one static offset.
func (e *ProjEnv) BindFixed(p, value int) {
	if p == 0 {
		return
	}
	v := value
	e.infoFor(p).fixedIdx = &v
}

// GetProjIndex returns the axis index to use for a concrete dim size
// carrying projection id p: a class's BindFixed override if one was
// set, Fixed_idx 0 for the degenerate (size-1, non-forced) case or an
// untagged dim, otherwise the representative class's iterator (minted
// on first use).
func (e *ProjEnv) GetProjIndex(p, size int) symbol.AxisIndex {
	if p == 0 {
		return symbol.FixedIdx(0)
	}
	ci := e.infoFor(p)
	if ci.fixedIdx != nil {
		return symbol.FixedIdx(*ci.fixedIdx)
	}
	if size == 1 && !ci.forced {
		return symbol.FixedIdx(0)
	}
	if !ci.hasIter {
		ci.iter = symbol.New("i")
		ci.hasIter = true
	}
	return symbol.IterIdx(ci.iter)
}
