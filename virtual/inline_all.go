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

package virtual

import (
	"fmt"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

// maxInlinePasses bounds InlineAll's fixed-point loop against a
// cyclic virtual dependency (which process_computation's own rules
// cannot detect, since eligibility is decided per array in
// isolation).
const maxInlinePasses = 32

// PrecisionOf resolves the element precision to stamp on the
// LocalScope wrapping an inlined array's computation.
type PrecisionOf func(symbol.Symbol) symbol.Precision

// InlineAll rewrites program, replacing every Get of a virtual array
// with Inline's substituted computation, repeating the whole-tree
// rewrite until no such Get remains. A single bottom-up pass is not
// enough on its own: an inlined fragment may itself read another
// virtual array nested inside it, and llir.Rewrite never revisits a
// subtree it has just synthesized (the same reason package simplify
// iterates to a fixed point instead of relying on one pass).
func InlineAll(store *trace.Store, program llir.Stmt, precOf PrecisionOf) (llir.Stmt, error) {
	cur := program
	for i := 0; i < maxInlinePasses; i++ {
		next, changed, err := inlinePass(store, cur, precOf)
		if err != nil {
			return nil, err
		}
		if !changed {
			return next, nil
		}
		cur = next
	}
	return nil, fmt.Errorf("virtual: inlining did not converge after %d passes (cyclic virtual dependency?)", maxInlinePasses)
}

func inlinePass(store *trace.Store, program llir.Stmt, precOf PrecisionOf) (llir.Stmt, bool, error) {
	in := &inliner{store: store, precOf: precOf}
	out := llir.RewriteStmt(in, program)
	if in.err != nil {
		return nil, false, in.err
	}
	return out, in.changed, nil
}

// inliner is a Rewriter that replaces every Get of a virtual array
// with its inlined LocalScope. Unlike package simplify's stateless
// rewriter, inliner carries mutable state (changed, err) across the
// whole traversal, so Walk always returns the same pointer rather
// than a fresh value.
type inliner struct {
	store   *trace.Store
	precOf  PrecisionOf
	changed bool
	err     error
}

func (in *inliner) Walk(llir.Node) llir.Rewriter { return in }

func (in *inliner) Rewrite(n llir.Node) llir.Node {
	g, ok := n.(llir.Get)
	if !ok || in.err != nil {
		return n
	}
	if !IsVirtual(in.store, g.Array) {
		return n
	}
	prec := symbol.Single
	if in.precOf != nil {
		prec = in.precOf(g.Array)
	}
	scope, err := Inline(in.store, g.Array, g.Idcs, prec)
	if err != nil {
		in.err = err
		return n
	}
	in.changed = true
	return scope
}
