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

// cleaner removes the Set/ZeroOut statements left behind for arrays
// that turned out virtual once every read site has been inlined (spec
// section 4.4 "cleanup_virtual_llc"), and checks two invariants along
// the way: every remaining index iterator is bound by an enclosing
// loop, and no Get of a still-virtual array survived inlining.
type cleaner struct {
	store *trace.Store
}

// Cleanup runs cleanup_virtual_llc over s. It must run only after
// every Get of a virtual array has already been replaced via Inline;
// a surviving Get of a virtual array is treated as a bug in the
// caller's inlining pass, not a recoverable condition, and is
// reported as an error rather than silently left in place.
func Cleanup(store *trace.Store, s llir.Stmt) (llir.Stmt, error) {
	c := &cleaner{store: store}
	out, err := c.stmt(s, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cleaner) stmt(s llir.Stmt, scope []symbol.Symbol) (llir.Stmt, error) {
	switch v := s.(type) {
	case nil:
		return nil, nil
	case llir.Noop:
		return v, nil
	case llir.Comment:
		return v, nil
	case *llir.Seq:
		var out []llir.Stmt
		for _, st := range v.Stmts {
			r, err := c.stmt(st, scope)
			if err != nil {
				return nil, err
			}
			if _, isNoop := r.(llir.Noop); isNoop {
				continue
			}
			out = append(out, r)
		}
		if len(out) == 0 {
			return llir.Noop{}, nil
		}
		return &llir.Seq{Stmts: out}, nil
	case *llir.For:
		child := append(append([]symbol.Symbol{}, scope...), v.Index)
		body, err := c.stmt(v.Body, child)
		if err != nil {
			return nil, err
		}
		return &llir.For{Index: v.Index, From: v.From, To: v.To, Body: body, TraceIt: v.TraceIt}, nil
	case llir.ZeroOut:
		if IsVirtual(c.store, v.Array) {
			return llir.Noop{}, nil
		}
		return v, nil
	case *llir.Set:
		if err := c.checkIdcs(v.Idcs, scope); err != nil {
			return nil, err
		}
		if _, err := c.expr(v.Value, scope); err != nil {
			return nil, err
		}
		if IsVirtual(c.store, v.Array) {
			return llir.Noop{}, nil
		}
		return v, nil
	case *llir.SetLocal:
		val, err := c.expr(v.Value, scope)
		if err != nil {
			return nil, err
		}
		return &llir.SetLocal{Scope: v.Scope, Value: val}, nil
	case *llir.StagedCallback:
		return v, nil
	default:
		return nil, fmt.Errorf("virtual: cleanup: unhandled statement type %T", s)
	}
}

func (c *cleaner) checkIdcs(idcs []symbol.AxisIndex, scope []symbol.Symbol) error {
	for _, idx := range idcs {
		if idx.IsFixed() {
			continue
		}
		if !inScope(idx.Iterator(), scope) {
			return fmt.Errorf("virtual: cleanup: index iterator %s escaped its enclosing loop", idx.Iterator())
		}
	}
	return nil
}

func (c *cleaner) expr(e llir.Expr, scope []symbol.Symbol) (llir.Expr, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case llir.Const:
		return v, nil
	case llir.GetLocal:
		return v, nil
	case llir.Get:
		if IsVirtual(c.store, v.Array) {
			return nil, fmt.Errorf("virtual: cleanup: found Get of still-virtual array %s; every such read should have been inlined already", v.Array)
		}
		if err := c.checkIdcs(v.Idcs, scope); err != nil {
			return nil, err
		}
		return v, nil
	case llir.GetGlobal:
		if v.Idcs != nil {
			if err := c.checkIdcs(v.Idcs, scope); err != nil {
				return nil, err
			}
		}
		return v, nil
	case llir.EmbedIndex:
		if err := c.checkIdcs([]symbol.AxisIndex{v.Index}, scope); err != nil {
			return nil, err
		}
		return v, nil
	case *llir.Binop:
		a, err := c.expr(v.A, scope)
		if err != nil {
			return nil, err
		}
		b, err := c.expr(v.B, scope)
		if err != nil {
			return nil, err
		}
		return &llir.Binop{Op: v.Op, A: a, B: b}, nil
	case *llir.Unop:
		a, err := c.expr(v.A, scope)
		if err != nil {
			return nil, err
		}
		return &llir.Unop{Op: v.Op, A: a}, nil
	case *llir.LocalScope:
		// LocalScope bodies are left structurally intact -- their Set
		// and Get of the local id are not re-targeted -- but a body
		// can still reference other arrays that turned out virtual,
		// so it is still walked for cleanup, not skipped.
		body, err := c.stmt(v.Body, scope)
		if err != nil {
			return nil, err
		}
		return &llir.LocalScope{Scope: v.Scope, Prec: v.Prec, Body: body, OrigIndices: v.OrigIndices}, nil
	default:
		return nil, fmt.Errorf("virtual: cleanup: unhandled expression type %T", e)
	}
}
