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
	"fmt"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
)

// Store is the traced-store map from array id to traced record (spec
// section 6, "Interfaces produced: a traced-store map from array id
// to traced record").
type Store struct {
	Records map[symbol.Symbol]*Record

	// loopOwner maps a For loop's iterator symbol to the single array
	// it is allowed to assign (spec section 4.3: "map the iterator
	// symbol in each index back to a in a reverse map -- one array
	// per loop symbol, enforced by assertion").
	loopOwner map[symbol.Symbol]symbol.Symbol
}

// NewStore allocates an empty traced store.
func NewStore() *Store {
	return &Store{
		Records:   make(map[symbol.Symbol]*Record),
		loopOwner: make(map[symbol.Symbol]symbol.Symbol),
	}
}

// RecordFor returns the record for array a, creating it on first
// mention with DeviceOnly set and every other flag at its zero value.
func (st *Store) RecordFor(a symbol.Symbol) *Record {
	r, ok := st.Records[a]
	if !ok {
		r = newRecord(a)
		st.Records[a] = r
	}
	return r
}

type walker struct {
	store         *Store
	maxTracingDim int
}

// Visit walks fragment once, populating st's records (spec section
// 4.3, "visit_llc"). maxTracingDim bounds how many iterations of a
// trace_it=true For loop are unrolled.
func (st *Store) Visit(fragment llir.Stmt, maxTracingDim int) error {
	w := &walker{store: st, maxTracingDim: maxTracingDim}
	return w.stmt(fragment, map[symbol.Symbol]int{})
}

func resolveIdx(env map[symbol.Symbol]int, idx symbol.AxisIndex) (int, error) {
	if idx.IsFixed() {
		return idx.Fixed(), nil
	}
	v, ok := env[idx.Iterator()]
	if !ok {
		return 0, fmt.Errorf("trace: escaping iterator %s not bound by an enclosing loop", idx.Iterator())
	}
	return v, nil
}

func resolveIdcs(env map[symbol.Symbol]int, idcs []symbol.AxisIndex) ([]int, error) {
	out := make([]int, len(idcs))
	for i, idx := range idcs {
		v, err := resolveIdx(env, idx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (w *walker) stmt(s llir.Stmt, env map[symbol.Symbol]int) error {
	switch v := s.(type) {
	case nil, llir.Noop:
		return nil
	case *llir.Seq:
		for _, st := range v.Stmts {
			if err := w.stmt(st, env); err != nil {
				return err
			}
		}
		return nil
	case *llir.For:
		return w.forLoop(v, env)
	case llir.ZeroOut:
		return w.zeroOut(v)
	case *llir.Set:
		return w.set(v, env)
	case *llir.SetLocal:
		return w.expr(v.Value, env)
	case llir.Comment:
		return nil
	case *llir.StagedCallback:
		return nil
	default:
		return fmt.Errorf("trace: unhandled statement type %T", s)
	}
}

func (w *walker) forLoop(f *llir.For, env map[symbol.Symbol]int) error {
	child := make(map[symbol.Symbol]int, len(env)+1)
	for k, v := range env {
		child[k] = v
	}
	if !f.TraceIt {
		child[f.Index] = f.From
		return w.stmt(f.Body, child)
	}
	for i, v := 0, f.From; v < f.To && i < w.maxTracingDim; i, v = i+1, v+1 {
		child[f.Index] = v
		if err := w.stmt(f.Body, child); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) zeroOut(z llir.ZeroOut) error {
	r := w.store.RecordFor(z.Array)
	if len(r.Assignments) == 0 && len(r.Visits) == 0 {
		r.ZeroInitialized = true
	}
	r.ZeroedOut = true
	return nil
}

func (w *walker) set(s *llir.Set, env map[symbol.Symbol]int) error {
	if err := w.expr(s.Value, env); err != nil {
		return err
	}
	idcs, err := resolveIdcs(env, s.Idcs)
	if err != nil {
		return err
	}
	r := w.store.RecordFor(s.Array)
	r.Assignments[idxKey(idcs)] = idcs

	for _, idx := range s.Idcs {
		if idx.IsFixed() {
			continue
		}
		it := idx.Iterator()
		if owner, ok := w.store.loopOwner[it]; ok && !owner.Equal(s.Array) {
			return fmt.Errorf("trace: loop iterator %s already assigns array %s, rejected second writer %s (multi-writer loop relaxation is future work)", it, owner, s.Array)
		}
		w.store.loopOwner[it] = s.Array
	}
	return nil
}

func (w *walker) expr(e llir.Expr, env map[symbol.Symbol]int) error {
	switch v := e.(type) {
	case nil, llir.Const, llir.GetLocal, llir.GetGlobal, llir.EmbedIndex:
		return nil
	case llir.Get:
		return w.get(v, env)
	case *llir.Binop:
		if err := w.expr(v.A, env); err != nil {
			return err
		}
		return w.expr(v.B, env)
	case *llir.Unop:
		return w.expr(v.A, env)
	case *llir.LocalScope:
		return w.stmt(v.Body, env)
	default:
		return fmt.Errorf("trace: unhandled expression type %T", e)
	}
}

func (w *walker) get(g llir.Get, env map[symbol.Symbol]int) error {
	idcs, err := resolveIdcs(env, g.Idcs)
	if err != nil {
		return err
	}
	r := w.store.RecordFor(g.Array)
	key := idxKey(idcs)

	_, alreadyAssigned := r.Assignments[key]
	recurrent := !alreadyAssigned && !r.ZeroedOut

	cur := r.Visits[key]
	if cur.Recurrent || recurrent {
		r.Visits[key] = Visits{Recurrent: true}
	} else {
		r.Visits[key] = Visits{Count: cur.Count + 1}
	}
	return nil
}

// Finish applies the post-walk flagging rules (spec section 4.3)
// across every record in the store: arrays whose busiest access
// exceeds maxVisits, or that have any recurrent access, are forced
// non-virtual; arrays never written (and never zeroed) become
// read_only.
func (st *Store) Finish(maxVisits int) error {
	for _, r := range st.Records {
		if len(r.Assignments) == 0 && !r.ZeroedOut {
			r.ReadOnly = true
		}
		if r.MaxVisitCount() > maxVisits {
			if err := forceNonVirtual(r, ProvenanceMaxVisits); err != nil {
				return err
			}
		}
		if r.AnyRecurrent() {
			r.ReadBeforeWrite = true
			r.DeviceOnly = false
			if err := forceNonVirtual(r, ProvenanceRecurrent); err != nil {
				return err
			}
		}
	}
	return nil
}

func forceNonVirtual(r *Record, reason Provenance) error {
	if r.NonVirtual {
		return nil
	}
	if r.DeclaredVirtual {
		return fmt.Errorf("trace: array %s was declared virtual but tracing forces it non-virtual (%s)", r.Array, reason)
	}
	r.NonVirtual = true
	r.NonVirtualReason = reason
	return nil
}
