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

// Package compile is the middle-end's public contract (spec section
// 4.7): a single Optimize entry that runs, in order, trace, virtualize,
// cleanup, simplify, and a Compile wrapper that additionally resolves
// final memory modes.
//
// Grounded on plan/pir/optimize.go's (*Trace).optimize, a fixed
// sequence of named pass calls over one mutable accumulator, adapted
// here to call across package boundaries (trace, virtual, simplify)
// rather than within one package.
package compile

import (
	"fmt"

	"github.com/lukstafi/ocannl/config"
	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/simplify"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
	"github.com/lukstafi/ocannl/virtual"
)

// Options bundles the compiler's tunable bounds (spec section 4.3's
// max_tracing_dim/max_visits, section 4.5's power-unrolling flag).
type Options struct {
	MaxTracingDim int
	MaxVisits     int
	UnrollPower   bool
	MaxUnroll     int
	// PrecisionOf resolves the element precision stamped on a
	// LocalScope synthesized while inlining a virtual array; nil
	// defaults every inlined scope to symbol.Single.
	PrecisionOf virtual.PrecisionOf
	// StrictNonLocal promotes a memmode.NonLocal placement from a
	// warning to an error (spec section 9, Open Question 2).
	StrictNonLocal bool
	// DeclaredVirtual lists arrays the surface layer has externally
	// forced virtual before this compilation unit runs (spec section
	// 4.3: "If it was externally declared virtual, raise an error" --
	// both tracing's own rules and virtualization's eligibility check
	// consult this flag on the record).
	DeclaredVirtual []symbol.Symbol
}

// DefaultOptions derives Options from config.DefaultFlags, the
// compiler's built-in bounds.
func DefaultOptions() Options {
	f := config.DefaultFlags()
	return Options{
		MaxTracingDim:  f.MaxTracingDim,
		MaxVisits:      f.MaxVisits,
		UnrollPower:    f.UnrollPower,
		MaxUnroll:      f.MaxUnroll,
		StrictNonLocal: f.StrictNonLocal,
	}
}

// Optimize runs the middle-end pipeline over program and returns the
// traced store alongside the optimized IR. Errors propagate; no
// partial result is returned alongside an error (spec section 4.7:
// "Errors propagate; partial results are not returned").
func Optimize(program llir.Stmt, opts Options) (*trace.Store, llir.Stmt, error) {
	store := trace.NewStore()
	for _, a := range opts.DeclaredVirtual {
		store.RecordFor(a).DeclaredVirtual = true
	}

	if err := store.Visit(program, opts.MaxTracingDim); err != nil {
		return nil, nil, wrap(err)
	}
	if err := store.Finish(opts.MaxVisits); err != nil {
		return nil, nil, wrap(err)
	}

	if err := acceptFragments(store, program); err != nil {
		return nil, nil, wrap(err)
	}

	inlined, err := virtual.InlineAll(store, program, opts.PrecisionOf)
	if err != nil {
		return nil, nil, wrap(err)
	}

	cleaned, err := virtual.Cleanup(store, inlined)
	if err != nil {
		return nil, nil, wrap(err)
	}

	simplified := simplify.Simplify(cleaned, simplify.Options{
		UnrollPower: opts.UnrollPower,
		MaxUnroll:   opts.MaxUnroll,
	})

	return store, simplified, nil
}

// acceptFragments finds each top-level accumulation fragment in
// program and offers it to virtual.Accept once per array it writes.
//
// A top-level *llir.Seq's direct children are the natural fragment
// granularity: lowering builds, for each accumulation, nested For
// loops with the innermost body a single Set, so one accumulation is
// exactly one top-level statement -- except a ZeroOut immediately
// followed by the statement that writes the same array, which
// together form one accumulation (the zero-fill and the write it
// feeds) and must be offered to Accept as a single fragment.
func acceptFragments(store *trace.Store, program llir.Stmt) error {
	for i, frag := range splitFragments(program) {
		label := fmt.Sprintf("fragment-%d", i)
		for _, array := range writtenArrays(frag) {
			if err := virtual.Accept(store, array, label, frag); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitFragments(program llir.Stmt) []llir.Stmt {
	seq, ok := program.(*llir.Seq)
	if !ok {
		return []llir.Stmt{program}
	}
	var out []llir.Stmt
	stmts := seq.Stmts
	for i := 0; i < len(stmts); i++ {
		if z, ok := stmts[i].(llir.ZeroOut); ok && i+1 < len(stmts) && writes(stmts[i+1], z.Array) {
			out = append(out, &llir.Seq{Stmts: []llir.Stmt{stmts[i], stmts[i+1]}})
			i++
			continue
		}
		out = append(out, stmts[i])
	}
	return out
}

// writes reports whether s writes array anywhere within it (used only
// to decide whether a ZeroOut should be merged with the statement
// that follows it).
func writes(s llir.Stmt, array symbol.Symbol) bool {
	for _, a := range writtenArrays(s) {
		if a.Equal(array) {
			return true
		}
	}
	return false
}

// writtenArrays collects every array s.Set or s.ZeroOut writes,
// deduplicated, in first-seen order.
func writtenArrays(s llir.Stmt) []symbol.Symbol {
	var out []symbol.Symbol
	seen := make(map[symbol.Symbol]bool)
	add := func(a symbol.Symbol) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	var walk func(llir.Stmt)
	walk = func(s llir.Stmt) {
		switch v := s.(type) {
		case nil, llir.Noop, llir.Comment:
		case *llir.Seq:
			for _, st := range v.Stmts {
				walk(st)
			}
		case *llir.For:
			walk(v.Body)
		case llir.ZeroOut:
			add(v.Array)
		case *llir.Set:
			add(v.Array)
		case *llir.SetLocal:
		case *llir.StagedCallback:
		}
	}
	walk(s)
	return out
}
