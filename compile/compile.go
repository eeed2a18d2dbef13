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

package compile

import (
	"github.com/google/uuid"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/memmode"
	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
	"github.com/lukstafi/ocannl/virtual"
)

// Result is a finished compilation: the optimized IR, the traced
// store, and the final memory mode resolved for every array that
// survived virtualization (spec section 6, "Interfaces produced").
type Result struct {
	// ID correlates this compilation's log lines (SPEC_FULL.md:
	// "each call to compile() is stamped with a UUID"), the way
	// cmd/snellerd stamps each request with a uuid.UUID.
	ID    uuid.UUID
	Name  string
	Store *trace.Store
	IR    llir.Stmt

	// Modes holds the final memmode.Mode for every array that ended
	// up non-virtual; virtual arrays carry no mode since they are
	// eliminated from the output IR entirely.
	Modes map[symbol.Symbol]memmode.Mode
	// Warnings collects every Non_local placement (spec section 6:
	// "Warnings... are logged but do not abort").
	Warnings []*memmode.Warning
}

// Compile wraps Optimize with the side effect spec section 4.7
// describes: "setting final memory modes on arrays that end up
// non-virtual but device-only to hosted = true when required".
//
// inputs supplies, per array, the placement facts Optimize's passes
// cannot derive on their own (whether the array is materialized to an
// external observer, pinned to the host, indexed by a task/sample
// axis, safe to replicate) -- the same Input package memmode already
// defines. An array absent from inputs classifies with the zero
// Input, i.e. not materialized, which resolves to memmode.Local.
//
// "required" is resolved here as in.Materialized: a device-only array
// that some external observer needs after compilation must also be
// host-visible, so its record's DeviceOnly flag is cleared before
// classification (see DESIGN.md for this Open Question-adjacent
// reading of an otherwise unspecified condition).
func Compile(name string, program llir.Stmt, inputs map[symbol.Symbol]memmode.Input, opts Options) (*Result, error) {
	store, ir, err := Optimize(program, opts)
	if err != nil {
		return nil, err
	}

	modes := make(map[symbol.Symbol]memmode.Mode)
	var warnings []*memmode.Warning

	for array, rec := range store.Records {
		if virtual.IsVirtual(store, array) {
			continue
		}
		in := inputs[array]
		if rec.DeviceOnly && in.Materialized {
			rec.DeviceOnly = false
			in.Hosted = true
		}
		mode, warn, err := memmode.Classify(array, rec, in, opts.StrictNonLocal)
		if err != nil {
			return nil, wrap(err)
		}
		if warn != nil {
			warnings = append(warnings, warn)
			debugf("array %s: %s", array, warn.Message)
		}
		modes[array] = mode
	}

	id := uuid.New()
	debugf("compile %q: id=%s arrays=%d warnings=%d", name, id, len(modes), len(warnings))

	return &Result{
		ID:       id,
		Name:     name,
		Store:    store,
		IR:       ir,
		Modes:    modes,
		Warnings: warnings,
	}, nil
}
