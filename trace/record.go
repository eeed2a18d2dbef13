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

// Package trace is the usage-analysis pass (spec section 4.3,
// "visit_llc"): a single walk over a Low-Level IR fragment that
// populates, per array, a record of its assignments, access visits
// and recurrence, later consumed by package virtual's eligibility
// check.
//
// Grounded on plan/pir's single-pass walks that build side tables
// keyed by node/origin identity while rewriting or inspecting a tree
// (scope.go's pathunify, which walks once and accumulates a
// byorigin map), adapted from expr.Node/pir.Step identities to
// llir.Node identities and a two-level table (per array, per index
// vector).
package trace

import (
	"strconv"
	"strings"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
)

// Provenance is a numeric code stamped on a forced non-virtual
// decision, so regressions can be localized (spec section 3, "Memory
// mode... stamped with a numeric provenance code"). The low codes are
// set by this package's own Finish; the higher ones are set by
// package virtual's process_computation acceptance check (spec
// section 4.4) -- both pass their verdict through the same Record
// field, so the numeric space is defined here in one place rather
// than split across packages.
type Provenance int

const (
	ProvenanceNone Provenance = iota
	ProvenanceMaxVisits
	ProvenanceRecurrent

	// ProvenanceMultiIndex: process_computation's rule (i) -- more
	// than one canonical index tuple was used to write the array
	// within one fragment.
	ProvenanceMultiIndex
	// ProvenanceNonLinearIndex: rule (ii) -- an iterator symbol
	// appears more than once in the canonical index tuple.
	ProvenanceNonLinearIndex
	// ProvenanceEscapingIterator: rule (iii) -- an index variable is
	// not bound by any enclosing For currently in scope.
	ProvenanceEscapingIterator
	// ProvenanceUntracedLoop: rule (iv) -- the fragment contains a
	// For with trace_it = false.
	ProvenanceUntracedLoop
	// ProvenanceStagedCallback: rule (v) -- the fragment contains a
	// StagedCallback.
	ProvenanceStagedCallback
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceMaxVisits:
		return "max-visits-exceeded"
	case ProvenanceRecurrent:
		return "recurrent-access"
	case ProvenanceMultiIndex:
		return "multiple-index-tuples"
	case ProvenanceNonLinearIndex:
		return "non-linear-index"
	case ProvenanceEscapingIterator:
		return "escaping-iterator"
	case ProvenanceUntracedLoop:
		return "untraced-loop"
	case ProvenanceStagedCallback:
		return "staged-callback"
	default:
		return "none"
	}
}

// Visits is the per-index-vector access state: either a count of
// non-recurrent visits, or Recurrent once a read has been observed
// before any write at that position (spec section 3: "Visits(n) |
// Recurrent").
type Visits struct {
	Count     int
	Recurrent bool
}

// Record is the traced array record (spec section 3, "Traced array
// record"): per-array bookkeeping accumulated by Visit and finished
// by Finish.
type Record struct {
	Array symbol.Symbol

	// Computations is the list of (optional index tuple, IR fragment)
	// pairs that compute this array, populated by package virtual's
	// eligibility check (spec section 4.4 "Recording"), not by Visit
	// itself -- tracing only discovers the array and its access
	// pattern; whether a given write fragment is *eligible* to be
	// replayed inline is virtual's decision.
	Computations []Computation

	// Assignments is the set of concrete assignment-index vectors
	// seen, keyed by their string form.
	Assignments map[string][]int

	// Visits maps a concrete access-index vector (string form) to its
	// accumulated visit state.
	Visits map[string]Visits

	ZeroInitialized bool
	ZeroedOut       bool
	ReadBeforeWrite bool
	ReadOnly        bool

	// DeclaredVirtual is set by the caller before tracing when the
	// surface layer has explicitly forced this array virtual; Finish
	// raises an error if tracing also finds a reason to force it
	// non-virtual (spec section 4.3: "If it was externally declared
	// virtual, raise an error").
	DeclaredVirtual bool

	NonVirtual       bool
	NonVirtualReason Provenance
	DeviceOnly       bool
}

// Computation pairs an IR fragment that writes an array with the
// canonical index tuple process_computation accepted it under (spec
// section 4.4). HasIdcs is false for a fragment accepted with no
// canonical tuple at all (an array written at a single, index-free
// position).
type Computation struct {
	Idcs     []symbol.AxisIndex
	HasIdcs  bool
	Label    string
	Fragment llir.Stmt
}

func newRecord(a symbol.Symbol) *Record {
	return &Record{
		Array:       a,
		Assignments: make(map[string][]int),
		Visits:      make(map[string]Visits),
		DeviceOnly:  true,
	}
}

// AddComputation records an accepted defining fragment, in program
// order (spec section 4.4: "Multiple fragments accumulate in program
// order and will be replayed in reverse order when inlined").
func (r *Record) AddComputation(c Computation) {
	r.Computations = append(r.Computations, c)
}

// MaxVisitCount returns the highest non-recurrent visit count
// recorded for this array, used by Finish's max_visits rule.
func (r *Record) MaxVisitCount() int {
	max := 0
	for _, v := range r.Visits {
		if !v.Recurrent && v.Count > max {
			max = v.Count
		}
	}
	return max
}

// AnyRecurrent reports whether any access to this array was marked
// Recurrent.
func (r *Record) AnyRecurrent() bool {
	for _, v := range r.Visits {
		if v.Recurrent {
			return true
		}
	}
	return false
}

func idxKey(idcs []int) string {
	var b strings.Builder
	for i, v := range idcs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}
