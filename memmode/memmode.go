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

// Package memmode is the per-array memory-mode classifier (spec
// section 4.6): it picks one storage class per array from the traced
// record plus a handful of properties tracing itself does not track
// (whether the array is externally materialized, pinned to the host,
// indexed by a dedicated task/sample axis, or safe to duplicate per
// worker).
//
// Grounded on plan/pir/cardinality.go's SizeClass type: a small
// ranked enum plus a pure decision function over a handful of input
// predicates, with no hidden state. Classify here plays the same
// role cardinality.go's classify does for row-count estimation.
package memmode

import (
	"fmt"

	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

// Mode is the storage class assigned to one array. The values
// collapse the two naming levels in spec section 3 ("Virtual, Local,
// Shared, Global, Constant, Hosted (Changed | Constant | Volatile),
// Materialized") and spec section 4.6's GPU-emission decision table
// (Thread_only, Block_only, Thread_parallel, Block_parallel,
// Constant, Replicated, Non_local) into one enum: section 4.6's table
// is how every "Shared"/"Global" case is actually resolved in this
// implementation, so the concrete values it produces are exposed
// directly instead of behind an extra Shared/Global indirection that
// no caller would ever switch on. See DESIGN.md for this Open
// Question resolution.
type Mode int

const (
	// Virtual: eliminated entirely; never materialized (spec section
	// 4.4). Classify returns this immediately when told the array is
	// virtual, bypassing the rest of the priority list.
	Virtual Mode = iota
	// Local: not materialized, so no storage needs to outlive the
	// computation that produces it ("Local_only").
	Local
	// Constant: hosted and read-only ("Constant_from_host").
	Constant
	// HostedChanged: hosted, written by host-side code between
	// invocations in the ordinary course of the program.
	HostedChanged
	// HostedVolatile: hosted, written by host-side code, and also
	// observed to be read before any write within a traced fragment --
	// its value cannot be assumed stable run to run.
	HostedVolatile
	// ThreadOnly: from_context, not hosted, free of task/sample
	// exclusion -- lives in per-thread registers/local memory.
	ThreadOnly
	// BlockOnly: from_context, not hosted, excluded from sample
	// parallelism -- lives in per-block local memory.
	BlockOnly
	// ThreadParallel: indexed by both a dedicated task axis and a
	// dedicated sample axis -- one instance per GPU thread.
	ThreadParallel
	// BlockParallel: indexed by a dedicated task axis but not a
	// sample axis -- one instance per GPU block.
	BlockParallel
	// Replicated: not sample-parallel but safe to duplicate whole,
	// per worker.
	Replicated
	// NonLocal: none of the above predicates resolved a placement;
	// falls back to shared/global storage with a warning (spec
	// section 4.6: "otherwise Non_local (with warning)").
	NonLocal
)

func (m Mode) String() string {
	switch m {
	case Virtual:
		return "virtual"
	case Local:
		return "local"
	case Constant:
		return "constant"
	case HostedChanged:
		return "hosted-changed"
	case HostedVolatile:
		return "hosted-volatile"
	case ThreadOnly:
		return "thread-only"
	case BlockOnly:
		return "block-only"
	case ThreadParallel:
		return "thread-parallel"
	case BlockParallel:
		return "block-parallel"
	case Replicated:
		return "replicated"
	case NonLocal:
		return "non-local"
	default:
		return "unknown"
	}
}

// Parallelism is a three-valued predicate over one of the two
// dedicated axes (task/block, sample/thread) spec section 4.6 asks
// for: Absent means the array has no axis of that kind at all; No
// means the axis exists but this array is not parallelized over it;
// Yes means it is.
type Parallelism int

const (
	Absent Parallelism = iota
	No
	Yes
)

// Input collects the properties Classify needs beyond the traced
// record, because they describe external consumption and target
// hardware rather than IR usage patterns package trace observes.
type Input struct {
	// Virtual short-circuits Classify to Mode Virtual, skipping the
	// rest of the priority list (spec section 4.6 only discusses
	// modes for arrays that survived virtualization).
	Virtual bool

	// Explicit, if non-nil, is an externally forced mode (spec section
	// 4.6: "explicit user mode if set"); it wins over every other
	// predicate.
	Explicit *Mode

	// Hosted reports whether the array has a host-resident buffer.
	Hosted bool

	// Materialized reports whether some external observer (another
	// compiled program, the backend's output contract) needs this
	// array's values after compilation; false means "Local_only".
	Materialized bool

	TaskParallel   Parallelism
	SampleParallel Parallelism

	// Replicable reports whether duplicating the array whole, once
	// per worker, is semantically safe (no aliasing through a shared
	// mutable view).
	Replicable bool
}

// Warning carries the array and explanation for a Non_local
// placement so the caller can log or, under a strict configuration,
// escalate it to an error (spec section 9, Open Question 2).
type Warning struct {
	Array   symbol.Symbol
	Message string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("memmode: array %s: %s", w.Array, w.Message)
}

// Classify picks array's storage mode per spec section 4.6's priority
// list and decision table. strict promotes a Non_local placement from
// a warning to a hard error. rec may be nil only when in.Virtual is
// true or in.Explicit is set (no other path consults it).
func Classify(array symbol.Symbol, rec *trace.Record, in Input, strict bool) (Mode, *Warning, error) {
	if in.Virtual {
		return Virtual, nil, nil
	}
	if in.Explicit != nil {
		return *in.Explicit, nil, nil
	}
	if in.Hosted && rec != nil && rec.ReadOnly {
		return Constant, nil, nil
	}
	if !in.Materialized {
		return Local, nil, nil
	}

	mode, warn := fromContext(rec, in)
	if warn != nil {
		warn.Array = array
		if strict {
			return mode, warn, warn
		}
		return mode, warn, nil
	}
	return mode, nil, nil
}

// fromContext implements spec section 4.6's decision table for
// arrays that are materialized, not forced local, and not resolved by
// an explicit mode. Rows are evaluated in the table's own top-to-
// bottom order; the first matching row wins. A hosted array that
// reaches neither Constant nor Replicated still has a host-resident
// buffer, so rather than fall all the way to a generic Non_local
// warning it resolves to the Changed/Volatile split spec section 3's
// data model names for that case.
func fromContext(rec *trace.Record, in Input) (Mode, *Warning) {
	switch {
	case !in.Hosted && in.TaskParallel != No && in.SampleParallel != No:
		return ThreadOnly, nil
	case !in.Hosted && in.TaskParallel != No && in.SampleParallel == No:
		return BlockOnly, nil
	case in.TaskParallel == Yes && in.SampleParallel == Yes:
		return ThreadParallel, nil
	case in.TaskParallel == Yes && in.SampleParallel == No:
		return BlockParallel, nil
	case in.Hosted && rec != nil && rec.ReadOnly:
		return Constant, nil
	case in.SampleParallel == No && in.Replicable:
		return Replicated, nil
	case in.Hosted:
		return HostedSubmode(rec), nil
	default:
		return NonLocal, &Warning{Message: "no placement predicate matched; falling back to non-local storage"}
	}
}

// HostedSubmode picks between HostedChanged and HostedVolatile for an
// array that is hosted but not read-only (so Classify's Constant
// branch did not fire). Kept separate from Classify because it needs
// no Input beyond the record itself and a caller may want to report
// it independently of the from-context placement.
func HostedSubmode(rec *trace.Record) Mode {
	if rec != nil && rec.ReadBeforeWrite {
		return HostedVolatile
	}
	return HostedChanged
}
