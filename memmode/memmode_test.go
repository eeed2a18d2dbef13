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

package memmode

import (
	"testing"

	"github.com/lukstafi/ocannl/symbol"
	"github.com/lukstafi/ocannl/trace"
)

func TestClassifyVirtualShortCircuits(t *testing.T) {
	a := symbol.New("a")
	mode, warn, err := Classify(a, nil, Input{Virtual: true}, false)
	if mode != Virtual || warn != nil || err != nil {
		t.Fatalf("got (%s,%v,%v), want (virtual,nil,nil)", mode, warn, err)
	}
}

func TestClassifyExplicitWins(t *testing.T) {
	a := symbol.New("a")
	explicit := Replicated
	mode, _, err := Classify(a, nil, Input{Explicit: &explicit, Hosted: true}, false)
	if err != nil || mode != Replicated {
		t.Fatalf("got (%s,%v), want replicated", mode, err)
	}
}

func TestClassifyConstantFromHost(t *testing.T) {
	a := symbol.New("a")
	rec := &trace.Record{Array: a, ReadOnly: true}
	mode, _, err := Classify(a, rec, Input{Hosted: true, Materialized: true}, false)
	if err != nil || mode != Constant {
		t.Fatalf("got (%s,%v), want constant", mode, err)
	}
}

func TestClassifyLocalWhenNotMaterialized(t *testing.T) {
	a := symbol.New("a")
	mode, _, err := Classify(a, nil, Input{Materialized: false}, false)
	if err != nil || mode != Local {
		t.Fatalf("got (%s,%v), want local", mode, err)
	}
}

func TestClassifyThreadOnly(t *testing.T) {
	a := symbol.New("a")
	in := Input{Materialized: true, TaskParallel: Absent, SampleParallel: Absent}
	mode, warn, err := Classify(a, nil, in, false)
	if err != nil || warn != nil || mode != ThreadOnly {
		t.Fatalf("got (%s,%v,%v), want thread-only", mode, warn, err)
	}
}

func TestClassifyBlockOnly(t *testing.T) {
	a := symbol.New("a")
	in := Input{Materialized: true, TaskParallel: Absent, SampleParallel: No}
	mode, _, err := Classify(a, nil, in, false)
	if err != nil || mode != BlockOnly {
		t.Fatalf("got (%s,%v), want block-only", mode, err)
	}
}

func TestClassifyThreadParallel(t *testing.T) {
	a := symbol.New("a")
	in := Input{Materialized: true, Hosted: true, TaskParallel: Yes, SampleParallel: Yes}
	mode, _, err := Classify(a, nil, in, false)
	if err != nil || mode != ThreadParallel {
		t.Fatalf("got (%s,%v), want thread-parallel", mode, err)
	}
}

func TestClassifyBlockParallel(t *testing.T) {
	a := symbol.New("a")
	in := Input{Materialized: true, Hosted: true, TaskParallel: Yes, SampleParallel: No}
	mode, _, err := Classify(a, nil, in, false)
	if err != nil || mode != BlockParallel {
		t.Fatalf("got (%s,%v), want block-parallel", mode, err)
	}
}

func TestClassifyReplicated(t *testing.T) {
	a := symbol.New("a")
	in := Input{
		Materialized:   true,
		Hosted:         true,
		TaskParallel:   No,
		SampleParallel: No,
		Replicable:     true,
	}
	mode, _, err := Classify(a, nil, in, false)
	if err != nil || mode != Replicated {
		t.Fatalf("got (%s,%v), want replicated", mode, err)
	}
}

func TestClassifyNonLocalWarnsWhenLax(t *testing.T) {
	a := symbol.New("a")
	in := Input{
		Materialized:   true,
		Hosted:         false,
		TaskParallel:   No,
		SampleParallel: No,
		Replicable:     false,
	}
	mode, warn, err := Classify(a, nil, in, false)
	if mode != NonLocal || warn == nil || err != nil {
		t.Fatalf("got (%s,%v,%v), want (non-local, warning, nil error)", mode, warn, err)
	}
}

func TestClassifyNonLocalErrorsWhenStrict(t *testing.T) {
	a := symbol.New("a")
	in := Input{
		Materialized:   true,
		Hosted:         false,
		TaskParallel:   No,
		SampleParallel: No,
		Replicable:     false,
	}
	mode, warn, err := Classify(a, nil, in, true)
	if mode != NonLocal || warn == nil || err == nil {
		t.Fatalf("got (%s,%v,%v), want (non-local, warning, error)", mode, warn, err)
	}
}

// TestClassifyHostedSubmodeFallback covers the case Classify's
// Constant_from_host and Replicated rows both miss but the array is
// still hosted: instead of a generic Non_local warning it resolves to
// HostedChanged or HostedVolatile depending on whether a read before
// any write was observed while tracing.
func TestClassifyHostedSubmodeFallback(t *testing.T) {
	a := symbol.New("a")
	in := Input{
		Materialized:   true,
		Hosted:         true,
		TaskParallel:   No,
		SampleParallel: No,
		Replicable:     false,
	}
	mode, warn, err := Classify(a, &trace.Record{Array: a, ReadBeforeWrite: false}, in, false)
	if mode != HostedChanged || warn != nil || err != nil {
		t.Fatalf("got (%s,%v,%v), want (hosted-changed, no warning, nil error)", mode, warn, err)
	}

	mode, warn, err = Classify(a, &trace.Record{Array: a, ReadBeforeWrite: true}, in, false)
	if mode != HostedVolatile || warn != nil || err != nil {
		t.Fatalf("got (%s,%v,%v), want (hosted-volatile, no warning, nil error)", mode, warn, err)
	}
}

func TestHostedSubmode(t *testing.T) {
	a := symbol.New("a")
	if got := HostedSubmode(&trace.Record{Array: a, ReadBeforeWrite: false}); got != HostedChanged {
		t.Errorf("got %s, want hosted-changed", got)
	}
	if got := HostedSubmode(&trace.Record{Array: a, ReadBeforeWrite: true}); got != HostedVolatile {
		t.Errorf("got %s, want hosted-volatile", got)
	}
}
