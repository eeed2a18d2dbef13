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

// Accept runs the eligibility check for array's defining fragment
// against store's record (spec section 4.4 "Recording"): on success
// it appends fragment as an accepted Computation; on failure it marks
// the array non-virtual with the violated rule's Provenance, raising
// an error only if the array had been externally declared virtual
// (spec section 4.4: "If it was externally declared virtual, raise an
// error").
func Accept(store *trace.Store, array symbol.Symbol, label string, fragment llir.Stmt) error {
	r := store.RecordFor(array)
	if r.NonVirtual {
		return nil
	}
	ok, idcs, hasIdcs, reason := ProcessComputation(array, fragment)
	if !ok {
		if r.DeclaredVirtual {
			return fmt.Errorf("virtual: array %s was declared virtual but fragment %q is ineligible (%s)", array, label, reason)
		}
		r.NonVirtual = true
		r.NonVirtualReason = reason
		return nil
	}
	r.AddComputation(trace.Computation{Idcs: idcs, HasIdcs: hasIdcs, Label: label, Fragment: fragment})
	return nil
}

// IsVirtual reports whether array currently qualifies for
// virtualization: it was never forced non-virtual, and it has at
// least one accepted defining fragment.
func IsVirtual(store *trace.Store, array symbol.Symbol) bool {
	r := store.RecordFor(array)
	return !r.NonVirtual && len(r.Computations) > 0
}
