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

package shape

import (
	"fmt"
	"io"
	"strings"
)

// ShapeError is raised for any conflict the solver detects: a row or
// dim mismatch, an axis-count mismatch, a label mismatch, an
// infinite-axes occurs-check failure, or an unsatisfiable TotalElems.
// It carries a Trace of the offending constraint(s) so the failure can
// be localized (spec section 7).
type ShapeError struct {
	Message string
	Trace   []string
}

func (e *ShapeError) Error() string {
	if len(e.Trace) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Trace, "; "))
}

// WriteTo writes a human-readable rendering of the error, including
// the offending constraint trace, one per line.
func (e *ShapeError) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "shape error: %s\n", e.Message)
	if err != nil {
		return int64(n), err
	}
	total := n
	for _, t := range e.Trace {
		m, err := fmt.Fprintf(w, "\tin: %s\n", t)
		total += m
		if err != nil {
			return int64(total), err
		}
	}
	return int64(total), nil
}

func errf(trace []Constraint, f string, args ...any) *ShapeError {
	tr := make([]string, len(trace))
	for i, c := range trace {
		tr[i] = c.trace()
	}
	return &ShapeError{Message: fmt.Sprintf(f, args...), Trace: tr}
}
