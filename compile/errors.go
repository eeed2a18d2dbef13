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
	"fmt"
	"io"

	"github.com/lukstafi/ocannl/llir"
)

// CompileError is an error associated with compiling a particular
// Low-Level IR fragment.
type CompileError struct {
	In  llir.Node
	Err string
}

// Error implements error.
func (c *CompileError) Error() string { return c.Err }

// WriteTo writes a plaintext representation of the error to dst,
// including the IR fragment associated with the error.
func (c *CompileError) WriteTo(dst io.Writer) (int, error) {
	if c.In == nil {
		return fmt.Fprintf(dst, "%s\n", c.Err)
	}
	return fmt.Fprintf(dst, "in fragment:\n\t%s\n%s\n", llir.ToString(c.In), c.Err)
}

func errorf(n llir.Node, f string, args ...interface{}) error {
	return &CompileError{In: n, Err: fmt.Sprintf(f, args...)}
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*CompileError); ok {
		return err
	}
	return &CompileError{Err: err.Error()}
}
