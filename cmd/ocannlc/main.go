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

// Command ocannlc is a thin harness over package compile: it reads a
// toy program description, runs it through the optimizer, and prints
// the optimized IR and the resolved memory modes. The surface
// DSL/autodiff layer a real frontend would have stays out of scope;
// this only exercises the library (spec section 1's stated scope).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lukstafi/ocannl/compile"
)

var (
	dashv bool
	dashh bool
)

func init() {
	flag.BoolVar(&dashv, "v", false, "enable debug logging (sets OCANNL_LOG_LEVEL=debug)")
	flag.BoolVar(&dashh, "h", false, "show usage help")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 || dashh {
		fmt.Fprintf(os.Stderr, "usage:\n    %s [-v] <program.yaml>\n", os.Args[0])
		flag.Usage()
		os.Exit(1)
	}
	if dashv {
		os.Setenv("OCANNL_LOG_LEVEL", "debug")
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		exitf("reading %s: %s", path, err)
	}

	doc, err := parseProgram(data)
	if err != nil {
		exitf("parsing %s: %s", path, err)
	}

	stmt, inputs, err := doc.lower()
	if err != nil {
		exitf("lowering %s: %s", path, err)
	}

	result, err := compile.Compile(doc.Name, stmt, inputs, compile.DefaultOptions())
	if err != nil {
		exitf("compile: %s", err)
	}

	dump, err := compile.DumpArtifact(result)
	if err != nil {
		exitf("dumping artifact: %s", err)
	}
	text, err := compile.DecodeArtifact(dump)
	if err != nil {
		exitf("decoding artifact: %s", err)
	}
	fmt.Print(text)
}
