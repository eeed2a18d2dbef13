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

package main

import (
	"fmt"
	"strconv"

	"sigs.k8s.io/yaml"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/memmode"
	"github.com/lukstafi/ocannl/symbol"
)

// programDoc is a toy program description: just enough of llir's
// shape to exercise the pipeline end to end without the surface
// DSL/autodiff layer (out of scope per spec section 1). Parsed the
// way config.go parses templates.yaml, with sigs.k8s.io/yaml so the
// same struct tags work whether the file is YAML or JSON.
type programDoc struct {
	Name         string     `json:"name"`
	Materialized []string   `json:"materialized,omitempty"`
	Program      []stmtDesc `json:"program"`
}

type stmtDesc struct {
	Seq     []stmtDesc `json:"seq,omitempty"`
	For     *forDesc   `json:"for,omitempty"`
	ZeroOut string     `json:"zero_out,omitempty"`
	Set     *setDesc   `json:"set,omitempty"`
	Comment string     `json:"comment,omitempty"`
}

type forDesc struct {
	Index string   `json:"index"`
	From  int      `json:"from"`
	To    int      `json:"to"`
	Trace bool     `json:"trace"`
	Body  stmtDesc `json:"body"`
}

type setDesc struct {
	Array string   `json:"array"`
	Idcs  []string `json:"idcs,omitempty"`
	Value exprDesc `json:"value"`
}

type exprDesc struct {
	Const *float64   `json:"const,omitempty"`
	Get   *getDesc   `json:"get,omitempty"`
	Binop *binopDesc `json:"binop,omitempty"`
	Unop  *unopDesc  `json:"unop,omitempty"`
}

type getDesc struct {
	Array string   `json:"array"`
	Idcs  []string `json:"idcs,omitempty"`
}

type binopDesc struct {
	Op string   `json:"op"`
	A  exprDesc `json:"a"`
	B  exprDesc `json:"b"`
}

type unopDesc struct {
	Op string   `json:"op"`
	A  exprDesc `json:"a"`
}

func parseProgram(data []byte) (*programDoc, error) {
	var doc programDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling program: %w", err)
	}
	return &doc, nil
}

// lowering carries the symbol tables a programDoc's names resolve
// through: one for arrays (stable across the whole document) and one
// for loop iterators (scoped to the enclosing For, the way trace's own
// walker threads a scope down through nested loops).
type lowering struct {
	arrays    map[string]symbol.Symbol
	iterators map[string]symbol.Symbol
}

func (l *lowering) array(name string) symbol.Symbol {
	if s, ok := l.arrays[name]; ok {
		return s
	}
	s := symbol.New(name)
	l.arrays[name] = s
	return s
}

// lower builds the llir.Stmt and memmode.Input map for doc.
func (doc *programDoc) lower() (llir.Stmt, map[symbol.Symbol]memmode.Input, error) {
	l := &lowering{arrays: make(map[string]symbol.Symbol), iterators: make(map[string]symbol.Symbol)}
	stmt, err := l.stmts(doc.Program)
	if err != nil {
		return nil, nil, err
	}
	inputs := make(map[symbol.Symbol]memmode.Input, len(doc.Materialized))
	for _, name := range doc.Materialized {
		inputs[l.array(name)] = memmode.Input{Materialized: true}
	}
	return stmt, inputs, nil
}

func (l *lowering) stmts(ds []stmtDesc) (llir.Stmt, error) {
	if len(ds) == 1 {
		return l.stmt(ds[0])
	}
	out := make([]llir.Stmt, 0, len(ds))
	for _, d := range ds {
		s, err := l.stmt(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return &llir.Seq{Stmts: out}, nil
}

func (l *lowering) stmt(d stmtDesc) (llir.Stmt, error) {
	switch {
	case len(d.Seq) > 0:
		return l.stmts(d.Seq)
	case d.For != nil:
		return l.forStmt(d.For)
	case d.ZeroOut != "":
		return llir.ZeroOut{Array: l.array(d.ZeroOut)}, nil
	case d.Set != nil:
		return l.setStmt(d.Set)
	case d.Comment != "":
		return llir.Comment{Text: d.Comment}, nil
	default:
		return llir.Noop{}, nil
	}
}

func (l *lowering) forStmt(d *forDesc) (llir.Stmt, error) {
	if d.Index == "" {
		return nil, fmt.Errorf("for loop missing index name")
	}
	idx := symbol.New(d.Index)
	prev, hadPrev := l.iterators[d.Index]
	l.iterators[d.Index] = idx
	body, err := l.stmt(d.Body)
	if hadPrev {
		l.iterators[d.Index] = prev
	} else {
		delete(l.iterators, d.Index)
	}
	if err != nil {
		return nil, err
	}
	return &llir.For{Index: idx, From: d.From, To: d.To, Body: body, TraceIt: d.Trace}, nil
}

func (l *lowering) setStmt(d *setDesc) (llir.Stmt, error) {
	idcs, err := l.idcs(d.Idcs)
	if err != nil {
		return nil, err
	}
	val, err := l.expr(d.Value)
	if err != nil {
		return nil, err
	}
	return &llir.Set{Array: l.array(d.Array), Idcs: idcs, Value: val}, nil
}

func (l *lowering) idcs(names []string) ([]symbol.AxisIndex, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]symbol.AxisIndex, len(names))
	for i, name := range names {
		if fixed, err := strconv.Atoi(name); err == nil {
			out[i] = symbol.FixedIdx(fixed)
			continue
		}
		it, ok := l.iterators[name]
		if !ok {
			return nil, fmt.Errorf("axis index %q is not a constant and not a bound loop iterator", name)
		}
		out[i] = symbol.IterIdx(it)
	}
	return out, nil
}

func (l *lowering) expr(d exprDesc) (llir.Expr, error) {
	switch {
	case d.Const != nil:
		return llir.Const{Value: *d.Const}, nil
	case d.Get != nil:
		idcs, err := l.idcs(d.Get.Idcs)
		if err != nil {
			return nil, err
		}
		return llir.Get{Array: l.array(d.Get.Array), Idcs: idcs}, nil
	case d.Binop != nil:
		op, err := binOp(d.Binop.Op)
		if err != nil {
			return nil, err
		}
		a, err := l.expr(d.Binop.A)
		if err != nil {
			return nil, err
		}
		b, err := l.expr(d.Binop.B)
		if err != nil {
			return nil, err
		}
		return &llir.Binop{Op: op, A: a, B: b}, nil
	case d.Unop != nil:
		op, err := unOp(d.Unop.Op)
		if err != nil {
			return nil, err
		}
		a, err := l.expr(d.Unop.A)
		if err != nil {
			return nil, err
		}
		return &llir.Unop{Op: op, A: a}, nil
	default:
		return nil, fmt.Errorf("expression has none of const/get/binop/unop set")
	}
}

func binOp(name string) (llir.BinOp, error) {
	switch name {
	case "add":
		return llir.Add, nil
	case "sub":
		return llir.Sub, nil
	case "mul":
		return llir.Mul, nil
	case "div":
		return llir.Div, nil
	case "pow":
		return llir.ToPowOf, nil
	case "max":
		return llir.Max, nil
	case "min":
		return llir.Min, nil
	case "arg1":
		return llir.Arg1, nil
	case "arg2":
		return llir.Arg2, nil
	default:
		return 0, fmt.Errorf("unknown binop %q", name)
	}
}

func unOp(name string) (llir.UnOp, error) {
	switch name {
	case "identity":
		return llir.Identity, nil
	case "neg":
		return llir.Neg, nil
	case "recip":
		return llir.Recip, nil
	default:
		return 0, fmt.Errorf("unknown unop %q", name)
	}
}
