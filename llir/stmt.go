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

package llir

import (
	"strconv"
	"strings"

	"github.com/lukstafi/ocannl/symbol"
)

func writeIdcs(dst *strings.Builder, idcs []symbol.AxisIndex) {
	dst.WriteByte('[')
	for i, idx := range idcs {
		if i > 0 {
			dst.WriteByte(',')
		}
		dst.WriteString(idx.String())
	}
	dst.WriteByte(']')
}

// Noop does nothing. It is the identity element for Seq and the
// result of folding away an empty statement list.
type Noop struct{}

func (Noop) isStmt() {}

func (Noop) text(dst *strings.Builder, redact bool) { dst.WriteString("noop") }

func (Noop) walk(Visitor) {}

func (Noop) Equals(n Node) bool {
	_, ok := n.(Noop)
	return ok
}

// Seq runs its statements in order.
type Seq struct {
	Stmts []Stmt
}

func (*Seq) isStmt() {}

func (s *Seq) text(dst *strings.Builder, redact bool) {
	dst.WriteString("{\n")
	for _, st := range s.Stmts {
		dst.WriteString("  ")
		st.text(dst, redact)
		dst.WriteByte('\n')
	}
	dst.WriteByte('}')
}

func (s *Seq) walk(v Visitor) {
	for _, st := range s.Stmts {
		Walk(v, st)
	}
}

func (s *Seq) rewrite(r Rewriter) Node {
	out := make([]Stmt, len(s.Stmts))
	for i, st := range s.Stmts {
		out[i] = RewriteStmt(r, st)
	}
	s.Stmts = out
	return s
}

func (s *Seq) Equals(n Node) bool {
	o, ok := n.(*Seq)
	if !ok || len(o.Stmts) != len(s.Stmts) {
		return false
	}
	for i := range s.Stmts {
		if !Equal(s.Stmts[i], o.Stmts[i]) {
			return false
		}
	}
	return true
}

// For is a loop over one product iterator, from From (inclusive) to
// To (exclusive). TraceIt controls whether usage analysis unrolls
// this loop (spec section 4.3: "For loops with trace_it = true,
// unroll the iterator up to a bound... for trace_it = false, bind the
// iterator to its starting value").
type For struct {
	Index   symbol.Symbol
	From    int
	To      int
	Body    Stmt
	TraceIt bool
}

func (*For) isStmt() {}

func (f *For) text(dst *strings.Builder, redact bool) {
	dst.WriteString("for ")
	dst.WriteString(f.Index.String())
	dst.WriteString(" = ")
	dst.WriteString(strconv.Itoa(f.From))
	dst.WriteString(" to ")
	dst.WriteString(strconv.Itoa(f.To))
	dst.WriteString(" ")
	f.Body.text(dst, redact)
}

func (f *For) walk(v Visitor) {
	Walk(v, f.Body)
}

func (f *For) rewrite(r Rewriter) Node {
	f.Body = RewriteStmt(r, f.Body)
	return f
}

func (f *For) Equals(n Node) bool {
	o, ok := n.(*For)
	return ok && f.Index.Equal(o.Index) && f.From == o.From && f.To == o.To &&
		f.TraceIt == o.TraceIt && Equal(f.Body, o.Body)
}

// ZeroOut zero-fills array before any Set writes into it.
type ZeroOut struct {
	Array symbol.Symbol
}

func (ZeroOut) isStmt() {}

func (z ZeroOut) text(dst *strings.Builder, redact bool) {
	dst.WriteString("zero_out ")
	dst.WriteString(z.Array.String())
}

func (ZeroOut) walk(Visitor) {}

func (z ZeroOut) Equals(n Node) bool {
	o, ok := n.(ZeroOut)
	return ok && z.Array.Equal(o.Array)
}

// Set writes value at idcs into array.
type Set struct {
	Array symbol.Symbol
	Idcs  []symbol.AxisIndex
	Value Expr
}

func (*Set) isStmt() {}

func (s *Set) text(dst *strings.Builder, redact bool) {
	dst.WriteString(s.Array.String())
	writeIdcs(dst, s.Idcs)
	dst.WriteString(" := ")
	s.Value.text(dst, redact)
}

func (s *Set) walk(v Visitor) {
	Walk(v, s.Value)
}

func (s *Set) rewrite(r Rewriter) Node {
	s.Value = RewriteExpr(r, s.Value)
	return s
}

func (s *Set) Equals(n Node) bool {
	o, ok := n.(*Set)
	if !ok || !s.Array.Equal(o.Array) || len(s.Idcs) != len(o.Idcs) {
		return false
	}
	for i := range s.Idcs {
		if !s.Idcs[i].Equal(o.Idcs[i]) {
			return false
		}
	}
	return Equal(s.Value, o.Value)
}

// SetLocal writes value into the local scope named by Scope. It only
// ever appears inside the body of the LocalScope expression that
// introduced Scope (spec section 4.2: "Scopes do not cross through
// array boundaries and are always inlined at their single use
// point").
type SetLocal struct {
	Scope symbol.Symbol
	Value Expr
}

func (*SetLocal) isStmt() {}

func (s *SetLocal) text(dst *strings.Builder, redact bool) {
	dst.WriteString(s.Scope.String())
	dst.WriteString(" := ")
	s.Value.text(dst, redact)
}

func (s *SetLocal) walk(v Visitor) {
	Walk(v, s.Value)
}

func (s *SetLocal) rewrite(r Rewriter) Node {
	s.Value = RewriteExpr(r, s.Value)
	return s
}

func (s *SetLocal) Equals(n Node) bool {
	o, ok := n.(*SetLocal)
	return ok && s.Scope.Equal(o.Scope) && Equal(s.Value, o.Value)
}

// Comment carries the originating label of the statement that follows
// it, through every pass, unmodified, to the emitter (spec section
// 4.2: "Comments carry the originating label and survive all passes
// to the emitter").
type Comment struct {
	Text string
}

func (Comment) isStmt() {}

func (c Comment) text(dst *strings.Builder, redact bool) {
	dst.WriteString("# ")
	dst.WriteString(c.Text)
}

func (Comment) walk(Visitor) {}

func (c Comment) Equals(n Node) bool {
	o, ok := n.(Comment)
	return ok && c.Text == o.Text
}

// StagedCallback is an opaque hook the surface layer supplies for a
// side effect the middle-end does not model (e.g. a host-side
// print/assert injected at a specific point in the program). Its
// presence anywhere in a fragment disqualifies every array defined by
// that fragment from virtualization (spec section 4.4, acceptance
// rule (v): "no staged callbacks").
type StagedCallback struct {
	Label string
	Run   func()
}

func (*StagedCallback) isStmt() {}

func (s *StagedCallback) text(dst *strings.Builder, redact bool) {
	dst.WriteString("staged_callback ")
	dst.WriteString(s.Label)
}

func (*StagedCallback) walk(Visitor) {}

func (s *StagedCallback) Equals(n Node) bool {
	o, ok := n.(*StagedCallback)
	return ok && s.Label == o.Label
}
