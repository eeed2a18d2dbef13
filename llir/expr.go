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

// Const is a scalar float literal.
type Const struct {
	Value float64
}

func (Const) isExpr() {}

func (c Const) text(dst *strings.Builder, redact bool) {
	if redact {
		dst.WriteByte('#')
		return
	}
	dst.WriteString(strconv.FormatFloat(c.Value, 'g', -1, 64))
}

func (Const) walk(Visitor) {}

func (c Const) Equals(n Node) bool {
	o, ok := n.(Const)
	return ok && c.Value == o.Value
}

// Get reads array at idcs.
type Get struct {
	Array symbol.Symbol
	Idcs  []symbol.AxisIndex
}

func (Get) isExpr() {}

func (g Get) text(dst *strings.Builder, redact bool) {
	dst.WriteString(g.Array.String())
	writeIdcs(dst, g.Idcs)
}

func (Get) walk(Visitor) {}

func (g Get) Equals(n Node) bool {
	o, ok := n.(Get)
	if !ok || !g.Array.Equal(o.Array) || len(g.Idcs) != len(o.Idcs) {
		return false
	}
	for i := range g.Idcs {
		if !g.Idcs[i].Equal(o.Idcs[i]) {
			return false
		}
	}
	return true
}

// GetLocal reads the current value of local scope Scope.
type GetLocal struct {
	Scope symbol.Symbol
}

func (GetLocal) isExpr() {}

func (g GetLocal) text(dst *strings.Builder, redact bool) {
	dst.WriteString(g.Scope.String())
}

func (GetLocal) walk(Visitor) {}

func (g GetLocal) Equals(n Node) bool {
	o, ok := n.(GetLocal)
	return ok && g.Scope.Equal(o.Scope)
}

// GetGlobal reads a named value supplied by the host environment
// (e.g. a kernel-launch parameter), optionally indexed. Idcs is nil
// for an un-indexed global.
type GetGlobal struct {
	Ident string
	Idcs  []symbol.AxisIndex
}

func (GetGlobal) isExpr() {}

func (g GetGlobal) text(dst *strings.Builder, redact bool) {
	dst.WriteString(g.Ident)
	if g.Idcs != nil {
		writeIdcs(dst, g.Idcs)
	}
}

func (GetGlobal) walk(Visitor) {}

func (g GetGlobal) Equals(n Node) bool {
	o, ok := n.(GetGlobal)
	if !ok || g.Ident != o.Ident || len(g.Idcs) != len(o.Idcs) {
		return false
	}
	for i := range g.Idcs {
		if !g.Idcs[i].Equal(o.Idcs[i]) {
			return false
		}
	}
	return true
}

// EmbedIndex lifts an axis index into a scalar expression, e.g. to
// compute a position-dependent value from a loop variable. A fixed
// index embeds as a constant (spec section 4.5: "EmbedIndex(Fixed_idx
// i) -> Const(i)").
type EmbedIndex struct {
	Index symbol.AxisIndex
}

func (EmbedIndex) isExpr() {}

func (e EmbedIndex) text(dst *strings.Builder, redact bool) {
	dst.WriteString("idx(")
	dst.WriteString(e.Index.String())
	dst.WriteByte(')')
}

func (EmbedIndex) walk(Visitor) {}

func (e EmbedIndex) Equals(n Node) bool {
	o, ok := n.(EmbedIndex)
	return ok && e.Index.Equal(o.Index)
}

// Binop applies a binary scalar operation.
type Binop struct {
	Op   BinOp
	A, B Expr
}

func (*Binop) isExpr() {}

func (b *Binop) text(dst *strings.Builder, redact bool) {
	dst.WriteByte('(')
	b.A.text(dst, redact)
	dst.WriteByte(' ')
	dst.WriteString(b.Op.String())
	dst.WriteByte(' ')
	b.B.text(dst, redact)
	dst.WriteByte(')')
}

func (b *Binop) walk(v Visitor) {
	Walk(v, b.A)
	Walk(v, b.B)
}

func (b *Binop) rewrite(r Rewriter) Node {
	b.A = RewriteExpr(r, b.A)
	b.B = RewriteExpr(r, b.B)
	return b
}

func (b *Binop) Equals(n Node) bool {
	o, ok := n.(*Binop)
	return ok && b.Op == o.Op && Equal(b.A, o.A) && Equal(b.B, o.B)
}

// Unop applies a unary scalar operation.
type Unop struct {
	Op UnOp
	A  Expr
}

func (*Unop) isExpr() {}

func (u *Unop) text(dst *strings.Builder, redact bool) {
	dst.WriteString(u.Op.String())
	dst.WriteByte('(')
	u.A.text(dst, redact)
	dst.WriteByte(')')
}

func (u *Unop) walk(v Visitor) {
	Walk(v, u.A)
}

func (u *Unop) rewrite(r Rewriter) Node {
	u.A = RewriteExpr(r, u.A)
	return u
}

func (u *Unop) Equals(n Node) bool {
	o, ok := n.(*Unop)
	return ok && u.Op == o.Op && Equal(u.A, o.A)
}

// LocalScope introduces a fresh scope id, typed by precision, whose
// body computes it via SetLocal/GetLocal (spec section 4.2 "Scope
// discipline"). OrigIndices records the call-site index vector the
// scope was inlined from (spec section 4.4: "wraps in
// LocalScope{id, prec, body, orig_indices = call_idcs}"), kept for
// diagnostics and for cleanup's in-scope assertions.
type LocalScope struct {
	Scope       symbol.Symbol
	Prec        symbol.Precision
	Body        Stmt
	OrigIndices []symbol.AxisIndex
}

func (*LocalScope) isExpr() {}

func (l *LocalScope) text(dst *strings.Builder, redact bool) {
	dst.WriteString("let ")
	dst.WriteString(l.Scope.String())
	dst.WriteByte(':')
	dst.WriteString(l.Prec.String())
	dst.WriteString(" = ")
	l.Body.text(dst, redact)
	dst.WriteString(" in ")
	dst.WriteString(l.Scope.String())
}

func (l *LocalScope) walk(v Visitor) {
	Walk(v, l.Body)
}

func (l *LocalScope) rewrite(r Rewriter) Node {
	l.Body = RewriteStmt(r, l.Body)
	return l
}

func (l *LocalScope) Equals(n Node) bool {
	o, ok := n.(*LocalScope)
	if !ok || !l.Scope.Equal(o.Scope) || l.Prec != o.Prec || len(l.OrigIndices) != len(o.OrigIndices) {
		return false
	}
	for i := range l.OrigIndices {
		if !l.OrigIndices[i].Equal(o.OrigIndices[i]) {
			return false
		}
	}
	return Equal(l.Body, o.Body)
}
