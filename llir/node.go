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

// Package llir is the Low-Level IR: assignment-style statements over
// tensor arrays and the scalar expressions that compute their values
// (spec section 3 "Low-Level IR", section 4.2).
//
// The node hierarchy, Visitor/Rewriter traversal and Printable
// stringification are carried over from package expr's AST idiom
// (depth-first Walk/Rewrite driven by a small "nonleaf" escape hatch
// so leaf nodes don't need a rewrite method), adapted to a tree with
// two node categories -- Stmt and Expr -- rather than one.
package llir

import "strings"

// Visitor's Visit method is invoked for each node encountered by Walk.
// If the returned visitor w is not nil, Walk visits each child of the
// node with w, followed by a call to w.Visit(nil).
type Visitor interface {
	Visit(Node) Visitor
}

// Rewriter accepts a Node and returns a (possibly identical) Node to
// replace it with.
type Rewriter interface {
	// Rewrite is applied to nodes in depth-first order; the node is
	// replaced by the returned value.
	Rewrite(Node) Node

	// Walk is called during traversal, and the returned Rewriter is
	// used for all children of Node. A nil result stops traversal
	// before descending into Node's children.
	Walk(Node) Rewriter
}

// nonleaf gates which nodes participate in child rewriting; leaf
// nodes (Noop, Const, GetLocal, EmbedIndex, ...) don't implement it.
type nonleaf interface {
	rewrite(r Rewriter) Node
}

// Printable can render itself (and its children) as text.
type Printable interface {
	// text writes this node's textual form to dst. redact replaces
	// constant values with a placeholder, for logging untrusted data.
	text(dst *strings.Builder, redact bool)
}

// Node is any Low-Level IR node, statement or expression.
type Node interface {
	Printable
	// Equals reports whether n is structurally equivalent to this
	// node.
	Equals(n Node) bool
	walk(Visitor)
}

// Stmt is a Low-Level IR statement.
type Stmt interface {
	Node
	isStmt()
}

// Expr is a Low-Level IR scalar expression.
type Expr interface {
	Node
	isExpr()
}

// Walk traverses n in depth-first order. It calls v.Visit(n); if the
// returned visitor w is non-nil, Walk recurses into each child of n
// with w, then calls w.Visit(nil).
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// Rewrite recursively applies r to n in depth-first order, returning
// the (possibly new) node that should replace n.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if nl, ok := n.(nonleaf); ok {
		if rc := r.Walk(n); rc != nil {
			n = nl.rewrite(rc)
		}
	}
	return r.Rewrite(n)
}

// RewriteStmt is Rewrite specialized to Stmt, for callers that know
// rewriting a statement can only ever produce another statement (true
// for every Rewriter in this codebase, since no pass turns a
// statement into an expression or vice versa).
func RewriteStmt(r Rewriter, s Stmt) Stmt {
	if s == nil {
		return nil
	}
	return Rewrite(r, s).(Stmt)
}

// RewriteExpr is Rewrite specialized to Expr; see RewriteStmt.
func RewriteExpr(r Rewriter, e Expr) Expr {
	if e == nil {
		return nil
	}
	return Rewrite(r, e).(Expr)
}

// ToString renders p (and its children) in the textual form used by
// diagnostics and CompileError messages.
func ToString(p Printable) string {
	if p == nil {
		return "<nil>"
	}
	var dst strings.Builder
	p.text(&dst, false)
	return dst.String()
}

// ToRedacted is ToString but with constant values replaced by a
// placeholder, safe to log alongside untrusted input data.
func ToRedacted(p Printable) string {
	if p == nil {
		return "<nil>"
	}
	var dst strings.Builder
	p.text(&dst, true)
	return dst.String()
}

// Equal reports whether a and b are equivalent nodes. Either may be
// nil.
func Equal(a, b Node) bool {
	if a == nil {
		return b == nil
	}
	return b != nil && a.Equals(b)
}
