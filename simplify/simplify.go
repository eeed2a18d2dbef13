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

// Package simplify is the algebraic simplifier (spec section 4.5,
// "simplify_llc"): a bottom-up rewrite of Low-Level IR that folds
// constants, cancels identities, re-associates constant arithmetic,
// unrolls small integer powers and collapses trivial local scopes.
//
// Grounded on expr/simplify.go's simplerw Rewriter (a stateless struct
// whose Rewrite method looks up a per-node simplification and whose
// Walk always returns itself, driving one bottom-up pass) and its
// Arithmetic.canonical re-association idiom (rotate a nested same-op
// pair so two immediates sit together, then recursively re-simplify
// just that rotated subtree).
package simplify

import (
	"math"

	"github.com/lukstafi/ocannl/llir"
	"github.com/lukstafi/ocannl/symbol"
)

// Options guards optional rewrites (spec section 4.5: integer-power
// unrolling is "guarded by a flag").
type Options struct {
	UnrollPower bool
	// MaxUnroll bounds how many multiplications integer-power
	// unrolling is willing to emit; 0 selects the default of 8.
	MaxUnroll int
}

// maxIterations bounds the fixed-point loop below against a
// pathological rewrite that never settles; a correct rewrite set
// reaches a fixed point in far fewer passes than this.
const maxIterations = 64

// Simplify reruns the rewriter over s until its hash stops changing
// (spec section 4.5: "the simplifier reruns on a subtree until it
// stops changing"), or until maxIterations passes have run.
func Simplify(s llir.Stmt, opts Options) llir.Stmt {
	if opts.MaxUnroll == 0 {
		opts.MaxUnroll = 8
	}
	cur := s
	curHash := llir.Hash(cur)
	for i := 0; i < maxIterations; i++ {
		next := llir.RewriteStmt(rewriter{opts}, cur)
		nextHash := llir.Hash(next)
		if nextHash == curHash {
			return next
		}
		cur, curHash = next, nextHash
	}
	return cur
}

// SimplifyExpr is Simplify specialized to a bare expression, for
// callers (e.g. package virtual's inliner) that produce an Expr
// directly rather than a whole statement.
func SimplifyExpr(e llir.Expr, opts Options) llir.Expr {
	wrapped := &llir.SetLocal{Scope: symbol.New("simplify"), Value: e}
	out := Simplify(wrapped, opts).(*llir.SetLocal)
	return out.Value
}

type rewriter struct {
	opts Options
}

func (r rewriter) Walk(llir.Node) llir.Rewriter { return r }

func (r rewriter) Rewrite(n llir.Node) llir.Node {
	switch v := n.(type) {
	case *llir.Seq:
		return simplifySeq(v)
	case *llir.Set:
		return v
	case *llir.For:
		return v
	case llir.ZeroOut:
		return v
	case *llir.SetLocal:
		return v
	case *llir.Binop:
		return r.simplifyBinop(v)
	case *llir.Unop:
		return simplifyUnop(v)
	case llir.EmbedIndex:
		if v.Index.IsFixed() {
			return llir.Const{Value: float64(v.Index.Fixed())}
		}
		return v
	case *llir.LocalScope:
		return simplifyLocalScope(v)
	default:
		return n
	}
}

// simplifySeq drops Noop statements a nested rewrite produced (e.g.
// cleanup leaves these behind) and collapses a lone surviving
// statement to itself, keeping the tree from growing one redundant
// Seq wrapper per pass.
func simplifySeq(s *llir.Seq) llir.Stmt {
	var out []llir.Stmt
	for _, st := range s.Stmts {
		if _, ok := st.(llir.Noop); ok {
			continue
		}
		if inner, ok := st.(*llir.Seq); ok {
			out = append(out, inner.Stmts...)
			continue
		}
		out = append(out, st)
	}
	switch len(out) {
	case 0:
		return llir.Noop{}
	case 1:
		return out[0]
	default:
		return &llir.Seq{Stmts: out}
	}
}

func asConst(e llir.Expr) (float64, bool) {
	c, ok := e.(llir.Const)
	return c.Value, ok
}

func (r rewriter) simplifyBinop(b *llir.Binop) llir.Expr {
	switch b.Op {
	case llir.Arg1:
		return b.A
	case llir.Arg2:
		return b.B
	}

	if av, aok := asConst(b.A); aok {
		if bv, bok := asConst(b.B); bok {
			return llir.Const{Value: llir.ApplyBinop(b.Op, av, bv)}
		}
	}

	if id := identity(b); id != nil {
		return id
	}

	if b.Op == llir.ToPowOf && r.opts.UnrollPower {
		if unrolled := unrollPower(b, r.opts.MaxUnroll); unrolled != nil {
			return unrolled
		}
	}

	return reassociate(b)
}

// identity implements spec section 4.5's identity/absorber table:
// x+0, 0+x, x-0, x*1, 1*x, x/1 fold to the non-constant side; x*0,
// 0*x, 0/x fold to 0.
func identity(b *llir.Binop) llir.Expr {
	av, aok := asConst(b.A)
	bv, bok := asConst(b.B)
	switch b.Op {
	case llir.Add:
		if bok && bv == 0 {
			return b.A
		}
		if aok && av == 0 {
			return b.B
		}
	case llir.Sub:
		if bok && bv == 0 {
			return b.A
		}
	case llir.Mul:
		if bok && bv == 1 {
			return b.A
		}
		if aok && av == 1 {
			return b.B
		}
		if (aok && av == 0) || (bok && bv == 0) {
			return llir.Const{Value: 0}
		}
	case llir.Div:
		if bok && bv == 1 {
			return b.A
		}
		if aok && av == 0 {
			return llir.Const{Value: 0}
		}
	}
	return nil
}

// reassociate mirrors Arithmetic.canonical: when b's left operand is
// a Binop of the same left-associable op and its own right side is a
// constant, rotate so the two constants sit together, then fold that
// pair directly (the rotated subtree would otherwise wait for the next
// whole-tree pass to fold).
//
// Sub and Div are left-associable but not self-combining: (x-c1)-c2 =
// x-(c1+c2), and (x/c1)/c2 = x/(c1*c2), so the pair folds under a
// different op (combineOp) than the outer Binop keeps (b.Op).
func reassociate(b *llir.Binop) llir.Expr {
	if !reassociable(b.Op) {
		return b
	}
	_, bIsConst := asConst(b.B)
	if !bIsConst {
		return b
	}
	left, ok := b.A.(*llir.Binop)
	if !ok || left.Op != b.Op {
		return b
	}
	lv, lok := asConst(left.B)
	if !lok {
		return b
	}
	folded := llir.ApplyBinop(combineOp(b.Op), lv, mustConst(b.B))
	return &llir.Binop{Op: b.Op, A: left.A, B: llir.Const{Value: folded}}
}

// reassociable covers the spec's Add/Sub/Mul/Div set, plus Max/Min
// (whose repeated-constant chains collapse the same way and which
// package simplify's idempotence property depends on).
func reassociable(op llir.BinOp) bool {
	switch op {
	case llir.Add, llir.Mul, llir.Max, llir.Min, llir.Sub, llir.Div:
		return true
	default:
		return false
	}
}

// combineOp is the op under which two rotated constants fold: Sub
// chains combine by addition, Div chains by multiplication, everything
// else combines under itself.
func combineOp(op llir.BinOp) llir.BinOp {
	switch op {
	case llir.Sub:
		return llir.Add
	case llir.Div:
		return llir.Mul
	default:
		return op
	}
}

func mustConst(e llir.Expr) float64 {
	v, _ := asConst(e)
	return v
}

// unrollPower implements integer-power unrolling (spec section 4.5):
// a non-negative integer exponent becomes a left-associated product;
// a negative integer exponent becomes the reciprocal of the
// corresponding positive unrolling. Returns nil (leave ToPowOf as is)
// for a non-integer exponent or one beyond maxUnroll.
func unrollPower(b *llir.Binop, maxUnroll int) llir.Expr {
	cv, ok := asConst(b.B)
	if !ok {
		return nil
	}
	if cv != math.Trunc(cv) {
		return nil
	}
	n := int(cv)
	neg := n < 0
	if neg {
		n = -n
	}
	if n > maxUnroll {
		return nil
	}
	if n == 0 {
		return llir.Const{Value: 1}
	}
	var product llir.Expr = b.A
	for i := 1; i < n; i++ {
		product = &llir.Binop{Op: llir.Mul, A: product, B: b.A}
	}
	if neg {
		return &llir.Unop{Op: llir.Recip, A: product}
	}
	return product
}

func simplifyUnop(u *llir.Unop) llir.Expr {
	if u.Op == llir.Identity {
		return u.A
	}
	if cv, ok := asConst(u.A); ok {
		return llir.Const{Value: llir.ApplyUnop(u.Op, cv)}
	}
	return u
}

// simplifyLocalScope implements spec section 4.5's LocalScope
// flattening: a body of a single SetLocal(id, v) (optionally preceded
// by Comments) returns v directly; a body of exactly two SetLocals
// substitutes the first's value into the second wherever it reads the
// scope back via GetLocal, then returns that substituted value.
func simplifyLocalScope(l *llir.LocalScope) llir.Expr {
	sets := collectTrailingSetLocals(l.Body, l.Scope)
	switch len(sets) {
	case 1:
		return sets[0]
	case 2:
		return substGetLocal(sets[1], l.Scope, sets[0])
	default:
		return l
	}
}

// collectTrailingSetLocals returns the Value of each SetLocal(scope,
// ...) statement in body, provided body is nothing but Comments and
// up to two such SetLocals in sequence; any other shape (a loop, an
// unrelated array write, three or more assignments) returns nil to
// signal "don't flatten".
func collectTrailingSetLocals(body llir.Stmt, scope symbol.Symbol) []llir.Expr {
	var stmts []llir.Stmt
	switch v := body.(type) {
	case *llir.Seq:
		stmts = v.Stmts
	default:
		stmts = []llir.Stmt{v}
	}

	var sets []llir.Expr
	for _, st := range stmts {
		switch v := st.(type) {
		case llir.Comment:
			continue
		case *llir.SetLocal:
			if !v.Scope.Equal(scope) {
				return nil
			}
			sets = append(sets, v.Value)
		default:
			return nil
		}
	}
	if len(sets) == 0 || len(sets) > 2 {
		return nil
	}
	return sets
}

// substGetLocal replaces every GetLocal(scope) occurrence in e with
// replacement.
func substGetLocal(e llir.Expr, scope symbol.Symbol, replacement llir.Expr) llir.Expr {
	switch v := e.(type) {
	case llir.GetLocal:
		if v.Scope.Equal(scope) {
			return replacement
		}
		return v
	case *llir.Binop:
		return &llir.Binop{Op: v.Op, A: substGetLocal(v.A, scope, replacement), B: substGetLocal(v.B, scope, replacement)}
	case *llir.Unop:
		return &llir.Unop{Op: v.Op, A: substGetLocal(v.A, scope, replacement)}
	default:
		return v
	}
}
