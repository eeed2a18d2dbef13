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

import "math"

// BinOp names a scalar binary operation carried by a Binop node.
// Arg1/Arg2 are the "ignore one operand" projections the simplifier
// folds away (spec section 4.5: "Binop(Arg1, a, _) -> a").
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	ToPowOf
	Max
	Min
	ReluGate
	Cmplt
	Cmpeq
	Arg1
	Arg2
)

func (op BinOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case ToPowOf:
		return "**"
	case Max:
		return "max"
	case Min:
		return "min"
	case ReluGate:
		return "relu_gate"
	case Cmplt:
		return "<"
	case Cmpeq:
		return "="
	case Arg1:
		return "arg1"
	case Arg2:
		return "arg2"
	default:
		return "?binop"
	}
}

// ApplyBinop is the constant-folding interpreter for Binop (spec
// section 4.5: "Constant folding of Binop(op, Const, Const) via the
// interpreter").
func ApplyBinop(op BinOp, a, b float64) float64 {
	switch op {
	case Add:
		return a + b
	case Sub:
		return a - b
	case Mul:
		return a * b
	case Div:
		return a / b
	case Mod:
		return math.Mod(a, b)
	case ToPowOf:
		return math.Pow(a, b)
	case Max:
		return math.Max(a, b)
	case Min:
		return math.Min(a, b)
	case ReluGate:
		if a > 0 {
			return b
		}
		return 0
	case Cmplt:
		if a < b {
			return 1
		}
		return 0
	case Cmpeq:
		if a == b {
			return 1
		}
		return 0
	case Arg1:
		return a
	case Arg2:
		return b
	default:
		panic("llir: unknown BinOp in ApplyBinop")
	}
}

// UnOp names a scalar unary operation carried by a Unop node.
type UnOp int

const (
	Identity UnOp = iota
	Neg
	Recip
	Sqrt
	Relu
	Sigmoid
	Tanh
	Exp
	Log
)

func (op UnOp) String() string {
	switch op {
	case Identity:
		return "id"
	case Neg:
		return "-"
	case Recip:
		return "1/"
	case Sqrt:
		return "sqrt"
	case Relu:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Exp:
		return "exp"
	case Log:
		return "log"
	default:
		return "?unop"
	}
}

// ApplyUnop is the constant-folding interpreter for Unop (spec
// section 4.5: "Unop(op, Const) -> Const(f(op))").
func ApplyUnop(op UnOp, a float64) float64 {
	switch op {
	case Identity:
		return a
	case Neg:
		return -a
	case Recip:
		return 1 / a
	case Sqrt:
		return math.Sqrt(a)
	case Relu:
		if a > 0 {
			return a
		}
		return 0
	case Sigmoid:
		return 1 / (1 + math.Exp(-a))
	case Tanh:
		return math.Tanh(a)
	case Exp:
		return math.Exp(a)
	case Log:
		return math.Log(a)
	default:
		panic("llir: unknown UnOp in ApplyUnop")
	}
}
