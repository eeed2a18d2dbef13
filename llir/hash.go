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
	"encoding/binary"
	"hash"
	"math"

	"github.com/lukstafi/ocannl/symbol"
	"golang.org/x/crypto/blake2b"
)

// tag bytes identify a node's concrete type in the hash stream; the
// numeric values are arbitrary but must stay stable within a process
// run (hashes are never persisted across runs or versions).
const (
	tagNoop byte = iota
	tagSeq
	tagFor
	tagZeroOut
	tagSet
	tagSetLocal
	tagComment
	tagStagedCallback
	tagConst
	tagGet
	tagGetLocal
	tagGetGlobal
	tagEmbedIndex
	tagBinop
	tagUnop
	tagLocalScope
)

// Hash content-addresses a Low-Level IR subtree with blake2b-256, so
// the simplifier's fixed-point check can compare subtrees by digest
// instead of deep structural equality on every iteration (grounded on
// fsenv.go's and ion/blockfmt/index.go's use of blake2b for content
// hashing).
//
// Two nodes hash equal iff they are Equals-equivalent. For a
// StagedCallback both Hash and Equals look only at its Label, since
// the Run closure carries no comparable identity of its own; passes
// must treat any StagedCallback as non-foldable regardless of hash.
func Hash(n Node) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors for a too-long key, and nil is
		// always a valid (empty) key.
		panic(err)
	}
	writeNode(h, n)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeU64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeInt(h hash.Hash, v int) { writeU64(h, uint64(v)) }

func writeFloat(h hash.Hash, v float64) { writeU64(h, math.Float64bits(v)) }

func writeString(h hash.Hash, s string) {
	writeInt(h, len(s))
	h.Write([]byte(s))
}

func writeSymbol(h hash.Hash, s symbol.Symbol) { writeU64(h, s.ID()) }

func writeAxisIndex(h hash.Hash, a symbol.AxisIndex) {
	if a.IsFixed() {
		h.Write([]byte{1})
		writeInt(h, a.Fixed())
		return
	}
	h.Write([]byte{0})
	writeSymbol(h, a.Iterator())
}

func writeIdxVec(h hash.Hash, idcs []symbol.AxisIndex) {
	writeInt(h, len(idcs))
	for _, idx := range idcs {
		writeAxisIndex(h, idx)
	}
}

func writeNode(h hash.Hash, n Node) {
	if n == nil {
		h.Write([]byte{0xff})
		return
	}
	switch v := n.(type) {
	case Noop:
		h.Write([]byte{tagNoop})
	case *Seq:
		h.Write([]byte{tagSeq})
		writeInt(h, len(v.Stmts))
		for _, st := range v.Stmts {
			writeNode(h, st)
		}
	case *For:
		h.Write([]byte{tagFor})
		writeSymbol(h, v.Index)
		writeInt(h, v.From)
		writeInt(h, v.To)
		if v.TraceIt {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		writeNode(h, v.Body)
	case ZeroOut:
		h.Write([]byte{tagZeroOut})
		writeSymbol(h, v.Array)
	case *Set:
		h.Write([]byte{tagSet})
		writeSymbol(h, v.Array)
		writeIdxVec(h, v.Idcs)
		writeNode(h, v.Value)
	case *SetLocal:
		h.Write([]byte{tagSetLocal})
		writeSymbol(h, v.Scope)
		writeNode(h, v.Value)
	case Comment:
		h.Write([]byte{tagComment})
		writeString(h, v.Text)
	case *StagedCallback:
		h.Write([]byte{tagStagedCallback})
		writeString(h, v.Label)
	case Const:
		h.Write([]byte{tagConst})
		writeFloat(h, v.Value)
	case Get:
		h.Write([]byte{tagGet})
		writeSymbol(h, v.Array)
		writeIdxVec(h, v.Idcs)
	case GetLocal:
		h.Write([]byte{tagGetLocal})
		writeSymbol(h, v.Scope)
	case GetGlobal:
		h.Write([]byte{tagGetGlobal})
		writeString(h, v.Ident)
		if v.Idcs == nil {
			h.Write([]byte{0})
		} else {
			h.Write([]byte{1})
			writeIdxVec(h, v.Idcs)
		}
	case EmbedIndex:
		h.Write([]byte{tagEmbedIndex})
		writeAxisIndex(h, v.Index)
	case *Binop:
		h.Write([]byte{tagBinop})
		writeInt(h, int(v.Op))
		writeNode(h, v.A)
		writeNode(h, v.B)
	case *Unop:
		h.Write([]byte{tagUnop})
		writeInt(h, int(v.Op))
		writeNode(h, v.A)
	case *LocalScope:
		h.Write([]byte{tagLocalScope})
		writeSymbol(h, v.Scope)
		writeInt(h, int(v.Prec))
		writeIdxVec(h, v.OrigIndices)
		writeNode(h, v.Body)
	default:
		panic("llir: Hash: unknown node type")
	}
}
