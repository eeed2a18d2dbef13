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

// Package hostcaps probes the host CPU's SIMD capability, the same
// way vm/avx512level.go probes AVX512 feature bits to pick an SSA
// opcode set. Here the probe feeds package memmode's Replicated vs.
// Thread_only heuristic for the host/CPU backend target (spec section
// 4.6): a host with no wide SIMD lanes has no hardware reason to
// prefer Thread_parallel over duplicating small per-sample arrays
// (Replicated) across worker goroutines.
package hostcaps

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Level is a coarse ranking of how much SIMD parallelism the host CPU
// offers: the x86 levels run narrowest first, and LevelNEON, the arm64
// level, comes after them.
type Level int

const (
	// LevelScalar: no usable wide-vector ISA was detected (or the
	// architecture isn't one hostcaps knows how to probe).
	LevelScalar Level = iota
	// LevelSSE: x86 with SSE4.2 and no wider extension observed.
	LevelSSE
	// LevelAVX2: x86 with AVX2.
	LevelAVX2
	// LevelAVX512: x86 with the AVX512 subset vm/avx512level.go
	// checks for (VBMI/VBMI2/VPOPCNTDQ/IFMA/BITALG/VAES/GFNI/VPCLMULQDQ).
	LevelAVX512
	// LevelNEON: arm64 with NEON (baseline on arm64, always present).
	LevelNEON
)

func (l Level) String() string {
	switch l {
	case LevelSSE:
		return "sse"
	case LevelAVX2:
		return "avx2"
	case LevelAVX512:
		return "avx512"
	case LevelNEON:
		return "neon"
	default:
		return "scalar"
	}
}

// Lanes estimates how many float32 SIMD lanes the detected level
// packs into one vector register; used by the classifier to decide
// whether Thread_parallel placement has a hardware lane to back it.
func (l Level) Lanes() int {
	switch l {
	case LevelSSE:
		return 4
	case LevelAVX2:
		return 8
	case LevelAVX512:
		return 16
	case LevelNEON:
		return 4
	default:
		return 1
	}
}

// Probe inspects the running host's CPU feature bits and returns its
// SIMD level, mirroring avx512level's direct cpu.X86 field reads.
func Probe() Level {
	switch runtime.GOARCH {
	case "amd64", "386":
		return probeX86()
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return LevelNEON
		}
		return LevelScalar
	default:
		return LevelScalar
	}
}

func probeX86() Level {
	if cpu.X86.HasAVX512VBMI &&
		cpu.X86.HasAVX512VBMI2 &&
		cpu.X86.HasAVX512VPOPCNTDQ &&
		cpu.X86.HasAVX512IFMA &&
		cpu.X86.HasAVX512BITALG &&
		cpu.X86.HasAVX512VAES &&
		cpu.X86.HasAVX512GFNI &&
		cpu.X86.HasAVX512VPCLMULQDQ {
		return LevelAVX512
	}
	if cpu.X86.HasAVX2 {
		return LevelAVX2
	}
	if cpu.X86.HasSSE42 {
		return LevelSSE
	}
	return LevelScalar
}

// PreferReplication reports whether the host's SIMD width is narrow
// enough that duplicating a small per-sample array across worker
// goroutines (Replicated) is preferable to relying on Thread_parallel
// placement, which needs real hardware lanes to pay off.
func PreferReplication(l Level) bool {
	return l.Lanes() < 8
}
