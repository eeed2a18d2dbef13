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

// Package compr wraps the zstd codec behind a small interface so
// compile's artifact dump doesn't call the underlying library
// directly (spec section 6's debug-artifact side channel).
package compr

import (
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// Compressor is the write side: append the compressed form of src to
// dst and return the result.
type Compressor interface {
	Name() string
	Compress(src, dst []byte) []byte
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCompressor) Name() string { return "zstd" }

// Compression returns a Compressor for the named algorithm, or nil if
// name is not recognized.
func Compression(name string) Compressor {
	switch name {
	case "zstd":
		z, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCompressor{z}
	default:
		return nil
	}
}

// zstdDecoder is shared across every DecodeZstd call; zstd's own
// decoder is safe for concurrent use and reuse avoids paying its
// setup cost per call.
var zstdDecoder *zstd.Decoder

func init() {
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
}

// DecodeZstd decompresses src, appending the result to dst (dst may
// be nil).
func DecodeZstd(src, dst []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst)
}
