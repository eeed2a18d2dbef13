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

package shape

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// Fixed key pair for the template cache, matching the style of
// plan/input.go's HashSplit: the key only needs to be stable within a
// process, not secret, so a hard-coded pair is fine.
const (
	templateKey0 = 0x9e3779b97f4a7c15
	templateKey1 = 0xbf58476d1ce4e5b9
)

// siphashTemplateKey hashes a (row_var, length_delta) pair into a
// single cache key for Env.extendRow's template cache (spec section 5:
// "a template cache keyed by (row_var, length_delta) used to avoid
// reintroducing fresh variables when the same row extension is needed
// twice").
func siphashTemplateKey(rowVarID, delta uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], rowVarID)
	binary.LittleEndian.PutUint64(buf[8:16], delta)
	return siphash.Hash(templateKey0, templateKey1, buf[:])
}
