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

package hostcaps

import "testing"

func TestLevelLanes(t *testing.T) {
	cases := []struct {
		l    Level
		want int
	}{
		{LevelScalar, 1},
		{LevelSSE, 4},
		{LevelAVX2, 8},
		{LevelAVX512, 16},
		{LevelNEON, 4},
	}
	for _, c := range cases {
		if got := c.l.Lanes(); got != c.want {
			t.Errorf("%s: got %d lanes, want %d", c.l, got, c.want)
		}
	}
}

func TestPreferReplication(t *testing.T) {
	if !PreferReplication(LevelScalar) {
		t.Error("scalar host should prefer replication")
	}
	if !PreferReplication(LevelSSE) {
		t.Error("sse host (4 lanes) should prefer replication")
	}
	if PreferReplication(LevelAVX2) {
		t.Error("avx2 host (8 lanes) should not prefer replication")
	}
	if PreferReplication(LevelAVX512) {
		t.Error("avx512 host should not prefer replication")
	}
}

func TestProbeReturnsAValidLevel(t *testing.T) {
	l := Probe()
	switch l {
	case LevelScalar, LevelSSE, LevelAVX2, LevelAVX512, LevelNEON:
	default:
		t.Errorf("Probe returned unrecognized level %d", l)
	}
}
