// This file is part of areapoints (https://github.com/spezifisch/areapoints).
// Copyright (C) 2021-2022 spezifisch <spezifisch-7e6@below.fr> (https://github.com/spezifisch).
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, version 3 of the License.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS
// FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License for more
// details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package geodex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(markers []*Marker) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		out = append(out, m.Name)
	}
	return out
}

func TestSelect(t *testing.T) {
	// a triangle leaves the upper right half of its bounding box uncovered
	b, err := NewBoundary([]Coordinate{{0, 0}, {0, 2}, {2, 0}})
	require.NoError(t, err)

	markers := []*Marker{
		{Name: "inside", Coordinate: coord(0.5, 0.5)},
		{Name: "box only", Coordinate: coord(1.8, 1.8)},
		{Name: "far away", Coordinate: coord(10, 10)},
		{Name: "unplaced"},
		{Name: "vertex", Coordinate: coord(0, 0)},
		{Name: "also inside", Coordinate: coord(0.1, 1.5)},
	}

	sel := Select(b, markers)
	assert.Equal(t, []string{"inside", "vertex", "also inside"}, names(sel.Inside))
	assert.Equal(t, 4, sel.InBox)
	assert.GreaterOrEqual(t, sel.InBox, len(sel.Inside))
}

func TestSelect_Empty(t *testing.T) {
	b, err := NewBoundary([]Coordinate{{0, 0}, {0, 1}, {1, 1}, {1, 0}})
	require.NoError(t, err)

	sel := Select(b, nil)
	assert.Zero(t, sel.InBox)
	assert.Empty(t, sel.Inside)
}

func TestBoundary_InBox(t *testing.T) {
	b, err := NewBoundary([]Coordinate{{-88, 42}, {-88, 42.2}, {-87.8, 42.2}, {-87.8, 42}})
	require.NoError(t, err)

	sw, ne := b.Bounds()
	assert.Equal(t, Coordinate{Lon: -88, Lat: 42}, sw)
	assert.Equal(t, Coordinate{Lon: -87.8, Lat: 42.2}, ne)

	tests := []struct {
		c    Coordinate
		want bool
	}{
		{Coordinate{-87.9, 42.1}, true},
		{Coordinate{-88, 42}, true},
		{Coordinate{-87.8, 42.2}, true},
		{Coordinate{-88.01, 42.1}, false},
		{Coordinate{-87.9, 42.21}, false},
	}
	for _, tt := range tests {
		t.Run(tt.c.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, b.InBox(tt.c))
			if !tt.want {
				assert.False(t, b.Covers(tt.c), "covered points lie within the box")
			}
		})
	}
}
