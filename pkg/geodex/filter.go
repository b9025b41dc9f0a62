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

// Selection is the outcome of Select.
type Selection struct {
	InBox  int
	Inside []*Marker
}

// Select returns the markers covered by b, in input order. Markers without
// a coordinate or outside the bounding box are dropped before the exact
// polygon test.
func Select(b *Boundary, markers []*Marker) Selection {
	var sel Selection
	for _, m := range markers {
		if m.Coordinate == nil || !b.InBox(*m.Coordinate) {
			continue
		}
		sel.InBox++
		if b.Covers(*m.Coordinate) {
			sel.Inside = append(sel.Inside, m)
		}
	}
	return sel
}
