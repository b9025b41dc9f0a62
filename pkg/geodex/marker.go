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

import "fmt"

// Coordinate is a WGS84 position in lon/lat order, the order KML uses.
type Coordinate struct {
	Lon float64
	Lat float64
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%g,%g", c.Lon, c.Lat)
}

// Field is one ExtendedData entry.
type Field struct {
	Key   string
	Value string
}

// ExtendedData holds the auxiliary key/value pairs of a marker. Keys are
// unique; the slice order is the order the keys were first seen.
type ExtendedData []Field

// Get returns the value stored for key.
func (e ExtendedData) Get(key string) (string, bool) {
	for _, f := range e {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set stores value under key, replacing an existing value in place.
func (e *ExtendedData) Set(key, value string) {
	for i := range *e {
		if (*e)[i].Key == key {
			(*e)[i].Value = value
			return
		}
	}
	*e = append(*e, Field{Key: key, Value: value})
}

// Len returns the number of pairs.
func (e ExtendedData) Len() int {
	return len(e)
}

// Marker is one point of interest from a marker feed.
type Marker struct {
	Name        string
	Description string
	AddressTag  string
	Extended    ExtendedData
	Coordinate  *Coordinate
}

// HasCoordinate reports whether the marker was placed by the feed or by resolution.
func (m *Marker) HasCoordinate() bool {
	return m.Coordinate != nil
}

// setCoordinate assigns c unless the marker is already placed.
func (m *Marker) setCoordinate(c Coordinate) bool {
	if m.Coordinate != nil {
		return false
	}
	m.Coordinate = &c
	return true
}
