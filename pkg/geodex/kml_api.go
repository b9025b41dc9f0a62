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

// kmlPlacemark are the Placemark values a marker feed carries
type kmlPlacemark struct {
	Name         string     `xml:"name"`
	Description  string     `xml:"description"`
	Address      string     `xml:"address"`
	Point        *kmlPoint  `xml:"Point"`
	MultiPoints  []kmlPoint `xml:"MultiGeometry>Point"`
	ExtendedData []kmlData  `xml:"ExtendedData>Data"`
}

// kmlPoint always is a single coordinate tuple here
type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

// kmlData is one named ExtendedData value
type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// kmlNetworkLink covers both the KML 2.2 Link and the legacy Url element of a NetworkLink
type kmlNetworkLink struct {
	Link *kmlHref `xml:"Link"`
	URL  *kmlHref `xml:"Url"`
}

type kmlHref struct {
	Href string `xml:"href"`
}

// kmlRing is a LineString or LinearRing; only the coordinates are used
type kmlRing struct {
	Coordinates string `xml:"coordinates"`
}
