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
	"bufio"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Boundary is a simple polygon with a single closed ring.
type Boundary struct {
	polygon *geom.Polygon
}

// NewBoundary closes ring if needed and returns it as a Boundary. At least
// three distinct vertices are required.
func NewBoundary(ring []Coordinate) (*Boundary, error) {
	if len(ring) == 0 {
		return nil, eris.Wrap(ErrMalformedBoundary, "no vertices")
	}

	distinct := make(map[Coordinate]struct{}, len(ring))
	for _, c := range ring {
		distinct[c] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, eris.Wrapf(ErrMalformedBoundary, "ring has %d distinct vertices, need 3", len(distinct))
	}

	closed := ring
	if ring[0] != ring[len(ring)-1] {
		closed = append(append(make([]Coordinate, 0, len(ring)+1), ring...), ring[0])
	}

	flat := make([]float64, 0, 2*len(closed))
	for _, c := range closed {
		flat = append(flat, c.Lon, c.Lat)
	}
	return &Boundary{
		polygon: geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}),
	}, nil
}

// Ring returns the closed vertex list.
func (b *Boundary) Ring() []Coordinate {
	flat := b.polygon.FlatCoords()
	ring := make([]Coordinate, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		ring = append(ring, Coordinate{Lon: flat[i], Lat: flat[i+1]})
	}
	return ring
}

// Bounds returns the south-west and north-east corners of the bounding box.
func (b *Boundary) Bounds() (sw, ne Coordinate) {
	bounds := b.polygon.Bounds()
	return Coordinate{Lon: bounds.Min(0), Lat: bounds.Min(1)},
		Coordinate{Lon: bounds.Max(0), Lat: bounds.Max(1)}
}

// InBox reports whether c lies within the bounding box, edges included.
func (b *Boundary) InBox(c Coordinate) bool {
	return b.polygon.Bounds().OverlapsPoint(geom.XY, geom.Coord{c.Lon, c.Lat})
}

// Covers reports whether c lies inside the ring or on its edge.
func (b *Boundary) Covers(c Coordinate) bool {
	return xy.IsPointInRing(geom.XY, geom.Coord{c.Lon, c.Lat}, b.polygon.LinearRing(0).FlatCoords())
}

// LoadBoundary reads a boundary from a KML document, or from the first
// polygon of an ESRI shapefile when path ends in .shp.
func LoadBoundary(path string) (*Boundary, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return loadShapefileBoundary(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedBoundary, "open %s: %v", path, err)
	}
	defer f.Close()

	b, err := ParseBoundary(f)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary %s", path)
	}
	return b, nil
}

// ParseBoundary uses the coordinates of the first LineString in the
// document. Documents without a LineString fall back to the first LinearRing.
func ParseBoundary(r io.Reader) (*Boundary, error) {
	d := xml.NewDecoder(bufio.NewReader(r))
	d.CharsetReader = charsetReader

	var fallback *kmlRing
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedBoundary, "decode: %v", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "LineString":
			var ring kmlRing
			if err = d.DecodeElement(&ring, &se); err != nil {
				return nil, eris.Wrapf(ErrMalformedBoundary, "line string: %v", err)
			}
			return boundaryFromText(ring.Coordinates)
		case "LinearRing":
			if fallback != nil {
				continue
			}
			fallback = &kmlRing{}
			if err = d.DecodeElement(fallback, &se); err != nil {
				return nil, eris.Wrapf(ErrMalformedBoundary, "linear ring: %v", err)
			}
		}
	}

	if fallback == nil {
		return nil, eris.Wrap(ErrMalformedBoundary, "no LineString found")
	}
	log.Debug("boundary has no LineString, using first LinearRing")
	return boundaryFromText(fallback.Coordinates)
}

func boundaryFromText(text string) (*Boundary, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, eris.Wrap(ErrMalformedBoundary, "ring has no coordinates")
	}

	ring := make([]Coordinate, 0, len(tokens))
	for _, token := range tokens {
		parts := strings.Split(token, ",")
		if len(parts) < 2 {
			return nil, eris.Wrapf(ErrMalformedBoundary, "vertex %q has no latitude", token)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedBoundary, "vertex %q: bad longitude", token)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedBoundary, "vertex %q: bad latitude", token)
		}
		ring = append(ring, Coordinate{Lon: lon, Lat: lat})
	}
	return NewBoundary(ring)
}

func loadShapefileBoundary(path string) (*Boundary, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedBoundary, "open shapefile %s: %v", path, err)
	}
	defer r.Close()

	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			continue
		}

		end := int32(len(poly.Points))
		if len(poly.Parts) > 1 {
			end = poly.Parts[1]
			log.WithField("parts", len(poly.Parts)).Warn("boundary polygon has several rings, using the first")
		}
		var start int32
		if len(poly.Parts) > 0 {
			start = poly.Parts[0]
		}

		ring := make([]Coordinate, 0, end-start)
		for _, pt := range poly.Points[start:end] {
			ring = append(ring, Coordinate{Lon: pt.X, Lat: pt.Y})
		}
		return NewBoundary(ring)
	}
	return nil, eris.Wrapf(ErrMalformedBoundary, "shapefile %s has no polygon", path)
}
