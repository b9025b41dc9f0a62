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

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-kml/v2"
)

// WriteFeed writes markers as a KML document. Markers without a coordinate
// are left out.
func WriteFeed(w io.Writer, markers []*Marker) error {
	placemarks := make([]kml.Element, 0, len(markers))
	for _, m := range markers {
		if m.Coordinate == nil {
			log.WithField("name", m.Name).Debug("not writing marker without coordinate")
			continue
		}

		children := []kml.Element{
			kml.Name(m.Name),
			kml.Description(m.Description),
		}
		if m.Extended.Len() > 0 {
			data := make([]kml.Element, 0, m.Extended.Len())
			for _, f := range m.Extended {
				data = append(data, dataElement(f))
			}
			children = append(children, kml.ExtendedData(data...))
		}
		children = append(children, kml.Point(coordinatesElement(*m.Coordinate)))
		placemarks = append(placemarks, kml.Placemark(children...))
	}

	bw := bufio.NewWriter(w)
	if err := kml.KML(kml.Document(placemarks...)).WriteIndent(bw, "", "  "); err != nil {
		return eris.Wrap(err, "write kml")
	}
	return eris.Wrap(bw.Flush(), "write kml")
}

// dataElement is <Data name="key"><value>v</value></Data>.
func dataElement(f Field) *kml.CompoundElement {
	d := kml.Data(kml.Value(f.Value))
	d.Attr = append(d.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: f.Key})
	return d
}

// coordinatesElement always writes the altitude, go-kml drops a zero one.
func coordinatesElement(c Coordinate) *kml.SimpleElement {
	value := strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," +
		strconv.FormatFloat(c.Lat, 'f', -1, 64) + ",0"
	return &kml.SimpleElement{
		StartElement: xml.StartElement{Name: xml.Name{Local: "coordinates"}},
		Value:        value,
	}
}

// WriteFeedFile writes markers to path, replacing it only once the whole
// document is written.
func WriteFeedFile(path string, markers []*Marker) error {
	err := writeFileAtomic(path, func(w io.Writer) error {
		return WriteFeed(w, markers)
	})
	return eris.Wrapf(err, "output %s", path)
}

// writeFileAtomic streams write into a temporary file next to path and
// renames it over path on success. The result is world-readable. On failure
// path is left untouched and the temporary file is removed.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err = write(tmp); err != nil {
		tmp.Close()
		return
	}
	if err = tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	return os.Rename(tmp.Name(), path)
}
