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
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Accepted header spellings, first match wins.
var (
	latitudeHeaders  = []string{"Latitude", "Lat"}
	longitudeHeaders = []string{"Longitude", "Lon"}
	nameHeaders      = []string{"placemark_name", "placemark"}
	addressHeaders   = []string{"Address", "Address Line 1"}
)

// ClusterIndex maps marker names and normalized addresses to the
// precomputed coordinates of a clustering table. It is read-only once built.
type ClusterIndex struct {
	byName    map[string]Coordinate
	byAddress map[string]Coordinate
}

// NewClusterIndex returns an empty index.
func NewClusterIndex() *ClusterIndex {
	return &ClusterIndex{
		byName:    make(map[string]Coordinate),
		byAddress: make(map[string]Coordinate),
	}
}

// ByName looks up a marker name, trimmed and case-sensitive.
func (ci *ClusterIndex) ByName(name string) (Coordinate, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Coordinate{}, false
	}
	c, ok := ci.byName[name]
	return c, ok
}

// ByAddress looks up an address after normalizing it.
func (ci *ClusterIndex) ByAddress(address string) (Coordinate, bool) {
	key := NormalizeAddress(address)
	if key == "" {
		return Coordinate{}, false
	}
	c, ok := ci.byAddress[key]
	return c, ok
}

// Len returns the number of name and address entries.
func (ci *ClusterIndex) Len() (names, addresses int) {
	return len(ci.byName), len(ci.byAddress)
}

// NormalizeAddress uppercases s with full Unicode case mapping, turns commas
// into spaces and collapses runs of whitespace.
// NormalizeAddress(NormalizeAddress(s)) == NormalizeAddress(s).
func NormalizeAddress(s string) string {
	s = cases.Upper(language.Und).String(s)
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}

// LoadClusterIndex reads a CSV or XLSX clustering table. A missing file
// yields an empty index.
func LoadClusterIndex(path string) (*ClusterIndex, error) {
	if path == "" {
		return NewClusterIndex(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("file", path).Warn("clustering table not found, continuing without it")
		return NewClusterIndex(), nil
	}

	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSXRows(path)
	} else {
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return NewClusterIndex(), nil
	}

	ci := BuildClusterIndex(rows[0], rows[1:])
	names, addresses := ci.Len()
	log.WithFields(log.Fields{
		"file":      path,
		"rows":      len(rows) - 1,
		"names":     names,
		"addresses": addresses,
	}).Info("loaded clustering table")
	return ci, nil
}

// BuildClusterIndex indexes rows by the columns named in header. Rows
// without a parsable latitude and longitude are skipped.
func BuildClusterIndex(header []string, rows [][]string) *ClusterIndex {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	field := func(row []string, names []string) string {
		for _, n := range names {
			i, ok := cols[n]
			if !ok || i >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
		return ""
	}

	ci := NewClusterIndex()
	skipped := 0
	for _, row := range rows {
		lat, err := strconv.ParseFloat(field(row, latitudeHeaders), 64)
		if err != nil {
			skipped++
			continue
		}
		lon, err := strconv.ParseFloat(field(row, longitudeHeaders), 64)
		if err != nil {
			skipped++
			continue
		}
		c := Coordinate{Lon: lon, Lat: lat}

		if name := field(row, nameHeaders); name != "" {
			ci.byName[name] = c
		}
		if addr := NormalizeAddress(field(row, addressHeaders)); addr != "" {
			ci.byAddress[addr] = c
		}
	}
	if skipped > 0 {
		log.WithField("rows", skipped).Debug("skipped clustering rows without coordinates")
	}
	return ci
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "clustering table %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "clustering table %s", path)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "clustering table %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("clustering table %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
