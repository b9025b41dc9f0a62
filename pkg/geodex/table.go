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
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

// TableStats counts the rows handled by GeocodeTable.
type TableStats struct {
	Rows     int
	Resolved int
	Empty    int
}

// GeocodeTable copies a CSV table from r to w, appending Latitude and
// Longitude columns for the address found in column. Rows whose address
// cannot be resolved get empty coordinate cells.
func GeocodeTable(ctx context.Context, res *Resolver, r io.Reader, w io.Writer, column string) (stats TableStats, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return stats, eris.New("table is empty")
	}
	if err != nil {
		return stats, eris.Wrap(err, "read table header")
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return stats, eris.Errorf("column %q not found in table", column)
	}

	writer := csv.NewWriter(w)
	if err = writer.Write(append(header, "Latitude", "Longitude")); err != nil {
		return stats, eris.Wrap(err, "write table header")
	}

	for {
		var record []string
		record, err = reader.Read()
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			return stats, eris.Wrapf(err, "read table row %d", stats.Rows+1)
		}
		stats.Rows++
		for len(record) < len(header) {
			record = append(record, "")
		}

		lat, lon := "", ""
		addr := record[col]
		if strings.TrimSpace(addr) == "" {
			stats.Empty++
		} else {
			var (
				c     Coordinate
				found bool
			)
			c, found, err = res.LookupAddress(ctx, addr)
			if err != nil {
				return stats, err
			}
			if found {
				stats.Resolved++
				lat = strconv.FormatFloat(c.Lat, 'f', -1, 64)
				lon = strconv.FormatFloat(c.Lon, 'f', -1, 64)
			} else {
				log.WithField("address", addr).Info("no coordinates for row")
			}
		}

		if err = writer.Write(append(record, lat, lon)); err != nil {
			return stats, eris.Wrap(err, "write table row")
		}
	}

	writer.Flush()
	return stats, eris.Wrap(writer.Error(), "write table")
}

// GeocodeTableFile runs GeocodeTable from inPath to outPath. outPath is only
// replaced when the whole table was written.
func GeocodeTableFile(ctx context.Context, res *Resolver, inPath, outPath, column string) (stats TableStats, err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return stats, eris.Wrapf(err, "open table %s", inPath)
	}
	defer in.Close()

	err = writeFileAtomic(outPath, func(w io.Writer) (werr error) {
		stats, werr = GeocodeTable(ctx, res, in, w, column)
		return
	})
	if err != nil {
		return stats, eris.Wrapf(err, "table output %s", outPath)
	}
	return stats, nil
}
