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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioFeed = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <Placemark><name>A</name><Point><coordinates>1,1,0</coordinates></Point></Placemark>
  <Placemark><name>B</name><address>123 Main</address></Placemark>
  <Placemark><name>C</name><address>9 Nowhere Rd</address></Placemark>
</Document></kml>`

// TestPipeline runs the whole chain from feed file to output file.
func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "points.kml")
	require.NoError(t, os.WriteFile(feedPath, []byte(scenarioFeed), 0o644))
	cachePath := filepath.Join(dir, "geocode_cache.json")
	outPath := filepath.Join(dir, "AddressesWithinBoundary.kml")

	boundary, err := LoadBoundary("../../test/kml/boundary.kml")
	require.NoError(t, err)
	markers, err := NewFeedSource().Load(context.Background(), feedPath)
	require.NoError(t, err)
	index, err := LoadClusterIndex("../../test/clustering/clustering.csv")
	require.NoError(t, err)
	cache := LoadGeocodeCache(cachePath)

	geo := &fakeGeocoder{}
	res := NewResolver(index, cache, geo, WithGate(&countingGate{}))
	stats, err := res.Resolve(context.Background(), markers)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByAddress)
	assert.Equal(t, 1, stats.Failed)
	require.NoError(t, cache.Persist(cachePath))

	sel := Select(boundary, markers)
	assert.Equal(t, []string{"A", "B"}, names(sel.Inside))
	require.NoError(t, WriteFeedFile(outPath, sel.Inside))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	out, err := ParseFeed(f)
	require.NoError(t, err)
	require.Len(t, out.Markers, 2)
	assert.Equal(t, Coordinate{Lon: 1.5, Lat: 1.5}, *out.Markers[1].Coordinate)

	// a second run answers C from the cache without a live request
	geo.calls = nil
	markers, err = NewFeedSource().Load(context.Background(), feedPath)
	require.NoError(t, err)
	res = NewResolver(index, LoadGeocodeCache(cachePath), geo, WithGate(&countingGate{}))
	stats, err = res.Resolve(context.Background(), markers)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CacheUnresolvable)
	assert.Empty(t, geo.calls)
}
