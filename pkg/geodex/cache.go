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
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

// CacheEntry is a remembered geocode outcome. Resolved is false for an
// address the service could not place.
type CacheEntry struct {
	Coordinate Coordinate
	Resolved   bool
}

// Unresolvable is the entry recorded for an address that failed to geocode.
var Unresolvable = CacheEntry{}

// GeocodeCache remembers geocode results by raw address across runs. The
// file format is a JSON object of address -> [lon, lat], with [null, null]
// for addresses that could not be resolved.
type GeocodeCache struct {
	entries map[string]CacheEntry
	dirty   bool
}

// NewGeocodeCache returns an empty cache.
func NewGeocodeCache() *GeocodeCache {
	return &GeocodeCache{entries: make(map[string]CacheEntry)}
}

// LoadGeocodeCache reads the cache at path. A missing or corrupt file gives
// an empty cache; LoadGeocodeCache never fails.
func LoadGeocodeCache(path string) *GeocodeCache {
	c := NewGeocodeCache()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(eris.Wrapf(ErrCacheLoad, "%v", err)).Warn("starting with empty geocode cache")
		}
		return c
	}

	var raw map[string]json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		log.WithError(eris.Wrapf(ErrCacheLoad, "%s: %v", path, err)).Warn("starting with empty geocode cache")
		return c
	}

	ignored := 0
	for addr, value := range raw {
		var pair []*float64
		if err = json.Unmarshal(value, &pair); err != nil {
			ignored++
			continue
		}
		switch {
		case len(pair) == 2 && pair[0] != nil && pair[1] != nil:
			c.entries[addr] = CacheEntry{
				Coordinate: Coordinate{Lon: *pair[0], Lat: *pair[1]},
				Resolved:   true,
			}
		case len(pair) == 2 && pair[0] == nil && pair[1] == nil:
			c.entries[addr] = Unresolvable
		default:
			ignored++
		}
	}
	log.WithFields(log.Fields{
		"file":    path,
		"entries": len(c.entries),
		"ignored": ignored,
	}).Info("loaded geocode cache")
	return c
}

// Lookup returns the cached outcome for address.
func (c *GeocodeCache) Lookup(address string) (CacheEntry, bool) {
	e, ok := c.entries[address]
	return e, ok
}

// Record stores the outcome for address in memory.
func (c *GeocodeCache) Record(address string, e CacheEntry) {
	c.entries[address] = e
	c.dirty = true
}

// Len returns the number of cached addresses.
func (c *GeocodeCache) Len() int {
	return len(c.entries)
}

// Dirty reports whether there are records not yet persisted.
func (c *GeocodeCache) Dirty() bool {
	return c.dirty
}

// Persist writes the cache to path through a temporary file in the same
// directory, so an interrupted write leaves the old cache intact. The file
// is created with mode 0644.
func (c *GeocodeCache) Persist(path string) error {
	data, err := c.marshal()
	if err != nil {
		return eris.Wrapf(ErrCacheWrite, "encode: %v", err)
	}

	err = writeFileAtomic(path, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return eris.Wrapf(ErrCacheWrite, "%v", err)
	}

	c.dirty = false
	log.WithFields(log.Fields{
		"file":    path,
		"entries": len(c.entries),
	}).Info("saved geocode cache")
	return nil
}

// marshal relies on encoding/json sorting map keys for a stable file.
func (c *GeocodeCache) marshal() ([]byte, error) {
	out := make(map[string][2]*float64, len(c.entries))
	for k, e := range c.entries {
		if !e.Resolved {
			out[k] = [2]*float64{}
			continue
		}
		lon, lat := e.Coordinate.Lon, e.Coordinate.Lat
		out[k] = [2]*float64{&lon, &lat}
	}
	return json.MarshalIndent(out, "", "  ")
}
