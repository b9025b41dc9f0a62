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
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultAddressKeys are the ExtendedData keys joined into an address when a
// marker has no address tag, in this order.
var DefaultAddressKeys = []string{"Address Line 1", "City", "Town", "1st PIN"}

// ResolveStats counts how the markers of one Resolve call were handled.
type ResolveStats struct {
	Missing           int // markers without a coordinate
	Considered        int // missing markers looked at, after the sample limit
	NoAddress         int
	ByName            int
	ByAddress         int
	CacheHits         int
	CacheUnresolvable int
	Geocoded          int
	Failed            int
}

// Resolved returns how many markers were given a coordinate.
func (s ResolveStats) Resolved() int {
	return s.ByName + s.ByAddress + s.CacheHits + s.Geocoded
}

// Resolver fills in missing marker coordinates from, in order of
// precedence, the clustering index by name, the clustering index by
// address, the geocode cache and finally a live geocoder. Live lookups are
// serial and pass through a Gate.
type Resolver struct {
	index       *ClusterIndex
	cache       *GeocodeCache
	geocoder    Geocoder
	gate        Gate
	addressKeys []string
	sample      int

	checkpointEvery int
	checkpoint      func()
	liveSince       int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGate replaces the default interval gate in front of live lookups.
func WithGate(g Gate) ResolverOption {
	return func(r *Resolver) {
		r.gate = g
	}
}

// WithAddressKeys sets the ExtendedData keys used to assemble an address.
func WithAddressKeys(keys []string) ResolverOption {
	return func(r *Resolver) {
		if len(keys) > 0 {
			r.addressKeys = keys
		}
	}
}

// WithSampleLimit only considers the first n markers that lack a
// coordinate. Zero means all.
func WithSampleLimit(n int) ResolverOption {
	return func(r *Resolver) {
		r.sample = n
	}
}

// WithCheckpoint calls fn after every n live lookups, typically to persist
// the cache.
func WithCheckpoint(n int, fn func()) ResolverOption {
	return func(r *Resolver) {
		r.checkpointEvery = n
		r.checkpoint = fn
	}
}

// NewResolver returns a Resolver. index and cache may be nil.
func NewResolver(index *ClusterIndex, cache *GeocodeCache, geocoder Geocoder, opts ...ResolverOption) *Resolver {
	if index == nil {
		index = NewClusterIndex()
	}
	if cache == nil {
		cache = NewGeocodeCache()
	}
	r := &Resolver{
		index:       index,
		cache:       cache,
		geocoder:    geocoder,
		gate:        NewIntervalGate(DefaultGeocodeInterval),
		addressKeys: DefaultAddressKeys,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CandidateAddress is the address used to resolve m: its address tag, or
// else the configured ExtendedData values joined with ", ".
func (r *Resolver) CandidateAddress(m *Marker) string {
	if tag := strings.TrimSpace(m.AddressTag); tag != "" {
		return tag
	}
	var parts []string
	for _, key := range r.addressKeys {
		if v, ok := m.Extended.Get(key); ok {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve assigns coordinates to the markers that lack one. Markers that
// already have a coordinate are left alone. Only cancellation of ctx stops
// the batch early.
func (r *Resolver) Resolve(ctx context.Context, markers []*Marker) (stats ResolveStats, err error) {
	for _, m := range markers {
		if !m.HasCoordinate() {
			stats.Missing++
		}
	}
	log.Infof("placemarks missing coordinates: %d", stats.Missing)

	for _, m := range markers {
		if m.HasCoordinate() {
			continue
		}
		if r.sample > 0 && stats.Considered >= r.sample {
			break
		}
		stats.Considered++

		if err = r.resolveMarker(ctx, m, &stats); err != nil {
			return
		}
	}

	log.WithFields(log.Fields{
		"by_name":     stats.ByName,
		"by_address":  stats.ByAddress,
		"cache":       stats.CacheHits,
		"geocoded":    stats.Geocoded,
		"failed":      stats.Failed + stats.CacheUnresolvable,
		"no_address":  stats.NoAddress,
		"unprocessed": stats.Missing - stats.Considered,
	}).Info("resolution done")
	return
}

func (r *Resolver) resolveMarker(ctx context.Context, m *Marker, stats *ResolveStats) error {
	addr := r.CandidateAddress(m)
	if addr == "" {
		stats.NoAddress++
		log.WithField("name", m.Name).Debug("no address, skipping")
		return nil
	}

	if c, ok := r.index.ByName(m.Name); ok {
		m.setCoordinate(c)
		stats.ByName++
		log.Infof("used clustering table (name): %s -> %s", m.Name, c)
		return nil
	}
	if c, ok := r.index.ByAddress(addr); ok {
		m.setCoordinate(c)
		stats.ByAddress++
		log.Infof("used clustering table (addr): %s -> %s", addr, c)
		return nil
	}

	if e, ok := r.cache.Lookup(addr); ok {
		if e.Resolved {
			m.setCoordinate(e.Coordinate)
			stats.CacheHits++
			log.Infof("cached: %s -> %s", addr, e.Coordinate)
		} else {
			stats.CacheUnresolvable++
			log.Infof("cached as unresolvable: %s", addr)
		}
		return nil
	}

	c, found, err := r.live(ctx, addr)
	if err != nil {
		return err
	}
	if found {
		m.setCoordinate(c)
		stats.Geocoded++
		log.Infof("geocoded: %s -> %s", addr, c)
	} else {
		stats.Failed++
		log.Infof("geocode failed for: %s", addr)
	}
	return nil
}

// LookupAddress resolves a bare address through the cache and, on a miss,
// the live geocoder. The outcome is recorded in the cache.
func (r *Resolver) LookupAddress(ctx context.Context, address string) (Coordinate, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinate{}, false, nil
	}
	if e, ok := r.cache.Lookup(address); ok {
		return e.Coordinate, e.Resolved, nil
	}
	return r.live(ctx, address)
}

// live sends one gated request and records its outcome. Service failures
// are logged and recorded as unresolvable; the returned error is only set
// when ctx ends while waiting.
func (r *Resolver) live(ctx context.Context, addr string) (Coordinate, bool, error) {
	if err := r.gate.Wait(ctx); err != nil {
		return Coordinate{}, false, err
	}

	c, found, err := r.geocoder.Geocode(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return Coordinate{}, false, ctx.Err()
		}
		log.WithError(err).WithField("address", addr).Warn("geocode error")
		found = false
	}

	if found {
		r.cache.Record(addr, CacheEntry{Coordinate: c, Resolved: true})
	} else {
		r.cache.Record(addr, Unresolvable)
	}

	r.liveSince++
	if r.checkpoint != nil && r.checkpointEvery > 0 && r.liveSince >= r.checkpointEvery {
		r.liveSince = 0
		r.checkpoint()
	}
	return c, found, nil
}
