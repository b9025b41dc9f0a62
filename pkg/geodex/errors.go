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

import "github.com/rotisserie/eris"

// Error classes. Call sites wrap these with eris.Wrap so callers can use
// eris.Is to tell a fatal failure from a per-record one.
var (
	// ErrMalformedBoundary aborts a run before any marker is processed.
	ErrMalformedBoundary = eris.New("malformed boundary")

	// ErrFeedFetch is a failed download of one remote feed link.
	ErrFeedFetch = eris.New("feed fetch failed")

	// ErrFeedParse is fatal for the local feed and skips a remote one.
	ErrFeedParse = eris.New("feed parse failed")

	// ErrGeocodeService degrades the address it concerns to unresolvable.
	ErrGeocodeService = eris.New("geocode service failed")

	// ErrCacheLoad means the cache file was unreadable and an empty cache is used.
	ErrCacheLoad = eris.New("geocode cache load failed")

	// ErrCacheWrite means cache updates of this run were not persisted.
	ErrCacheWrite = eris.New("geocode cache write failed")
)
