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
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap search endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

	// DefaultUserAgent identifies this tool to remote services.
	DefaultUserAgent = "areapoints/1.0"

	// DefaultGeocodeInterval keeps live lookups under the public
	// Nominatim limit of one request per second.
	DefaultGeocodeInterval = 1100 * time.Millisecond
)

// Geocoder turns a free-text address into a coordinate. found is false when
// the service answered but knows no such place.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (c Coordinate, found bool, err error)
}

// Gate blocks until the next live request may be sent.
// *rate.Limiter implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// NewIntervalGate allows one request per interval with no burst. A
// non-positive interval never blocks.
func NewIntervalGate(interval time.Duration) Gate {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// GateInterval returns the spacing to use for live lookups against baseURL.
// The public endpoint never gets less than DefaultGeocodeInterval; private
// instances may use any interval.
func GateInterval(baseURL string, interval time.Duration) time.Duration {
	if interval >= DefaultGeocodeInterval || strings.TrimRight(baseURL, "/") != DefaultNominatimURL {
		return interval
	}
	log.WithFields(log.Fields{
		"interval": interval,
		"minimum":  DefaultGeocodeInterval,
	}).Warn("geocode interval too short for the public Nominatim service, raising it")
	return DefaultGeocodeInterval
}

// nominatimResult mirrors the parts of a search result we use.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimClient geocodes against a Nominatim search endpoint.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	email      string
}

// NominatimOption configures a NominatimClient.
type NominatimOption func(*NominatimClient)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) NominatimOption {
	return func(n *NominatimClient) {
		n.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) NominatimOption {
	return func(n *NominatimClient) {
		n.httpClient = hc
	}
}

// WithUserAgent replaces the client identifier sent with each request.
func WithUserAgent(ua string) NominatimOption {
	return func(n *NominatimClient) {
		n.userAgent = ua
	}
}

// WithEmail appends a contact address to the user agent, as the Nominatim
// usage policy asks of bulk users.
func WithEmail(email string) NominatimOption {
	return func(n *NominatimClient) {
		n.email = email
	}
}

// NewNominatimClient returns a client for the public Nominatim service
// unless configured otherwise.
func NewNominatimClient(opts ...NominatimOption) *NominatimClient {
	n := &NominatimClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultNominatimURL,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// UserAgent returns the header value sent with each request.
func (n *NominatimClient) UserAgent() string {
	if n.email == "" {
		return n.userAgent
	}
	return n.userAgent + " (" + n.email + ")"
}

// Geocode looks up query and returns the best match.
func (n *NominatimClient) Geocode(ctx context.Context, query string) (Coordinate, bool, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "build request: %v", err)
	}
	req.Header.Set("User-Agent", n.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "request: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "read body: %v", err)
	}

	var results []nominatimResult
	if err = json.Unmarshal(body, &results); err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "parse response: %v", err)
	}
	if len(results) == 0 {
		return Coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "bad latitude %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinate{}, false, eris.Wrapf(ErrGeocodeService, "bad longitude %q", results[0].Lon)
	}
	return Coordinate{Lon: lon, Lat: lat}, true, nil
}
