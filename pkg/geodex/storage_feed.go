// This file is part of areapoints (https://github.com/spezifisch/areapoints).
// Based on pogo-planner (https://github.com/spezifisch/pogo-planner).
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
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultFeedTimeout bounds a single remote feed download.
const DefaultFeedTimeout = 15 * time.Second

// Feed is the parsed content of one marker feed document.
type Feed struct {
	Markers []*Marker
	Links   []string
}

// FeedSource reads marker feeds from disk and dereferences their remote links.
type FeedSource struct {
	client    *http.Client
	userAgent string
}

// FeedOption configures a FeedSource.
type FeedOption func(*FeedSource)

// WithFeedHTTPClient replaces the HTTP client used for remote links.
func WithFeedHTTPClient(hc *http.Client) FeedOption {
	return func(s *FeedSource) {
		s.client = hc
	}
}

// WithFeedUserAgent sets the User-Agent header of remote link requests.
func WithFeedUserAgent(ua string) FeedOption {
	return func(s *FeedSource) {
		s.userAgent = ua
	}
}

// NewFeedSource returns a ready-to-use FeedSource
func NewFeedSource(opts ...FeedOption) *FeedSource {
	s := &FeedSource{
		client: &http.Client{Timeout: DefaultFeedTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkFiles(files []string) (err error) {
	for _, file := range files {
		var fi os.FileInfo
		fi, err = os.Stat(file)
		if err != nil {
			return
		}

		if !fi.Mode().IsRegular() {
			text := fmt.Sprintf("'%s' is not a file", file)
			return eris.New(text)
		}
	}
	return
}

// Load reads the feed at path. If it links to remote feeds, the markers of
// every fetchable link are returned in link order and the inline markers are
// ignored. A link that fails to download or parse is logged and skipped.
func (s *FeedSource) Load(ctx context.Context, path string) (markers []*Marker, err error) {
	if err = checkFiles([]string{path}); err != nil {
		return nil, eris.Wrapf(err, "marker feed %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "marker feed %s", path)
	}
	defer f.Close()

	feed, err := ParseFeed(f)
	if err != nil {
		return nil, eris.Wrapf(err, "marker feed %s", path)
	}

	if len(feed.Links) == 0 {
		log.WithFields(log.Fields{
			"file":       path,
			"placemarks": len(feed.Markers),
		}).Info("parsed inline marker feed")
		return feed.Markers, nil
	}

	log.WithFields(log.Fields{
		"file":  path,
		"links": len(feed.Links),
	}).Info("marker feed links to remote feeds")
	for _, href := range feed.Links {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		var remote []*Marker
		remote, err = s.fetch(ctx, href)
		if err != nil {
			log.WithError(err).WithField("href", href).Warn("skipping remote feed")
			err = nil
			continue
		}
		log.WithFields(log.Fields{
			"href":       href,
			"placemarks": len(remote),
		}).Info("fetched remote feed")
		markers = append(markers, remote...)
	}
	return markers, nil
}

func (s *FeedSource) fetch(ctx context.Context, href string) ([]*Marker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, eris.Wrapf(ErrFeedFetch, "build request: %v", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(ErrFeedFetch, "%v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Wrapf(ErrFeedFetch, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(ErrFeedFetch, "read body: %v", err)
	}

	feed, err := ParseFeed(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(feed.Links) > 0 {
		log.WithField("href", href).Debug("ignoring links nested in remote feed")
	}
	return feed.Markers, nil
}

// ParseFeed decodes one KML document, collecting every Placemark and every
// NetworkLink href at any depth.
func ParseFeed(r io.Reader) (*Feed, error) {
	d := xml.NewDecoder(bufio.NewReaderSize(r, 65536))
	d.CharsetReader = charsetReader

	feed := &Feed{}
	root := ""
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrFeedParse, "%v", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == "" {
			root = se.Name.Local
			if root != "kml" {
				return nil, eris.Wrapf(ErrFeedParse, "unexpected root element <%s>", root)
			}
			continue
		}

		switch se.Name.Local {
		case "Placemark":
			var pm kmlPlacemark
			if err = d.DecodeElement(&pm, &se); err != nil {
				return nil, eris.Wrapf(ErrFeedParse, "placemark: %v", err)
			}
			feed.Markers = append(feed.Markers, pm.marker())
		case "NetworkLink":
			var nl kmlNetworkLink
			if err = d.DecodeElement(&nl, &se); err != nil {
				return nil, eris.Wrapf(ErrFeedParse, "network link: %v", err)
			}
			if href := nl.href(); href != "" {
				feed.Links = append(feed.Links, href)
			}
		}
	}

	if root == "" {
		return nil, eris.Wrap(ErrFeedParse, "empty document")
	}
	return feed, nil
}

// charsetReader lets the decoder read feeds saved in legacy encodings.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func (nl *kmlNetworkLink) href() string {
	if nl.Link != nil {
		if h := strings.TrimSpace(nl.Link.Href); h != "" {
			return h
		}
	}
	if nl.URL != nil {
		return strings.TrimSpace(nl.URL.Href)
	}
	return ""
}

func (pm *kmlPlacemark) marker() *Marker {
	m := &Marker{
		Name:        strings.TrimSpace(pm.Name),
		Description: pm.Description,
		AddressTag:  strings.TrimSpace(pm.Address),
	}

	points := pm.MultiPoints
	if pm.Point != nil {
		points = append([]kmlPoint{*pm.Point}, points...)
	}
	if len(points) > 0 {
		if c, ok := parsePoint(points[0].Coordinates); ok {
			m.Coordinate = &c
		}
	}

	for _, data := range pm.ExtendedData {
		if data.Name == "" {
			continue
		}
		m.Extended.Set(data.Name, strings.TrimSpace(data.Value))
	}
	return m
}

// parsePoint reads the first lon,lat[,alt] tuple of a coordinates element.
// Anything short of two numbers means the point is absent.
func parsePoint(text string) (Coordinate, bool) {
	tuples := strings.Fields(text)
	if len(tuples) == 0 {
		return Coordinate{}, false
	}
	parts := strings.Split(tuples[0], ",")
	if len(parts) < 2 {
		return Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lon: lon, Lat: lat}, true
}
