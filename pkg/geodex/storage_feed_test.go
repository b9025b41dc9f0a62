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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSource_Load(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantNames []string
		wantErr   bool
	}{
		{
			name:    "no file",
			file:    "",
			wantErr: true,
		},
		{
			name:    "non-existent file",
			file:    "../../test/kml/nonexistent_foo",
			wantErr: true,
		},
		{
			name:    "directory as file",
			file:    "../../test/kml",
			wantErr: true,
		},
		{
			name:    "not a kml document",
			file:    "../../test/kml/not_kml.xml",
			wantErr: true,
		},
		{
			name:      "inline feed",
			file:      "../../test/kml/points.kml",
			wantNames: []string{"X", "Y", "Z", "Multi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markers, err := NewFeedSource().Load(context.Background(), tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, m := range markers {
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestFeedSource_LoadLocalParseErrorIsFeedParse(t *testing.T) {
	_, err := NewFeedSource().Load(context.Background(), "../../test/kml/not_kml.xml")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFeedParse), "got %v", err)
}

func TestParseFeed_Placemarks(t *testing.T) {
	f, err := os.Open("../../test/kml/points.kml")
	require.NoError(t, err)
	defer f.Close()

	feed, err := ParseFeed(f)
	require.NoError(t, err)
	require.Len(t, feed.Markers, 4)
	assert.Empty(t, feed.Links)

	x := feed.Markers[0]
	assert.Equal(t, "X", x.Name)
	assert.Equal(t, "has coordinates", x.Description)
	require.NotNil(t, x.Coordinate)
	assert.Equal(t, Coordinate{Lon: 1, Lat: 1}, *x.Coordinate)

	y := feed.Markers[1]
	assert.Equal(t, "123 Main", y.AddressTag)
	assert.Nil(t, y.Coordinate)
	assert.Equal(t, ExtendedData{
		{Key: "1st PIN", Value: "09-17-100-001"},
		{Key: "City", Value: "Des Plaines"},
	}, y.Extended)

	z := feed.Markers[2]
	assert.Nil(t, z.Coordinate, "single number coordinates are absent")
	assert.Len(t, z.Extended, 2, "Data without a name is dropped")

	multi := feed.Markers[3]
	require.NotNil(t, multi.Coordinate)
	assert.Equal(t, Coordinate{Lon: 3.5, Lat: 4.5}, *multi.Coordinate)
}

func TestParseFeed_Links(t *testing.T) {
	doc := `<?xml version="1.0"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <NetworkLink><Link><href> http://example.com/a.kml </href></Link></NetworkLink>
  <Folder>
    <NetworkLink><Url><href>http://example.com/b.kml</href></Url></NetworkLink>
    <NetworkLink><Link><href></href></Link></NetworkLink>
  </Folder>
  <Placemark><name>inline</name></Placemark>
</Document></kml>`
	feed, err := ParseFeed(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/a.kml", "http://example.com/b.kml"}, feed.Links)
	assert.Len(t, feed.Markers, 1)
}

func TestParseFeed_LegacyCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<kml><Placemark><name>Caf\xe9</name></Placemark></kml>"
	feed, err := ParseFeed(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, feed.Markers, 1)
	assert.Equal(t, "Café", feed.Markers[0].Name)

	_, err = ParseFeed(strings.NewReader(`<?xml version="1.0" encoding="x-klingon"?><kml/>`))
	assert.True(t, eris.Is(err, ErrFeedParse), "got %v", err)
}

func TestParseFeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"plain text", "just some text"},
		{"unclosed", "<kml><Placemark><name>x</name>"},
		{"html", "<html><body>502</body></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeed(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrFeedParse), "got %v", err)
		})
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		text   string
		want   Coordinate
		wantOK bool
	}{
		{"-87.9,42.1,0", Coordinate{-87.9, 42.1}, true},
		{"  -87.9,42.1  ", Coordinate{-87.9, 42.1}, true},
		{"1,2 3,4", Coordinate{1, 2}, true},
		{"7", Coordinate{}, false},
		{"", Coordinate{}, false},
		{"a,b", Coordinate{}, false},
		{"1,", Coordinate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := parsePoint(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func remoteFeed(names ...string) string {
	var b strings.Builder
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`)
	for _, n := range names {
		fmt.Fprintf(&b, `<Placemark><name>%s</name><Point><coordinates>1,1,0</coordinates></Point></Placemark>`, n)
	}
	b.WriteString(`</Document></kml>`)
	return b.String()
}

func writeLinkFeed(t *testing.T, hrefs ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`)
	b.WriteString(`<Placemark><name>inline ignored</name></Placemark>`)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<NetworkLink><Link><href>%s</href></Link></NetworkLink>`, h)
	}
	b.WriteString(`</Document></kml>`)

	path := filepath.Join(t.TempDir(), "links.kml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestFeedSource_LoadRemoteLinks(t *testing.T) {
	var userAgents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents = append(userAgents, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/a.kml":
			_, _ = io.WriteString(w, remoteFeed("a1", "a2"))
		case "/b.kml":
			_, _ = io.WriteString(w, remoteFeed("b1"))
		case "/broken.kml":
			_, _ = io.WriteString(w, "<html>oops</html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	path := writeLinkFeed(t,
		srv.URL+"/a.kml",
		srv.URL+"/missing.kml",
		srv.URL+"/broken.kml",
		"http://127.0.0.1:1/unreachable.kml",
		srv.URL+"/b.kml",
	)

	src := NewFeedSource(
		WithFeedHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithFeedUserAgent("areapoints-test"),
	)
	markers, err := src.Load(context.Background(), path)
	require.NoError(t, err)

	var names []string
	for _, m := range markers {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a1", "a2", "b1"}, names)
	assert.Contains(t, userAgents, "areapoints-test")
}

func TestFeedSource_FetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.kml" {
			_, _ = io.WriteString(w, "not xml at all")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewFeedSource()

	_, err := src.fetch(context.Background(), srv.URL+"/down.kml")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFeedFetch), "got %v", err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = src.fetch(context.Background(), srv.URL+"/bad.kml")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFeedParse), "got %v", err)
}

func TestFeedSource_LoadCancelled(t *testing.T) {
	path := writeLinkFeed(t, "http://127.0.0.1:1/a.kml")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFeedSource().Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
