package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/loader"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const innsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"marker-group":"Inns","popup-text":"The Leaping Frog"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[5000,5000]},"properties":{"marker-group":"Inns"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-5000,5000]},"properties":{"marker-group":""}}
]}`

const regionsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[100,0],[100,100],[0,0]]]},"properties":{"marker-group":"Kingdoms","fill":"#884422"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-8000,-8000]},"properties":{"marker-group":"Temples"}}
]}`

func newSession(t *testing.T) *Session {
	t.Helper()
	cfg := &config.Config{Maps: []config.Map{{Name: "aunea"}}}
	require.NoError(t, cfg.Normalize())

	s, err := New(cfg.Maps[0], time.Minute)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/regions.geojson" {
			_, _ = w.Write([]byte(regionsJSON))
			return
		}
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inns.geojson"), []byte(innsJSON), 0644))

	s := newSession(t)
	s.Map.Locations = []string{"inns.geojson", srv.URL + "/regions.geojson", srv.URL + "/missing.geojson"}

	sum := s.Load(context.Background(), srv.Client(), Sources(s.Map, dir))
	assert.Equal(t, LoadSummary{Loaded: 2, Failed: 1, Features: 5}, sum)
	assert.Equal(t, uint64(2), s.Generation())

	overlays := s.Overlays()
	assert.Equal(t, []Overlay{
		{Name: "Inns", Visible: true, Count: 2},
		{Name: "Kingdoms", Visible: true, Count: 1},
		{Name: "Temples", Visible: true, Count: 1},
	}, overlays)
}

func TestClustersOutput(t *testing.T) {
	s := newSession(t)
	fc, err := geo.FeatureCollection([]byte(innsJSON))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Stage("inns", fc))

	// at zoom 0 a pixel spans 256 units and everything collapses into one cluster
	out := s.Clusters(ClusterRequest{Zoom: 0})
	require.Len(t, out.Features, 1)
	assert.Equal(t, true, out.Features[0].Properties["cluster"])
	assert.Equal(t, 3, out.Features[0].Properties["count"])
	assert.Equal(t, []string{"Inns"}, out.Features[0].Properties["groups"])

	out = s.Clusters(ClusterRequest{Zoom: 8})
	require.Len(t, out.Features, 3)
	var popup string
	for _, f := range out.Features {
		assert.NotEmpty(t, f.ID)
		if p, ok := f.Properties["popup"].(string); ok {
			popup = p
		}
	}
	assert.Equal(t, "The Leaping Frog", popup)

	out = s.Clusters(ClusterRequest{Zoom: 8, Hide: []string{"Inns"}})
	require.Len(t, out.Features, 1)
	assert.Equal(t, orb.Point{-5000, 5000}, out.Features[0].Geometry)

	out = s.Clusters(ClusterRequest{Zoom: 8, Bounds: orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}})
	require.Len(t, out.Features, 1)
	assert.Equal(t, orb.Point{0, 0}, out.Features[0].Geometry)
}

func TestClustersCacheInvalidation(t *testing.T) {
	s := newSession(t)
	assert.Empty(t, s.Clusters(ClusterRequest{Zoom: 8}).Features)

	fc, err := geo.FeatureCollection([]byte(innsJSON))
	require.NoError(t, err)
	s.Stage("inns", fc)
	assert.Len(t, s.Clusters(ClusterRequest{Zoom: 8}).Features, 3)

	require.NoError(t, s.SetVisible("Inns", false))
	assert.Len(t, s.Clusters(ClusterRequest{Zoom: 8}).Features, 1)
	assert.False(t, s.Overlays()[0].Visible)

	assert.Error(t, s.SetVisible("Shops", false))
}

func TestSetVisibleWithoutOverlays(t *testing.T) {
	s := newSession(t)
	assert.Empty(t, s.Overlays())
	assert.Error(t, s.SetVisible("Inns", true))
	assert.False(t, s.Collapsed())
}

func TestControlStartsExpanded(t *testing.T) {
	s := newSession(t)
	fc, err := geo.FeatureCollection([]byte(innsJSON))
	require.NoError(t, err)
	s.Stage("inns", fc)

	require.NotNil(t, s.host.Control())
	assert.False(t, s.Collapsed())
	assert.Len(t, s.Overlays(), 1)
}

func TestMeasure(t *testing.T) {
	s := newSession(t)
	m := s.Measure([]geo.LatLng{{Lat: 0, Lng: 0}, {Lat: 30, Lng: 40}})
	assert.InDelta(t, 5000, m.Total, 1e-9)
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	cachedURL := "https://example.com/cities.geojson"
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.CacheName(cachedURL)), []byte(innsJSON), 0644))

	m := config.Map{Locations: []string{
		"inns.geojson",
		"/abs/roads.geojson",
		cachedURL,
		"https://example.com/live.geojson",
	}}

	assert.Equal(t, []string{
		filepath.Join(dir, "inns.geojson"),
		"/abs/roads.geojson",
		filepath.Join(dir, loader.CacheName(cachedURL)),
		"https://example.com/live.geojson",
	}, Sources(m, dir))
}
