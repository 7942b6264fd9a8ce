package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const innsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [35, -38]}, "properties": {"marker-group": "Inns", "popup-text": "The Leaping Frog"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [40, -30]}, "properties": {}}
  ]
}`

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/inns.geojson":
			w.Header().Set("Content-Type", "application/geo+json")
			_, _ = w.Write([]byte(innsJSON))
		case "/broken.geojson":
			_, _ = w.Write([]byte(`{"type":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := Fetch(context.Background(), srv.Client(), srv.URL+"/inns.geojson")
	require.NoError(t, res.Err)
	require.True(t, res.OK())
	assert.Len(t, res.Collection.Features, 2)

	res = Fetch(context.Background(), srv.Client(), srv.URL+"/missing.geojson")
	assert.False(t, res.OK())
	assert.ErrorContains(t, res.Err, "status 404")

	res = Fetch(context.Background(), srv.Client(), srv.URL+"/broken.geojson")
	assert.False(t, res.OK())
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inns.geojson")
	require.NoError(t, os.WriteFile(path, []byte(innsJSON), 0644))

	res := Fetch(context.Background(), http.DefaultClient, path)
	require.NoError(t, res.Err)
	assert.Len(t, res.Collection.Features, 2)

	res = Fetch(context.Background(), http.DefaultClient, filepath.Join(t.TempDir(), "none.geojson"))
	assert.Error(t, res.Err)
}

func TestFetchAll(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.geojson")
	require.NoError(t, os.WriteFile(good, []byte(innsJSON), 0644))

	sources := []string{good, filepath.Join(dir, "bad.geojson"), good}

	var ok, failed int
	for res := range FetchAll(context.Background(), http.DefaultClient, sources) {
		if res.OK() {
			ok++
		} else {
			failed++
		}
	}

	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.geojson"))
	assert.True(t, IsRemote("http://example.com/a.geojson"))
	assert.False(t, IsRemote("maps/aunea/data/a.geojson"))
	assert.False(t, IsRemote("httpdocs/a.geojson"))
}

func TestCacheName(t *testing.T) {
	a := CacheName("https://example.com/maps/inns.geojson")
	assert.Regexp(t, `^inns-[0-9a-f]{8}\.geojson$`, a)
	assert.Equal(t, a, CacheName("https://example.com/maps/inns.geojson"))
	assert.NotEqual(t, a, CacheName("https://mirror.example.com/maps/inns.geojson"))
	assert.Regexp(t, `^source-[0-9a-f]{8}\.geojson$`, CacheName("https://example.com/"))
}
