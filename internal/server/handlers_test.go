package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/session"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const innsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"marker-group":"Inns","popup-text":"The Leaping Frog"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[5000,5000]},"properties":{"marker-group":"Inns"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-5000,5000]},"properties":{"marker-group":"Temples"}}
]}`

func newTestServer(t *testing.T) (*ServerContext, http.Handler) {
	t.Helper()

	cfg := &config.Config{
		DataDir: t.TempDir(),
		Maps: []config.Map{
			{Name: "aunea", Aliases: []string{"a"}, TileFormat: config.FormatPNG},
			{Name: "islands"},
		},
	}
	require.NoError(t, cfg.Normalize())
	require.NoError(t, os.MkdirAll(cfg.TilesDir(cfg.Maps[0]), 0755))

	srv := NewServerContext(cfg)
	t.Cleanup(srv.Close)

	fc, err := geo.FeatureCollection([]byte(innsJSON))
	require.NoError(t, err)
	srv.Sessions["aunea"].Stage("inns", fc)

	return srv, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMapsList(t *testing.T) {
	srv, h := newTestServer(t)
	assert.False(t, srv.Config.Maps[0].NoTiles)
	assert.True(t, srv.Config.Maps[1].NoTiles)

	rec := do(t, h, http.MethodGet, "/api/maps")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []mapInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "aunea", list[0].Name)
	assert.Equal(t, 2, list[0].Groups)
	assert.Equal(t, geo.LatLng{Lat: -25000, Lng: -25000}, list[0].Bounds[0])
	assert.Equal(t, geo.LatLng{Lat: 25000, Lng: 25000}, list[0].Bounds[1])
	assert.True(t, list[1].NoTiles)
	assert.Zero(t, list[1].Groups)
}

func TestView(t *testing.T) {
	_, h := newTestServer(t)

	var v geo.View
	rec := do(t, h, http.MethodGet, "/api/maps/a/view?lat=120&lng=-40.7&zoom=4")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, geo.View{Center: geo.LatLng{Lat: 120, Lng: -40}, Zoom: 4}, v)

	rec = do(t, h, http.MethodGet, "/api/maps/aunea/view")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, geo.DefaultView, v)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/maps/nowhere/view").Code)
}

func TestLayersAndToggle(t *testing.T) {
	_, h := newTestServer(t)

	var resp layersResponse
	rec := do(t, h, http.MethodGet, "/api/maps/aunea/layers")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, layersResponse{
		Collapsed: false,
		Overlays: []session.Overlay{
			{Name: "Inns", Visible: true, Count: 2},
			{Name: "Temples", Visible: true, Count: 1},
		},
	}, resp)
	// the control starts expanded
	assert.Contains(t, rec.Body.String(), `"collapsed":false`)

	rec = do(t, h, http.MethodPut, "/api/maps/aunea/layers/Inns?visible=false")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Overlays[0].Visible)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/maps/aunea/layers/Inns?visible=maybe").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/api/maps/aunea/layers/Castles").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/api/maps/islands/layers/Inns").Code)

	// an empty registry has no control
	rec = do(t, h, http.MethodGet, "/api/maps/islands/layers")
	assert.JSONEq(t, `{"collapsed":false,"overlays":[]}`, rec.Body.String())
}

func TestClusters(t *testing.T) {
	_, h := newTestServer(t)

	decode := func(rec *httptest.ResponseRecorder) *geojson.FeatureCollection {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
		fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
		require.NoError(t, err)
		return fc
	}

	fc := decode(do(t, h, http.MethodGet, "/api/maps/aunea/clusters?zoom=8"))
	assert.Len(t, fc.Features, 3)

	fc = decode(do(t, h, http.MethodGet, "/api/maps/aunea/clusters?zoom=8&hide=Inns,%20"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Temples", fc.Features[0].Properties[geo.PropMarkerGroup])

	fc = decode(do(t, h, http.MethodGet, "/api/maps/aunea/clusters?zoom=8&bbox=-100,-100,100,100"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "The Leaping Frog", fc.Features[0].Properties["popup"])

	fc = decode(do(t, h, http.MethodGet, "/api/maps/aunea/clusters?zoom=0"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, true, fc.Features[0].Properties["cluster"])

	for _, q := range []string{"zoom=x", "zoom=-1", "bbox=1,2,3", "bbox=5,5,0,0", "bbox=a,b,c,d"} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/maps/aunea/clusters?"+q).Code, q)
	}
}

func TestMeasure(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/maps/aunea/measure?path=0,0|30,40|30,100")
	require.Equal(t, http.StatusOK, rec.Code)

	var m geo.Measurement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Len(t, m.Segments, 2)
	assert.InDelta(t, 5000, m.Segments[0].Length, 1e-9)
	assert.InDelta(t, 11000, m.Total, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/maps/aunea/measure?path=0,0").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/maps/aunea/measure?path=0,x|1,1").Code)

	// the page sends the path URL encoded
	rec = do(t, h, http.MethodGet, "/api/maps/aunea/measure?path=0%2C0%7C30%2C40")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.InDelta(t, 5000, m.Total, 1e-9)

	// a bare ';' makes the query parser drop the pair
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/maps/aunea/measure?path=0,0;30,40").Code)
}

func TestTiles(t *testing.T) {
	srv, h := newTestServer(t)

	tile := filepath.Join(srv.Config.TilesDir(srv.Config.Maps[0]), "3", "1", "2.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(tile), 0755))
	require.NoError(t, os.WriteFile(tile, []byte("tile"), 0644))

	rec := do(t, h, http.MethodGet, "/maps/aunea/tiles/3/1/2.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tile", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/maps/aunea/tiles/3/1/2.png", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	// outside the pyramid
	rec = do(t, h, http.MethodGet, "/maps/aunea/tiles/3/0/0.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, srv.TransparentTiles[config.FormatPNG], rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/tiles/3/1/2.webp").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/tiles/3/x/2.png").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/tiles/3/-1/2.png").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/nowhere/tiles/3/1/2.png").Code)
}

func TestData(t *testing.T) {
	srv, h := newTestServer(t)

	dir := srv.Config.LocationsDir(srv.Config.Maps[0])
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inns.geojson"), []byte(innsJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("secret"), 0644))

	rec := do(t, h, http.MethodGet, "/maps/a/data/inns.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, innsJSON, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/data/notes.txt").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/data/missing.geojson").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/maps/aunea/data/.geojson").Code)
}

func TestIndexAndFavicon(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<div id=")
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = do(t, h, http.MethodGet, "/favicon.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/robots.txt").Code)
}

func TestRequestLoggerCapturesStatus(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
