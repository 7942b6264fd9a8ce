// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/session"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const etagCap = 64

// Routes registers every handler on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/maps", s.HandleMapsList)
	mux.HandleFunc("GET /api/maps/{map}/view", s.HandleView)
	mux.HandleFunc("GET /api/maps/{map}/layers", s.HandleLayers)
	mux.HandleFunc("PUT /api/maps/{map}/layers/{layer}", s.HandleLayerToggle)
	mux.HandleFunc("GET /api/maps/{map}/clusters", s.HandleClusters)
	mux.HandleFunc("GET /api/maps/{map}/measure", s.HandleMeasure)
	mux.HandleFunc("GET /maps/{map}/tiles/{z}/{x}/{y}", s.HandleTile)
	mux.HandleFunc("GET /maps/{map}/data/{file}", s.HandleData)
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	mux.HandleFunc("GET /", s.HandleIndex)
	return mux
}

type mapInfo struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Attribution string         `json:"attribution,omitempty"`
	TileFormat  string         `json:"tile_format"`
	TileSize    int            `json:"tile_size"`
	CRS         geo.Dimensions `json:"crs"`
	View        *geo.View      `json:"view"`
	Bounds      [2]geo.LatLng  `json:"bounds"`
	NoTiles     bool           `json:"no_tiles,omitempty"`
	Groups      int            `json:"groups"`
}

// HandleMapsList serves the JSON configuration of available maps.
func (s *ServerContext) HandleMapsList(w http.ResponseWriter, r *http.Request) {
	list := make([]mapInfo, 0, len(s.Config.Maps))
	for _, m := range s.Config.Maps {
		b := m.CRS.Bounds()
		info := mapInfo{
			Name:        m.Name,
			Title:       m.Title,
			Attribution: m.Attribution,
			TileFormat:  m.TileFormat,
			TileSize:    m.TileSize,
			CRS:         m.CRS,
			View:        m.View,
			Bounds:      [2]geo.LatLng{geo.FromPoint(b.Min), geo.FromPoint(b.Max)},
			NoTiles:     m.NoTiles,
		}
		if sess, ok := s.Sessions[m.Name]; ok {
			info.Groups = sess.GroupCount()
		}
		list = append(list, info)
	}

	writeJSON(w, http.StatusOK, list)
}

// HandleView resolves the initial viewport from lat, lng and zoom query parameters.
func (s *ServerContext) HandleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	fallback := geo.DefaultView
	if sess.Map.View != nil {
		fallback = *sess.Map.View
	}
	writeJSON(w, http.StatusOK, geo.ViewFromQuery(r.URL.Query(), fallback))
}

type layersResponse struct {
	Collapsed bool              `json:"collapsed"`
	Overlays  []session.Overlay `json:"overlays"`
}

func layers(sess *session.Session) layersResponse {
	return layersResponse{Collapsed: sess.Collapsed(), Overlays: sess.Overlays()}
}

// HandleLayers serves the toggle control of a map.
func (s *ServerContext) HandleLayers(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, layers(sess))
}

// HandleLayerToggle shows or hides an overlay: PUT ...?visible=false.
func (s *ServerContext) HandleLayerToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	visible := true
	if v := r.URL.Query().Get("visible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid visible %q", v))
			return
		}
		visible = b
	}

	if err := sess.SetVisible(r.PathValue("layer"), visible); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, layers(sess))
}

// HandleClusters serves clustered markers as GeoJSON.
// Query: zoom, bbox=minLng,minLat,maxLng,maxLat, hide=group,group.
func (s *ServerContext) HandleClusters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	req := session.ClusterRequest{Zoom: geo.DefaultView.Zoom}
	if sess.Map.View != nil {
		req.Zoom = sess.Map.View.Zoom
	}

	if z := q.Get("zoom"); z != "" {
		zoom, err := strconv.Atoi(z)
		if err != nil || zoom < 0 || zoom > 30 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid zoom %q", z))
			return
		}
		req.Zoom = zoom
	}

	if bbox := q.Get("bbox"); bbox != "" {
		b, err := parseBBox(bbox)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Bounds = b
	}

	if hide := q.Get("hide"); hide != "" {
		req.Hide = lo.Compact(lo.Map(strings.Split(hide, ","), func(name string, _ int) string {
			return strings.TrimSpace(name)
		}))
	}

	fc := sess.Clusters(req)
	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

// HandleMeasure measures a path with the ruler: path=lat,lng|lat,lng.
func (s *ServerContext) HandleMeasure(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	path, err := geo.ParsePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(path) < 2 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path needs at least two positions"))
		return
	}

	writeJSON(w, http.StatusOK, sess.Measure(path))
}

// HandleTile serves a tile from disk, or a transparent tile outside the pyramid.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	m := sess.Map

	yName, ext, _ := strings.Cut(r.PathValue("y"), ".")
	if ext != m.TileFormat {
		http.NotFound(w, r)
		return
	}

	// only integers reach the filesystem
	coords := make([]string, 0, 3)
	for _, v := range []string{r.PathValue("z"), r.PathValue("x"), yName} {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.NotFound(w, r)
			return
		}
		coords = append(coords, strconv.Itoa(n))
	}

	path := filepath.Join(s.Config.TilesDir(m), coords[0], coords[1], coords[2]+"."+ext)
	if s.serveFile(w, r, path, "image/"+ext) {
		return
	}

	w.Header().Set("Content-Type", "image/"+ext)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTiles[ext])
}

// HandleData serves a cached GeoJSON source of a map.
func (s *ServerContext) HandleData(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Session(r.PathValue("map"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	file := r.PathValue("file")
	if !strings.HasSuffix(file, ".geojson") || file != filepath.Base(file) || strings.HasPrefix(file, ".") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.Config.LocationsDir(sess.Map), file)
	if !s.serveFile(w, r, path, "application/geo+json") {
		http.NotFound(w, r)
	}
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: expected minLng,minLat,maxLng,maxLat", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: min exceeds max", s)
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
