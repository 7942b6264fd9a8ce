// Package session ties a configured map to its loaded and organized features.
package session

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/fantasymap/internal/cluster"
	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/loader"
	"github.com/woozymasta/fantasymap/internal/style"

	"github.com/jellydator/ttlcache/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Session holds the map host and group registry of one world map.
// Organize passes are serialized; readers may run concurrently with loads.
type Session struct {
	Map config.Map

	mu         sync.RWMutex
	host       *cluster.MapHost
	registry   *cluster.Registry
	container  *cluster.Container
	organizer  *cluster.Organizer
	resolver   *style.Resolver
	generation uint64

	cache *ttlcache.Cache[string, *geojson.FeatureCollection]
}

// LoadSummary reports the outcome of Load.
type LoadSummary struct {
	Loaded   int
	Failed   int
	Features int
}

// New creates an empty session for m.
func New(m config.Map, cacheTTL time.Duration) (*Session, error) {
	r, err := style.NewResolver(m.Style)
	if err != nil {
		return nil, fmt.Errorf("map %q: %w", m.Name, err)
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *geojson.FeatureCollection](cacheTTL),
		ttlcache.WithCapacity[string, *geojson.FeatureCollection](512),
	)
	go cache.Start()

	return &Session{
		Map:       m,
		host:      cluster.NewMapHost(),
		registry:  cluster.NewRegistry(),
		organizer: &cluster.Organizer{Options: m.Cluster},
		resolver:  r,
		cache:     cache,
	}, nil
}

// Sources resolves the configured locations. Local names are looked up in
// dataDir, remote sources are replaced by their cached copy when one exists.
func Sources(m config.Map, dataDir string) []string {
	return lo.Map(m.Locations, func(src string, _ int) string {
		if loader.IsRemote(src) {
			cached := filepath.Join(dataDir, loader.CacheName(src))
			if _, err := os.Stat(cached); err == nil {
				return cached
			}
			return src
		}
		if filepath.IsAbs(src) {
			return src
		}
		return filepath.Join(dataDir, src)
	})
}

// Load fetches sources concurrently and runs one organize pass per completed
// fetch, in completion order. Failed sources are logged and skipped.
func (s *Session) Load(ctx context.Context, client *http.Client, sources []string) LoadSummary {
	var sum LoadSummary

	for res := range loader.FetchAll(ctx, client, sources) {
		if !res.OK() {
			sum.Failed++
			log.Warn().
				Err(res.Err).
				Str("map", s.Map.Name).
				Str("source", res.Source).
				Msg("Data source not loaded")
			continue
		}

		n := s.Stage(res.Source, res.Collection)
		sum.Loaded++
		sum.Features += n

		log.Debug().
			Str("map", s.Map.Name).
			Str("source", res.Source).
			Int("features", n).
			Dur("duration", res.Duration).
			Msg("Data source loaded")
	}

	log.Info().
		Str("map", s.Map.Name).
		Int("loaded", sum.Loaded).
		Int("failed", sum.Failed).
		Int("features", sum.Features).
		Int("groups", s.GroupCount()).
		Msg("Map data loaded")

	return sum
}

// Stage adds a loaded collection as a staging layer and organizes the map.
// It returns the number of staged markers.
func (s *Session) Stage(source string, fc *geojson.FeatureCollection) int {
	layer := cluster.NewStagingLayer(source, fc, s.resolver)
	n := layer.Len()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.host.AddLayer(layer)
	s.container = s.organizer.Organize(s.host, s.registry)
	// all markers migrated, the empty staging layer is dropped
	s.host.RemoveLayer(layer)
	s.generation++
	s.cache.DeleteAll()

	return n
}

// Generation counts organize passes.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// GroupCount returns the number of display groups.
func (s *Session) GroupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Len()
}

// Overlay describes one toggle control entry.
type Overlay struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Count   int    `json:"count"`
}

// Overlays lists the toggle control entries. It is empty when there is no control.
func (s *Session) Overlays() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.host.Control().Entries()
	out := make([]Overlay, 0, len(entries))
	for _, e := range entries {
		out = append(out, Overlay{
			Name:    e.Name,
			Visible: s.host.HasLayer(e.Group),
			Count:   e.Group.Len(),
		})
	}
	return out
}

// Collapsed reports whether the toggle control starts collapsed.
func (s *Session) Collapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctl := s.host.Control()
	return ctl != nil && ctl.Collapsed
}

// SetVisible shows or hides an overlay for every client of the session.
func (s *Session) SetVisible(name string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctl := s.host.Control()
	if ctl == nil {
		return fmt.Errorf("map %q has no overlays", s.Map.Name)
	}
	if err := ctl.SetVisible(s.host, name, visible); err != nil {
		return err
	}
	s.cache.DeleteAll()
	return nil
}

// ClusterRequest selects the markers of a cluster query.
type ClusterRequest struct {
	Zoom   int
	Bounds orb.Bound
	Hide   []string
}

func (r ClusterRequest) key(gen uint64) string {
	hide := lo.Uniq(r.Hide)
	return fmt.Sprintf("%d|%d|%v|%v|%s", gen, r.Zoom, r.Bounds.Min, r.Bounds.Max, strings.Join(hide, ","))
}

// Clusters returns the clustered markers and shapes as GeoJSON.
func (s *Session) Clusters(req ClusterRequest) *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := req.key(s.generation)
	if item := s.cache.Get(key); item != nil {
		return item.Value()
	}

	fc := geojson.NewFeatureCollection()
	if s.container == nil {
		return fc
	}

	hidden := lo.SliceToMap(req.Hide, func(n string) (string, struct{}) { return n, struct{}{} })
	res := s.container.Clusters(s.Map.CRS, cluster.Query{
		Zoom:   float64(req.Zoom),
		Bounds: req.Bounds,
		Visible: func(g *cluster.DisplayGroup) bool {
			if _, ok := hidden[g.Key()]; ok {
				return false
			}
			return s.host.HasLayer(g)
		},
	})

	for _, cl := range res.Clusters {
		fc.Append(clusterFeature(cl))
	}
	for _, m := range res.Shapes {
		fc.Append(markerFeature(m))
	}

	s.cache.Set(key, fc, ttlcache.DefaultTTL)
	return fc
}

// Measure runs the ruler over a path.
func (s *Session) Measure(path []geo.LatLng) geo.Measurement {
	return s.Map.CRS.PathLength(path)
}

// Close stops the query cache expiration loop.
func (s *Session) Close() {
	s.cache.Stop()
}

func clusterFeature(cl cluster.Cluster) *geojson.Feature {
	if cl.Single() {
		return markerFeature(cl.Markers[0])
	}

	f := geojson.NewFeature(cl.Center.Point())
	f.BBox = geojson.NewBBox(cl.Bounds)
	f.Properties["cluster"] = true
	f.Properties["count"] = cl.Count()
	f.Properties["groups"] = lo.Uniq(lo.FilterMap(cl.Markers, func(m *cluster.Marker, _ int) (string, bool) {
		k := m.GroupKey()
		return k, k != ""
	}))
	return f
}

func markerFeature(m *cluster.Marker) *geojson.Feature {
	f := geojson.NewFeature(m.Feature.Geometry)
	f.ID = m.ID
	for k, v := range m.Feature.Properties {
		f.Properties[k] = v
	}
	if m.Popup != "" {
		f.Properties["popup"] = m.Popup
	}
	if m.Icon != nil {
		f.Properties["icon"] = m.Icon
	}
	if m.Path != nil {
		f.Properties["style"] = m.Path
	}
	return f
}
