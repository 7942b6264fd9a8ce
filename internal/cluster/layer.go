// Package cluster organizes loaded map features into toggleable display groups
// and a shared spatial cluster container.
package cluster

import (
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/style"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Layer is anything that can be attached to a Host.
type Layer interface {
	// LayerName identifies the layer in logs and in the toggle control.
	LayerName() string
}

// holder is a layer that owns markers.
type holder interface {
	Layer
	detach(m *Marker)
}

// Marker is the visual representation of one feature. Points carry an icon,
// lines and polygons carry a path style.
type Marker struct {
	ID      string
	Feature *geojson.Feature
	Icon    *style.Icon
	Path    *style.Path
	Popup   string

	owner holder
}

// NewMarker builds the marker of a feature using the style resolver.
func NewMarker(f *geojson.Feature, r *style.Resolver) *Marker {
	m := &Marker{
		ID:      uuid.NewString(),
		Feature: f,
		Popup:   r.Popup(f.Properties),
	}

	if m.IsPoint() {
		m.Icon = r.Icon(geo.GroupKey(f))
	} else {
		p := r.Path(f.Properties)
		m.Path = &p
	}

	return m
}

// IsPoint reports whether the marker is clusterable.
func (m *Marker) IsPoint() bool {
	_, ok := m.Feature.Geometry.(orb.Point)
	return ok
}

// Position returns the location of a point marker.
func (m *Marker) Position() geo.LatLng {
	p, _ := m.Feature.Geometry.(orb.Point)
	return geo.FromPoint(p)
}

// GroupKey returns the marker-group of the underlying feature.
func (m *Marker) GroupKey() string {
	return geo.GroupKey(m.Feature)
}

// Owner returns the layer currently holding the marker.
func (m *Marker) Owner() Layer {
	if m.owner == nil {
		return nil
	}
	return m.owner
}

// moveTo transfers ownership, removing the marker from its previous holder.
func (m *Marker) moveTo(h holder) {
	if m.owner == h {
		return
	}
	if m.owner != nil {
		m.owner.detach(m)
	}
	m.owner = h
}

// markerSet is an insertion-ordered set of markers.
type markerSet struct {
	list  []*Marker
	index map[*Marker]int
}

func (s *markerSet) add(m *Marker) bool {
	if s.index == nil {
		s.index = make(map[*Marker]int)
	}
	if _, ok := s.index[m]; ok {
		return false
	}
	s.index[m] = len(s.list)
	s.list = append(s.list, m)
	return true
}

func (s *markerSet) remove(m *Marker) {
	i, ok := s.index[m]
	if !ok {
		return
	}
	copy(s.list[i:], s.list[i+1:])
	s.list[len(s.list)-1] = nil
	s.list = s.list[:len(s.list)-1]
	delete(s.index, m)
	for j := i; j < len(s.list); j++ {
		s.index[s.list[j]] = j
	}
}

func (s *markerSet) len() int { return len(s.list) }

// snapshot returns a copy so callers may move markers while iterating.
func (s *markerSet) snapshot() []*Marker {
	out := make([]*Marker, len(s.list))
	copy(out, s.list)
	return out
}

// StagingLayer holds the markers of one freshly loaded data source until the
// organizer migrates them.
type StagingLayer struct {
	source  string
	markers markerSet
}

// NewStagingLayer creates a staging layer with a marker per feature.
func NewStagingLayer(source string, fc *geojson.FeatureCollection, r *style.Resolver) *StagingLayer {
	l := &StagingLayer{source: source}
	if fc == nil {
		return l
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		l.Add(NewMarker(f, r))
	}
	return l
}

// LayerName implements Layer.
func (l *StagingLayer) LayerName() string { return l.source }

// Add stages a marker.
func (l *StagingLayer) Add(m *Marker) {
	m.moveTo(l)
	l.markers.add(m)
}

// EachMarker calls fn for every staged marker. fn may move the marker away.
func (l *StagingLayer) EachMarker(fn func(*Marker)) {
	for _, m := range l.markers.snapshot() {
		fn(m)
	}
}

// Len returns the number of markers still staged.
func (l *StagingLayer) Len() int { return l.markers.len() }

func (l *StagingLayer) detach(m *Marker) { l.markers.remove(m) }
