package cluster

import (
	"sort"

	"github.com/samber/lo"
)

// DisplayGroup is a named, toggleable set of markers sharing one marker-group.
// For clustering it is a child of a Container.
type DisplayGroup struct {
	key       string
	container *Container
	markers   markerSet
}

// LayerName implements Layer.
func (g *DisplayGroup) LayerName() string { return g.key }

// Key returns the marker-group the group was created for.
func (g *DisplayGroup) Key() string { return g.key }

// Container returns the cluster container the group currently belongs to.
func (g *DisplayGroup) Container() *Container { return g.container }

// Add moves a marker into the group.
func (g *DisplayGroup) Add(m *Marker) {
	m.moveTo(g)
	g.markers.add(m)
}

// Markers returns the markers of the group.
func (g *DisplayGroup) Markers() []*Marker { return g.markers.snapshot() }

// Len returns the number of markers in the group.
func (g *DisplayGroup) Len() int { return g.markers.len() }

func (g *DisplayGroup) detach(m *Marker) { g.markers.remove(m) }

// Registry maps marker-group keys to their display groups. It lives as long as
// the map session. Only ResolveGroup adds entries; nothing removes them.
type Registry struct {
	groups map[string]*DisplayGroup
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*DisplayGroup)}
}

// Lookup returns the group registered for key.
func (r *Registry) Lookup(key string) (*DisplayGroup, bool) {
	g, ok := r.groups[key]
	return g, ok
}

// Len returns the number of registered groups.
func (r *Registry) Len() int { return len(r.groups) }

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := lo.Keys(r.groups)
	sort.Strings(keys)
	return keys
}

// Groups returns a name to group mapping copy.
func (r *Registry) Groups() map[string]*DisplayGroup {
	return lo.Assign(r.groups)
}

// Each calls fn for every group in key order.
func (r *Registry) Each(fn func(*DisplayGroup)) {
	for _, k := range r.Keys() {
		fn(r.groups[k])
	}
}

// ResolveGroup returns the display group for key, creating it as a child of
// container when the registry has none yet. Existing groups are returned as is.
func ResolveGroup(key string, container *Container, reg *Registry) *DisplayGroup {
	if g, ok := reg.groups[key]; ok {
		return g
	}

	g := &DisplayGroup{key: key}
	reg.groups[key] = g
	container.AddGroup(g)
	return g
}
