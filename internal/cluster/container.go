package cluster

import (
	"math"
	"sort"

	"github.com/woozymasta/fantasymap/internal/geo"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// DefaultRadius is the maximum distance in pixels between a cluster center and
// its markers.
const DefaultRadius = 80.0

// Options control how a Container aggregates markers.
type Options struct {
	Radius float64 `yaml:"radius,omitempty"`
	// DisableAtZoom turns clustering off from this zoom level on. 0 keeps it on.
	DisableAtZoom int `yaml:"disable_clustering_at_zoom,omitempty"`
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Radius <= 0 {
		o.Radius = DefaultRadius
	}
	return o
}

// Container aggregates nearby markers of all its groups and its ungrouped markers.
type Container struct {
	opts    Options
	groups  []*DisplayGroup
	markers markerSet
}

// NewContainer creates an empty cluster container.
func NewContainer(opts Options) *Container {
	return &Container{opts: opts.WithDefaults()}
}

// LayerName implements Layer.
func (c *Container) LayerName() string { return "clusters" }

// Add moves an ungrouped marker into the container.
func (c *Container) Add(m *Marker) {
	m.moveTo(c)
	c.markers.add(m)
}

// AddGroup makes g a child of the container, leaving its previous container.
func (c *Container) AddGroup(g *DisplayGroup) {
	if g.container == c {
		return
	}
	if g.container != nil {
		g.container.removeGroup(g)
	}
	g.container = c
	c.groups = append(c.groups, g)
}

// Adopt takes over the ungrouped markers and the child groups of prev.
func (c *Container) Adopt(prev *Container) {
	if prev == nil || prev == c {
		return
	}
	for _, m := range prev.markers.snapshot() {
		c.Add(m)
	}
	for _, g := range append([]*DisplayGroup(nil), prev.groups...) {
		c.AddGroup(g)
	}
}

// Groups returns the child groups.
func (c *Container) Groups() []*DisplayGroup {
	return append([]*DisplayGroup(nil), c.groups...)
}

// Markers returns the ungrouped markers held directly by the container.
func (c *Container) Markers() []*Marker { return c.markers.snapshot() }

// Len returns the number of ungrouped markers.
func (c *Container) Len() int { return c.markers.len() }

func (c *Container) removeGroup(g *DisplayGroup) {
	for i, cg := range c.groups {
		if cg == g {
			c.groups = append(c.groups[:i], c.groups[i+1:]...)
			return
		}
	}
}

func (c *Container) detach(m *Marker) { c.markers.remove(m) }

// Cluster is either a single marker or an aggregate of nearby point markers.
type Cluster struct {
	Center  geo.LatLng
	Bounds  orb.Bound
	Markers []*Marker
}

// Count returns the number of markers in the cluster.
func (cl Cluster) Count() int { return len(cl.Markers) }

// Single reports whether the cluster holds just one marker.
func (cl Cluster) Single() bool { return len(cl.Markers) == 1 }

// Query selects what Clusters computes.
type Query struct {
	Zoom float64
	// Bounds limits the result to markers inside. Empty bounds select everything.
	Bounds orb.Bound
	// Visible reports whether a group takes part. nil means all groups do.
	Visible func(*DisplayGroup) bool
}

// Result of a cluster query. Shapes are never clustered.
type Result struct {
	Clusters []Cluster
	Shapes   []*Marker
}

type indexed struct {
	m   *Marker
	px  orb.Point
	seq int
}

func (i *indexed) Bounds() rtreego.Rect {
	return rtreego.Point{i.px[0], i.px[1]}.ToRect(0.5)
}

// Clusters aggregates the visible markers in pixel space at the query zoom.
// Markers are visited in a stable order and each unassigned marker seeds a
// cluster that takes every unassigned marker within the radius.
func (c *Container) Clusters(d geo.Dimensions, q Query) Result {
	var (
		res    Result
		points []*indexed
	)

	all := q.Bounds.IsZero()
	take := func(m *Marker) {
		if !m.IsPoint() {
			if all || q.Bounds.Intersects(m.Feature.Geometry.Bound()) {
				res.Shapes = append(res.Shapes, m)
			}
			return
		}
		pos := m.Position()
		if !all && !q.Bounds.Contains(pos.Point()) {
			return
		}
		points = append(points, &indexed{m: m, px: d.LatLngToPixel(pos, q.Zoom), seq: len(points)})
	}

	for _, m := range c.markers.list {
		take(m)
	}
	for _, g := range c.groups {
		if q.Visible != nil && !q.Visible(g) {
			continue
		}
		for _, m := range g.markers.list {
			take(m)
		}
	}

	if len(points) == 0 {
		return res
	}

	if c.opts.DisableAtZoom > 0 && q.Zoom >= float64(c.opts.DisableAtZoom) {
		for _, p := range points {
			res.Clusters = append(res.Clusters, singleCluster(p.m))
		}
		return res
	}

	tree := rtreego.NewTree(2, 25, 50)
	for _, p := range points {
		tree.Insert(p)
	}

	r := c.opts.Radius
	assigned := make([]bool, len(points))
	for _, seed := range points {
		if assigned[seed.seq] {
			continue
		}

		search, _ := rtreego.NewRect(rtreego.Point{seed.px[0] - r, seed.px[1] - r}, []float64{2 * r, 2 * r})
		near := tree.SearchIntersect(search)

		members := make([]*indexed, 0, len(near))
		for _, s := range near {
			p := s.(*indexed)
			if assigned[p.seq] || math.Hypot(p.px[0]-seed.px[0], p.px[1]-seed.px[1]) > r {
				continue
			}
			members = append(members, p)
		}
		sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

		cl := Cluster{Markers: make([]*Marker, 0, len(members))}
		var sumLat, sumLng float64
		for i, p := range members {
			assigned[p.seq] = true
			pos := p.m.Position()
			sumLat += pos.Lat
			sumLng += pos.Lng
			if i == 0 {
				cl.Bounds = pos.Point().Bound()
			} else {
				cl.Bounds = cl.Bounds.Extend(pos.Point())
			}
			cl.Markers = append(cl.Markers, p.m)
		}
		n := float64(len(members))
		cl.Center = geo.LatLng{Lat: sumLat / n, Lng: sumLng / n}
		res.Clusters = append(res.Clusters, cl)
	}

	return res
}

func singleCluster(m *Marker) Cluster {
	pos := m.Position()
	return Cluster{Center: pos, Bounds: pos.Point().Bound(), Markers: []*Marker{m}}
}
