package cluster

import (
	"github.com/rs/zerolog/log"
)

// Organizer migrates staged markers into display groups and the cluster container.
type Organizer struct {
	Options Options
}

// Organize runs one organization pass after a data load.
//
// Every staged marker is moved into the display group of its marker-group, or
// straight into a fresh container when it has none. The container replaces the
// previous one, adopting its ungrouped markers and all registry groups. All
// groups and the container are attached to the host and the toggle control is
// rebuilt; with an empty registry the host shows no control.
//
// Markers already migrated by earlier passes are no longer staged, so passes
// can run any number of times.
func (o *Organizer) Organize(h Host, reg *Registry) *Container {
	container := NewContainer(o.Options)

	var (
		staged    []*StagingLayer
		previous  []*Container
		grouped   int
		ungrouped int
	)

	h.EachLayer(func(l Layer) {
		switch v := l.(type) {
		case *StagingLayer:
			staged = append(staged, v)
		case *Container:
			previous = append(previous, v)
		}
	})

	for _, prev := range previous {
		container.Adopt(prev)
		h.RemoveLayer(prev)
	}
	reg.Each(container.AddGroup)

	for _, layer := range staged {
		layer.EachMarker(func(m *Marker) {
			if key := m.GroupKey(); key != "" {
				ResolveGroup(key, container, reg).Add(m)
				grouped++
				return
			}
			container.Add(m)
			ungrouped++
		})
	}

	reg.Each(func(g *DisplayGroup) {
		h.AddLayer(g)
	})
	h.AddLayer(container)

	if reg.Len() == 0 {
		h.SetControl(nil)
	} else {
		h.SetControl(NewToggleControl(reg.Groups()))
	}

	log.Debug().
		Int("staging_layers", len(staged)).
		Int("grouped", grouped).
		Int("ungrouped", ungrouped).
		Int("groups", reg.Len()).
		Msg("Clusters organized")

	return container
}
