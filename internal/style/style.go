// Package style resolves the visual appearance of map features from their properties.
package style

import (
	"fmt"
	"regexp"

	"github.com/woozymasta/fantasymap/internal/geo"

	"github.com/paulmach/orb/geojson"
)

// DefaultIconKey is the marker icon used for groups without their own icon.
const DefaultIconKey = "Default"

// Path is the Leaflet path style of a line or polygon.
type Path struct {
	Color       string  `yaml:"color,omitempty" json:"color"`
	Weight      float64 `yaml:"weight,omitempty" json:"weight"`
	Opacity     float64 `yaml:"opacity,omitempty" json:"opacity"`
	FillColor   string  `yaml:"fill_color,omitempty" json:"fillColor"`
	FillOpacity float64 `yaml:"fill_opacity,omitempty" json:"fillOpacity"`
}

// DefaultPath is used for every key a feature does not set.
var DefaultPath = Path{
	Color:       "#eaeaea",
	Weight:      0.3,
	Opacity:     0,
	FillColor:   "#eaeaea",
	FillOpacity: 0,
}

// Icon is a marker icon with its shadow and anchor geometry in pixels.
type Icon struct {
	URL          string `json:"iconUrl"`
	ShadowURL    string `json:"shadowUrl,omitempty"`
	Size         [2]int `json:"iconSize"`
	ShadowSize   [2]int `json:"shadowSize"`
	Anchor       [2]int `json:"iconAnchor"`
	ShadowAnchor [2]int `json:"shadowAnchor"`
	PopupAnchor  [2]int `json:"popupAnchor"`
}

// Config is the style section of a map configuration.
type Config struct {
	Path        *Path             `yaml:"path,omitempty"`
	Icons       map[string]string `yaml:"icons,omitempty"`
	ShadowURL   string            `yaml:"shadow,omitempty"`
	CustomIcons bool              `yaml:"custom_icons,omitempty"`
}

// Resolver maps feature properties to path styles and marker icons.
type Resolver struct {
	path        Path
	icons       map[string]string
	shadowURL   string
	customIcons bool
}

var colorRe = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+|rgba?\([^)]*\))$`)

// NewResolver validates cfg and builds a resolver.
// Custom icons require an icon for the Default key.
func NewResolver(cfg Config) (*Resolver, error) {
	r := &Resolver{
		path:        DefaultPath,
		icons:       make(map[string]string, len(cfg.Icons)),
		shadowURL:   cfg.ShadowURL,
		customIcons: cfg.CustomIcons,
	}

	if cfg.Path != nil {
		p := *cfg.Path
		if p.Color != "" && !colorRe.MatchString(p.Color) {
			return nil, fmt.Errorf("invalid path color %q", p.Color)
		}
		if p.FillColor != "" && !colorRe.MatchString(p.FillColor) {
			return nil, fmt.Errorf("invalid path fill color %q", p.FillColor)
		}
		if p.Color != "" {
			r.path.Color = p.Color
		}
		if p.FillColor != "" {
			r.path.FillColor = p.FillColor
		}
		if p.Weight > 0 {
			r.path.Weight = p.Weight
		}
		r.path.Opacity = clamp01(p.Opacity)
		r.path.FillOpacity = clamp01(p.FillOpacity)
	}

	for group, url := range cfg.Icons {
		if group == "" || url == "" {
			return nil, fmt.Errorf("icon mapping %q -> %q: group and url must not be empty", group, url)
		}
		r.icons[group] = url
	}

	if r.customIcons {
		if _, ok := r.icons[DefaultIconKey]; !ok {
			return nil, fmt.Errorf("custom icons enabled but no %q icon configured", DefaultIconKey)
		}
	}

	return r, nil
}

// Path returns the style of a line or polygon feature.
// Known property keys override the defaults, unparsable values are ignored.
func (r *Resolver) Path(props geojson.Properties) Path {
	p := r.path

	if c := geo.StringProp(props, "stroke"); colorRe.MatchString(c) {
		p.Color = c
	}
	if c := geo.StringProp(props, "fill"); colorRe.MatchString(c) {
		p.FillColor = c
	}
	if w, ok := geo.FloatProp(props, "stroke-width"); ok && w >= 0 {
		p.Weight = w
	}
	if o, ok := geo.FloatProp(props, "stroke-opacity"); ok {
		p.Opacity = clamp01(o)
	}
	if o, ok := geo.FloatProp(props, "fill-opacity"); ok {
		p.FillOpacity = clamp01(o)
	}

	return p
}

// Icon returns the marker icon for a group, or nil when custom icons are off
// and the client should use its stock marker.
func (r *Resolver) Icon(group string) *Icon {
	if !r.customIcons {
		return nil
	}

	url, ok := r.icons[group]
	if !ok {
		url = r.icons[DefaultIconKey]
	}

	return &Icon{
		URL:          url,
		ShadowURL:    r.shadowURL,
		Size:         [2]int{30, 42},
		ShadowSize:   [2]int{26, 38},
		Anchor:       [2]int{15, 42},
		ShadowAnchor: [2]int{2, 38},
		PopupAnchor:  [2]int{0, -20},
	}
}

// Popup returns the popup text of a feature, "" when it has none.
func (r *Resolver) Popup(props geojson.Properties) string {
	return geo.StringProp(props, geo.PropPopupText)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
