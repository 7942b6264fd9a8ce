// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/woozymasta/fantasymap/internal/cluster"
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/style"

	"gopkg.in/yaml.v3"
)

// Tile formats produced by the tiler and served by the server.
const (
	FormatWebP = "webp"
	FormatPNG  = "png"
)

// Config represents the root configuration file structure.
type Config struct {
	Attribution string        `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	DataDir     string        `yaml:"data_dir,omitempty" json:"-"`
	CacheTTL    time.Duration `yaml:"cache_ttl,omitempty" json:"-"`
	Maps        []Map         `yaml:"maps" json:"maps"`
}

// Map represents a single world map configuration.
type Map struct {
	Index *int `yaml:"index,omitempty" json:"index,omitempty"`

	Name        string   `yaml:"name" json:"name"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	Attribution string   `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"-"`

	// Image is the single source image sliced by the tiler (path or URL).
	Image string      `yaml:"image,omitempty" json:"-"`
	// Parts are stitched into the source image when the map is drawn in pieces.
	Parts []ImagePart `yaml:"parts,omitempty" json:"-"`

	TileFormat string  `yaml:"tile_format,omitempty" json:"tile_format"`
	TileSize   int     `yaml:"tile_size,omitempty" json:"tile_size"`
	Crop       *[4]int `yaml:"crop,omitempty" json:"-"`

	CRS  geo.Dimensions `yaml:"crs,omitempty" json:"crs"`
	View *geo.View      `yaml:"view,omitempty" json:"view"`

	// Locations lists GeoJSON sources: URLs or paths relative to the map data directory.
	Locations []string        `yaml:"locations,omitempty" json:"-"`
	Style     style.Config    `yaml:"style,omitempty" json:"-"`
	Cluster   cluster.Options `yaml:"cluster,omitempty" json:"-"`

	NoTiles bool `yaml:"-" json:"no_tiles,omitempty"`
}

// ImagePart is one piece of a source image drawn in several files. Anchor is
// a pixel of the part showing the same map feature as the anchor of the first part.
type ImagePart struct {
	Image  string `yaml:"image"`
	Anchor [2]int `yaml:"anchor"`
}

// Dir returns the directory holding tiles and cached data of the map.
func (c *Config) Dir(m Map) string {
	return filepath.Join(c.DataDir, m.Name)
}

// TilesDir returns the tile pyramid directory of the map.
func (c *Config) TilesDir(m Map) string {
	return filepath.Join(c.Dir(m), "tiles")
}

// LocationsDir returns the directory of locally cached GeoJSON sources.
func (c *Config) LocationsDir(m Map) string {
	return filepath.Join(c.Dir(m), "data")
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Normalize applies defaults and validates every map.
func (c *Config) Normalize() error {
	if c.DataDir == "" {
		c.DataDir = "maps"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}

	seen := make(map[string]string)
	for i := range c.Maps {
		m := &c.Maps[i]
		if m.Name == "" {
			return fmt.Errorf("map #%d: name is required", i)
		}

		for _, n := range append([]string{m.Name}, m.Aliases...) {
			if owner, ok := seen[n]; ok {
				return fmt.Errorf("map %q: name %q already used by %q", m.Name, n, owner)
			}
			seen[n] = m.Name
		}

		if m.Title == "" {
			m.Title = m.Name
		}
		if m.Attribution == "" {
			m.Attribution = c.Attribution
		}
		if m.TileSize <= 0 {
			m.TileSize = 256
		}
		switch m.TileFormat {
		case "":
			m.TileFormat = FormatWebP
		case FormatWebP, FormatPNG:
		default:
			return fmt.Errorf("map %q: unsupported tile format %q", m.Name, m.TileFormat)
		}

		m.CRS = m.CRS.WithDefaults()
		if err := m.CRS.Validate(); err != nil {
			return fmt.Errorf("map %q: %w", m.Name, err)
		}
		if m.View == nil {
			v := geo.DefaultView
			m.View = &v
		}

		if len(m.Parts) > 0 {
			if m.Image != "" {
				return fmt.Errorf("map %q: image and parts are mutually exclusive", m.Name)
			}
			if len(m.Parts) < 2 {
				return fmt.Errorf("map %q: parts needs at least two images", m.Name)
			}
			for j, p := range m.Parts {
				if p.Image == "" {
					return fmt.Errorf("map %q: part #%d has no image", m.Name, j)
				}
			}
		}

		if _, err := style.NewResolver(m.Style); err != nil {
			return fmt.Errorf("map %q: %w", m.Name, err)
		}
		m.Cluster = m.Cluster.WithDefaults()
	}

	return nil
}

// Lookup returns the map with the given name or alias.
func (c *Config) Lookup(name string) (Map, bool) {
	for _, m := range c.Maps {
		if m.Name == name {
			return m, true
		}
		for _, alias := range m.Aliases {
			if alias == name {
				return m, true
			}
		}
	}
	return Map{}, false
}

// Dimensions returns the CRS of a map from the configuration file at path.
// An empty name selects the only configured map. Without a path the default
// dimensions are returned.
func Dimensions(path, name string) (geo.Dimensions, error) {
	if path == "" {
		return geo.DefaultDimensions(), nil
	}

	cfg, err := Load(path)
	if err != nil {
		return geo.Dimensions{}, err
	}

	if name == "" && len(cfg.Maps) == 1 {
		return cfg.Maps[0].CRS, nil
	}
	m, ok := cfg.Lookup(name)
	if !ok {
		return geo.Dimensions{}, fmt.Errorf("map %q not found in %s", name, path)
	}
	return m.CRS, nil
}
