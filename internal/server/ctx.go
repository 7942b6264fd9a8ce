package server

import (
	"bytes"
	"image"
	"os"
	"sort"

	"github.com/woozymasta/fantasymap/assets"
	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/processor"
	"github.com/woozymasta/fantasymap/internal/session"

	"github.com/rs/zerolog/log"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config           *config.Config
	MapNameResolver  map[string]string
	Sessions         map[string]*session.Session
	IndexHTML        []byte
	Favicon          []byte
	TransparentTiles map[string][]byte
}

// NewServerContext initializes the context and processes the map configuration.
// Maps without a tiles directory are kept and flagged NoTiles.
func NewServerContext(cfg *config.Config) *ServerContext {
	log.Info().Int("config_maps_count", len(cfg.Maps)).Msg("Initializing server context")

	resolver := make(map[string]string)
	sessions := make(map[string]*session.Session, len(cfg.Maps))
	validMaps := make([]config.Map, 0, len(cfg.Maps))

	for i := range cfg.Maps {
		world := &cfg.Maps[i]

		tilesDir := cfg.TilesDir(*world)
		if _, err := os.Stat(tilesDir); os.IsNotExist(err) {
			world.NoTiles = true
			log.Warn().
				Str("map", world.Name).
				Str("path", tilesDir).
				Msg("Tiles directory not found, serving overlays only")
		}

		s, err := session.New(*world, cfg.CacheTTL)
		if err != nil {
			log.Error().Err(err).Str("map", world.Name).Msg("Skipping map: invalid style configuration")
			continue
		}
		sessions[world.Name] = s

		resolver[world.Name] = world.Name
		for _, alias := range world.Aliases {
			resolver[alias] = world.Name
		}

		log.Debug().
			Str("map", world.Name).
			Bool("tiles", !world.NoTiles).
			Int("sources", len(world.Locations)).
			Msg("Map validated and added to context")

		validMaps = append(validMaps, *world)
	}

	cfg.Maps = validMaps

	sort.Slice(cfg.Maps, func(i, j int) bool {
		idxI, idxJ := 999999, 999999
		if cfg.Maps[i].Index != nil {
			idxI = *cfg.Maps[i].Index
		}
		if cfg.Maps[j].Index != nil {
			idxJ = *cfg.Maps[j].Index
		}
		if idxI != idxJ {
			return idxI < idxJ
		}

		return cfg.Maps[i].Name < cfg.Maps[j].Name
	})

	log.Info().
		Int("valid_maps_count", len(cfg.Maps)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:           cfg,
		IndexHTML:        assets.Index,
		Favicon:          assets.Favicon,
		TransparentTiles: transparentTiles(),
		MapNameResolver:  resolver,
		Sessions:         sessions,
	}
}

// Session returns the session of a map name or alias.
func (s *ServerContext) Session(name string) (*session.Session, bool) {
	canonical, ok := s.MapNameResolver[name]
	if !ok {
		return nil, false
	}
	sess, ok := s.Sessions[canonical]
	return sess, ok
}

// Close releases all sessions.
func (s *ServerContext) Close() {
	for _, sess := range s.Sessions {
		sess.Close()
	}
}

func transparentTiles() map[string][]byte {
	tiles := make(map[string][]byte, 2)
	empty := image.NewNRGBA(image.Rect(0, 0, 256, 256))

	for _, format := range []string{config.FormatWebP, config.FormatPNG} {
		var buf bytes.Buffer
		if err := processor.EncodeTile(&buf, empty, format); err != nil {
			log.Error().Err(err).Str("format", format).Msg("Failed to encode transparent tile")
			continue
		}
		tiles[format] = buf.Bytes()
	}

	return tiles
}
