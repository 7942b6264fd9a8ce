// Package processor handles the downloading and processing of map data.
package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/loader"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// CacheLocations downloads the remote GeoJSON sources of a map into its data
// directory so the server can load them from disk. Every download is parsed
// before it is written. It returns the number of files written.
func CacheLocations(ctx context.Context, client *http.Client, cfg *config.Config, m config.Map, force bool) (int, error) {
	destDir := cfg.LocationsDir(m)
	written := 0

	for _, src := range m.Locations {
		if !loader.IsRemote(src) {
			continue
		}

		destFile := filepath.Join(destDir, loader.CacheName(src))
		if _, err := os.Stat(destFile); err == nil && !force {
			log.Debug().Str("map", m.Name).Str("path", destFile).Msg("Locations file exists, skipping")
			continue
		}

		log.Info().
			Str("map", m.Name).
			Str("source", src).
			Msg("Processing locations from URL")

		res := loader.Fetch(ctx, client, src)
		if res.Err != nil {
			return written, res.Err
		}

		if err := saveGeoJSON(destDir, destFile, res.Collection); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// saveGeoJSON marshals the feature collection and writes it to disk.
func saveGeoJSON(dir, path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return json.NewEncoder(f).Encode(fc)
}
