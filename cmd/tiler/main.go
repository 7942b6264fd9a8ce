package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/logger"
	"github.com/woozymasta/fantasymap/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Limit       []string `short:"l" long:"limit"        env:"LIMIT_NAMES"  description:"Limit processing to specific map names"`
	Concurrency int      `short:"p" long:"concurrency"  env:"CONCURRENCY"  description:"Concurrent tile encoders (0 = CPU count)"`
	TilesOnly   bool     `short:"t" long:"tiles-only"   description:"Slice tiles only"`
	GeoJSONOnly bool     `short:"g" long:"geojson-only" description:"Cache remote GeoJSON sources only"`
	Force       bool     `short:"f" long:"force"        description:"Force overwrite of existing files"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	processTiles := true
	processGeo := true
	if opts.TilesOnly && !opts.GeoJSONOnly {
		processGeo = false
	} else if opts.GeoJSONOnly && !opts.TilesOnly {
		processTiles = false
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 16,
		},
		Timeout: 2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Filter maps if limit is set
	mapsToProcess := cfg.Maps
	if len(opts.Limit) > 0 {
		byName := lo.KeyBy(cfg.Maps, func(m config.Map) string { return m.Name })
		mapsToProcess = make([]config.Map, 0, len(opts.Limit))

		for _, name := range lo.Uniq(opts.Limit) {
			m, ok := byName[name]
			if !ok {
				log.Error().
					Str("name", name).
					Msg("Map specified in --limit not found in configuration")
				continue
			}
			mapsToProcess = append(mapsToProcess, m)
		}
	}

	log.Info().
		Int("maps_total", len(cfg.Maps)).
		Int("maps_queued", len(mapsToProcess)).
		Int("concurrency", opts.Concurrency).
		Msg("Starting tiler")

	failed := false
	for _, world := range mapsToProcess {
		if ctx.Err() != nil {
			break
		}

		if processGeo && len(world.Locations) > 0 {
			n, err := processor.CacheLocations(ctx, client, cfg, world, opts.Force)
			if err != nil {
				failed = true
				log.Error().Err(err).Str("map", world.Name).Msg("Failed to cache locations")
			} else {
				log.Info().Str("map", world.Name).Int("written", n).Msg("Locations cached")
			}
		}

		if !processTiles {
			continue
		}

		stats, err := processor.ProcessTiles(client, cfg, world, opts.Concurrency, opts.Force)
		if err != nil || stats.Failed > 0 {
			failed = true
			log.Error().Err(err).Str("map", world.Name).Int64("failed", stats.Failed).Msg("Failed to slice tiles")
		}
	}

	if failed {
		log.Error().Msg("Tiler finished with errors")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("Tiler finished successfully")
}
