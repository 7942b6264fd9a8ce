package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/geo"
	"github.com/woozymasta/fantasymap/internal/logger"
	"github.com/woozymasta/fantasymap/internal/regions"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input      string  `short:"i" long:"in"     description:"Input SVG drawing. Reads from stdin if empty"`
	Output     string  `short:"o" long:"out"    description:"Output file path. Writes to stdout if empty"`
	ConfigFile string  `short:"c" long:"config" description:"Take the CRS from this configuration file"`
	Map        string  `short:"m" long:"map"    description:"Map name in the configuration file"`
	Size       float64 `short:"s" long:"size"   description:"Reference image size in pixels, overrides the configuration"`
	Group      string  `short:"g" long:"group"  description:"marker-group for shapes without data-marker-group"`
	Indent     bool    `long:"indent"           description:"Indent output"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	dims, err := dimensions(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dimensions")
	}

	var in io.Reader = os.Stdin
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open input")
		}
		defer f.Close()
		in = f
	}

	fc, stats, err := regions.FromSVG(in, dims, regions.Options{Group: opts.Group})
	if err != nil {
		log.Fatal().Err(err).Str("file", opts.Input).Msg("Failed to convert drawing")
	}

	var data []byte
	if opts.Indent {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = fc.MarshalJSON()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal regions")
	}

	if opts.Output == "" {
		_, _ = os.Stdout.Write(append(data, '\n'))
	} else if err := os.WriteFile(opts.Output, data, 0644); err != nil {
		log.Fatal().Err(err).Str("file", opts.Output).Msg("Failed to write output")
	}

	log.Info().
		Int("features", stats.Features).
		Int("skipped", stats.Skipped).
		Str("file", opts.Output).
		Msg("Regions converted")
}

func dimensions(opts Options) (geo.Dimensions, error) {
	dims, err := config.Dimensions(opts.ConfigFile, opts.Map)
	if err != nil {
		return dims, err
	}
	if opts.Size > 0 {
		dims.ReferenceSize = opts.Size
	}
	return dims, dims.Validate()
}
