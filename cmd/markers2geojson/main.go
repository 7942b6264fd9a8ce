package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/geo"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input      string  `short:"i" long:"in"         description:"Input marker list (YAML or JSON). Reads from stdin if empty"`
	Output     string  `short:"o" long:"out"        description:"Output file path. Writes to stdout if empty"`
	ConfigFile string  `short:"c" long:"config"     description:"Take the CRS from this configuration file"`
	Map        string  `short:"m" long:"map"        description:"Map name in the configuration file"`
	Size       float64 `short:"s" long:"size"       description:"Reference image size in pixels, overrides the configuration"`
	Group      string  `short:"g" long:"group"      description:"marker-group for entries without one"`
	Indent     bool    `long:"indent"               description:"Indent output"`
}

// Marker is one hand-placed marker in reference image pixels.
type Marker struct {
	Name       string         `yaml:"name"`
	Group      string         `yaml:"group"`
	Popup      string         `yaml:"popup"`
	X          float64        `yaml:"x"`
	Y          float64        `yaml:"y"`
	Properties map[string]any `yaml:"properties"`
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

	dims, err := dimensions(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var inputData []byte
	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
	} else {
		inputData, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	// YAML is a superset of JSON, one decoder handles both
	var markers []Marker
	if err := yaml.Unmarshal(inputData, &markers); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing input: %v\n", err)
		os.Exit(1)
	}

	fc, skipped := convert(markers, dims, opts.Group)

	var outputData []byte
	if opts.Indent {
		outputData, err = json.MarshalIndent(fc, "", "  ")
	} else {
		outputData, err = fc.MarshalJSON()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output == "" {
		fmt.Println(string(outputData))
		return
	}

	if err := os.WriteFile(opts.Output, outputData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Successfully converted %d markers to %s (%d skipped)\n", len(fc.Features), opts.Output, skipped)
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

// convert places markers given in reference image pixels (origin top left)
// on the map. Entries outside the image are skipped.
func convert(markers []Marker, dims geo.Dimensions, defaultGroup string) (*geojson.FeatureCollection, int) {
	fc := geojson.NewFeatureCollection()
	skipped := 0

	for _, m := range markers {
		if m.X < 0 || m.Y < 0 || m.X > dims.ReferenceSize || m.Y > dims.ReferenceSize {
			fmt.Fprintf(os.Stderr, "Skipping %q: position %g,%g outside the image\n", m.Name, m.X, m.Y)
			skipped++
			continue
		}

		ll := dims.PixelToLatLng(orb.Point{m.X, m.Y}, float64(dims.MaxZoom))
		f := geojson.NewFeature(ll.Point())
		for k, v := range m.Properties {
			f.Properties[k] = v
		}
		if m.Name != "" {
			f.Properties[geo.PropName] = m.Name
		}

		group := m.Group
		if group == "" {
			group = defaultGroup
		}
		if group != "" {
			f.Properties[geo.PropMarkerGroup] = group
		}

		switch {
		case m.Popup != "":
			f.Properties[geo.PropPopupText] = m.Popup
		case m.Name != "":
			f.Properties[geo.PropPopupText] = m.Name
		}

		fc.Append(f)
	}

	return fc, skipped
}
