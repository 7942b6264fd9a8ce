// Package regions converts vector drawings of a map into GeoJSON region features.
package regions

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/woozymasta/fantasymap/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// paintProps are the presentation attributes copied onto features. They are
// the keys the path style resolver understands.
var paintProps = []string{"stroke", "fill", "stroke-width", "stroke-opacity", "fill-opacity"}

// Options control the conversion.
type Options struct {
	// Group is the marker-group of shapes with no data-marker-group of their own.
	Group string
}

// Stats summarizes a conversion.
type Stats struct {
	Features int
	Skipped  int
}

type scope struct {
	group string
	paint map[string]string
}

// FromSVG reads the path, polygon and rect elements of an SVG drawing of the
// map image and returns one Polygon or MultiPolygon feature per element.
//
// The drawing's viewBox (or width and height) is scaled onto the reference
// image of dims, its top left corner on the image's top left corner. Each
// subpath becomes one exterior ring; shapes with fewer than three distinct
// points are skipped. Element transforms are not applied.
func FromSVG(r io.Reader, dims geo.Dimensions, opts Options) (*geojson.FeatureCollection, Stats, error) {
	var (
		stats  Stats
		fc     = geojson.NewFeatureCollection()
		dec    = xml.NewDecoder(r)
		stack  = []scope{{group: opts.Group, paint: map[string]string{}}}
		canvas *viewBox
	)
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("svg: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			attrs := attrMap(el.Attr)
			parent := stack[len(stack)-1]
			sc := inherit(parent, attrs)

			switch el.Name.Local {
			case "svg":
				if canvas == nil {
					vb, err := parseViewBox(attrs)
					if err != nil {
						return nil, stats, err
					}
					canvas = vb
				}
			case "path", "polygon", "rect":
				if _, ok := attrs["transform"]; ok {
					log.Warn().Str("id", attrs["id"]).Msg("Element transform ignored")
				}
				rings, err := shapeRings(el.Name.Local, attrs)
				if err != nil {
					return nil, stats, fmt.Errorf("svg %s %q: %w", el.Name.Local, attrs["id"], err)
				}
				f := feature(rings, project(dims, canvas), sc, attrs)
				if f == nil {
					stats.Skipped++
				} else {
					fc.Append(f)
					stats.Features++
				}
			}
			stack = append(stack, sc)

		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return fc, stats, nil
}

type viewBox struct {
	minX, minY, width, height float64
}

func parseViewBox(attrs map[string]string) (*viewBox, error) {
	if raw, ok := attrs["viewBox"]; ok {
		f := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' })
		if len(f) != 4 {
			return nil, fmt.Errorf("svg: invalid viewBox %q", raw)
		}
		v := make([]float64, 4)
		for i, s := range f {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("svg: invalid viewBox %q: %w", raw, err)
			}
			v[i] = n
		}
		if v[2] <= 0 || v[3] <= 0 {
			return nil, fmt.Errorf("svg: empty viewBox %q", raw)
		}
		return &viewBox{minX: v[0], minY: v[1], width: v[2], height: v[3]}, nil
	}

	w, wok := length(attrs["width"])
	h, hok := length(attrs["height"])
	if wok && hok {
		return &viewBox{width: w, height: h}, nil
	}
	return nil, nil
}

// length parses a width or height attribute in user units ("512", "512px").
func length(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	return v, err == nil && v > 0
}

// project maps drawing coordinates onto the map. Without a canvas drawing
// units are reference image pixels.
func project(dims geo.Dimensions, canvas *viewBox) func(orb.Point) orb.Point {
	sx, sy, ox, oy := 1.0, 1.0, 0.0, 0.0
	if canvas != nil {
		sx = dims.ReferenceSize / canvas.width
		sy = dims.ReferenceSize / canvas.height
		ox, oy = canvas.minX, canvas.minY
	}
	zoom := float64(dims.MaxZoom)
	return func(p orb.Point) orb.Point {
		px := orb.Point{(p[0] - ox) * sx, (p[1] - oy) * sy}
		return dims.PixelToLatLng(px, zoom).Point()
	}
}

func shapeRings(kind string, attrs map[string]string) ([][]orb.Point, error) {
	switch kind {
	case "path":
		return ParsePathData(attrs["d"])
	case "polygon":
		pts, err := ParsePoints(attrs["points"])
		if err != nil {
			return nil, err
		}
		return [][]orb.Point{pts}, nil
	case "rect":
		var v [4]float64
		for i, k := range []string{"x", "y", "width", "height"} {
			if raw, ok := attrs[k]; ok {
				n, err := strconv.ParseFloat(strings.TrimSuffix(raw, "px"), 64)
				if err != nil {
					return nil, fmt.Errorf("invalid %s %q", k, raw)
				}
				v[i] = n
			}
		}
		x, y, w, h := v[0], v[1], v[2], v[3]
		return [][]orb.Point{{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}}, nil
	}
	return nil, nil
}

func feature(rings [][]orb.Point, proj func(orb.Point) orb.Point, sc scope, attrs map[string]string) *geojson.Feature {
	var polys orb.MultiPolygon
	for _, pts := range rings {
		ring := make(orb.Ring, 0, len(pts)+1)
		for _, p := range pts {
			q := proj(p)
			if len(ring) > 0 && ring[len(ring)-1].Equal(q) {
				continue
			}
			ring = append(ring, q)
		}
		if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		if len(lo.Uniq(ring)) < 3 {
			continue
		}
		ring = append(ring, ring[0])
		if ring.Orientation() != orb.CCW {
			ring.Reverse()
		}
		polys = append(polys, orb.Polygon{ring})
	}

	var g orb.Geometry
	switch len(polys) {
	case 0:
		return nil
	case 1:
		g = polys[0]
	default:
		g = polys
	}

	f := geojson.NewFeature(g)
	if name := lo.CoalesceOrEmpty(attrs["data-name"], attrs["id"]); name != "" {
		f.Properties[geo.PropName] = name
	}
	if sc.group != "" {
		f.Properties[geo.PropMarkerGroup] = sc.group
	}
	if popup := attrs["data-popup"]; popup != "" {
		f.Properties[geo.PropPopupText] = popup
	}
	for _, k := range paintProps {
		v, ok := sc.paint[k]
		if !ok || v == "none" {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil && k != "stroke" && k != "fill" {
			f.Properties[k] = n
			continue
		}
		f.Properties[k] = v
	}
	return f
}

func inherit(parent scope, attrs map[string]string) scope {
	sc := scope{group: parent.group, paint: make(map[string]string, len(parent.paint))}
	for k, v := range parent.paint {
		sc.paint[k] = v
	}
	if g := attrs["data-marker-group"]; g != "" {
		sc.group = g
	}
	for _, k := range paintProps {
		if v, ok := attrs[k]; ok {
			sc.paint[k] = strings.TrimSpace(v)
		}
	}
	// style declarations win over presentation attributes
	for _, decl := range strings.Split(attrs["style"], ";") {
		k, v, ok := strings.Cut(decl, ":")
		k = strings.TrimSpace(k)
		if ok && lo.Contains(paintProps, k) {
			sc.paint[k] = strings.TrimSpace(v)
		}
	}
	return sc
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
