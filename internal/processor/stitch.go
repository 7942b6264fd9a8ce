package processor

import (
	"fmt"
	"image"
	"net/http"

	"github.com/woozymasta/fantasymap/internal/config"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// Stitch pastes parts onto one transparent canvas. Every part is shifted so
// that its anchor lands on the anchor of the first part; later parts cover
// earlier ones where they overlap.
func Stitch(parts []image.Image, anchors []image.Point) (*image.NRGBA, error) {
	if len(parts) == 0 || len(parts) != len(anchors) {
		return nil, fmt.Errorf("stitch: %d parts with %d anchors", len(parts), len(anchors))
	}

	offsets := make([]image.Point, len(parts))
	var canvas image.Rectangle
	for i, part := range parts {
		offsets[i] = anchors[0].Sub(anchors[i])
		size := part.Bounds().Size()
		canvas = canvas.Union(image.Rectangle{Min: offsets[i], Max: offsets[i].Add(size)})
	}

	dst := image.NewNRGBA(image.Rect(0, 0, canvas.Dx(), canvas.Dy()))
	for i, part := range parts {
		at := offsets[i].Sub(canvas.Min)
		r := image.Rectangle{Min: at, Max: at.Add(part.Bounds().Size())}
		xdraw.Draw(dst, r, part, part.Bounds().Min, xdraw.Src)
	}

	return dst, nil
}

// sourceImage loads the image a map is sliced from: its single image, or its
// parts stitched together.
func sourceImage(client *http.Client, m config.Map) (image.Image, error) {
	if len(m.Parts) == 0 {
		return loadSourceImage(client, m.Image)
	}

	parts := make([]image.Image, 0, len(m.Parts))
	anchors := make([]image.Point, 0, len(m.Parts))
	for _, p := range m.Parts {
		img, err := loadSourceImage(client, p.Image)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", p.Image, err)
		}
		parts = append(parts, img)
		anchors = append(anchors, image.Pt(p.Anchor[0], p.Anchor[1]))
	}

	stitched, err := Stitch(parts, anchors)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("map", m.Name).
		Int("parts", len(parts)).
		Int("width", stitched.Bounds().Dx()).
		Int("height", stitched.Bounds().Dy()).
		Msg("Source parts stitched")

	return stitched, nil
}
