package processor

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/fantasymap/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func filled(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestStitchSideBySide(t *testing.T) {
	// the right edge of the west part meets the left edge of the east part
	out, err := Stitch(
		[]image.Image{filled(10, 10, red), filled(10, 10, blue)},
		[]image.Point{{10, 0}, {0, 0}},
	)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())
	assert.Equal(t, red, out.NRGBAAt(5, 5))
	assert.Equal(t, blue, out.NRGBAAt(15, 5))
}

func TestStitchNegativeOffset(t *testing.T) {
	// the second part lies above the first one and overlaps it by 2 rows
	out, err := Stitch(
		[]image.Image{filled(10, 10, red), filled(6, 10, blue)},
		[]image.Point{{0, 0}, {0, 8}},
	)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 18), out.Bounds())
	assert.Equal(t, blue, out.NRGBAAt(2, 0))
	assert.Equal(t, blue, out.NRGBAAt(2, 9))
	assert.Equal(t, red, out.NRGBAAt(2, 10))
	assert.Equal(t, red, out.NRGBAAt(8, 5+8))
	// not covered by any part
	assert.Zero(t, out.NRGBAAt(8, 0).A)
}

func TestStitchInvalid(t *testing.T) {
	_, err := Stitch(nil, nil)
	assert.Error(t, err)
	_, err = Stitch([]image.Image{filled(1, 1, red)}, []image.Point{{0, 0}, {1, 1}})
	assert.Error(t, err)
}

func TestSourceImageFromParts(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, img image.Image) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		return path
	}

	m := config.Map{
		Name: "aunea",
		Parts: []config.ImagePart{
			{Image: write("west.png", filled(4, 4, red)), Anchor: [2]int{4, 0}},
			{Image: write("east.png", filled(4, 4, blue)), Anchor: [2]int{0, 0}},
		},
	}

	img, err := sourceImage(http.DefaultClient, m)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	m.Parts[1].Image = filepath.Join(dir, "missing.png")
	_, err = sourceImage(http.DefaultClient, m)
	assert.Error(t, err)
}
