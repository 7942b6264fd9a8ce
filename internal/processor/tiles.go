package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/fantasymap/internal/config"
	"github.com/woozymasta/fantasymap/internal/loader"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// padStep is the granularity the source image is padded to, so every zoom
// level halves cleanly.
const padStep = 4096

// TileOptions control how a source image is sliced.
type TileOptions struct {
	MaxZoom     int
	TileSize    int
	Format      string
	Crop        *[4]int // xMin, yMin, xMax, yMax in source image pixels
	Concurrency int
	Force       bool
}

// TileStats summarizes a slicing run.
type TileStats struct {
	Written int64
	Skipped int64
	Failed  int64
}

// ProcessTiles slices the configured source image, or the stitched parts, of a
// map into its tile directory.
func ProcessTiles(client *http.Client, cfg *config.Config, m config.Map, concurrency int, force bool) (TileStats, error) {
	if m.Image == "" && len(m.Parts) == 0 {
		log.Debug().Str("map", m.Name).Msg("No source image configured, skipping tiles")
		return TileStats{}, nil
	}

	log.Info().
		Str("map", m.Name).
		Str("source", m.Image).
		Int("parts", len(m.Parts)).
		Int("max_zoom", m.CRS.MaxZoom).
		Str("format", m.TileFormat).
		Msg("Starting image tiling")

	src, err := sourceImage(client, m)
	if err != nil {
		return TileStats{}, err
	}

	stats := SliceImage(src, cfg.TilesDir(m), TileOptions{
		MaxZoom:     m.CRS.MaxZoom,
		TileSize:    m.TileSize,
		Format:      m.TileFormat,
		Crop:        m.Crop,
		Concurrency: concurrency,
		Force:       force,
	})

	log.Info().
		Str("map", m.Name).
		Int64("written", stats.Written).
		Int64("skipped", stats.Skipped).
		Int64("failed", stats.Failed).
		Msg("Tiling finished")

	return stats, nil
}

// PaddedSize returns the square canvas size for an image: the longer side
// rounded up to a multiple of 4096.
func PaddedSize(w, h int) int {
	d := max(w, h)
	if r := d % padStep; r != 0 {
		d += padStep - r
	}
	return d
}

// SliceImage writes a z/x/y tile pyramid of src into dir. Zoom level MaxZoom
// shows the padded image at full resolution, each level below halves it.
func SliceImage(src image.Image, dir string, opts TileOptions) TileStats {
	if opts.TileSize <= 0 {
		opts.TileSize = 256
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Format == "" {
		opts.Format = config.FormatWebP
	}

	b := src.Bounds()
	dim := PaddedSize(b.Dx(), b.Dy())
	padX := (dim - b.Dx()) / 2
	padY := (dim - b.Dy()) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, dim, dim))
	draw.Draw(canvas, image.Rect(padX, padY, padX+b.Dx(), padY+b.Dy()), src, b.Min, draw.Src)

	var stats TileStats

	for z := opts.MaxZoom; z >= 0; z-- {
		scale := 1 << (opts.MaxZoom - z)
		size := int(math.Ceil(float64(dim) / float64(scale)))

		var level *image.RGBA
		if scale == 1 {
			level = canvas
		} else {
			level = image.NewRGBA(image.Rect(0, 0, size, size))
			xdraw.CatmullRom.Scale(level, level.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
		}

		var crop image.Rectangle
		if opts.Crop != nil {
			c := opts.Crop
			crop = image.Rect(
				(c[0]+padX)/scale, (c[1]+padY)/scale,
				(c[2]+padX)/scale, (c[3]+padY)/scale,
			)
		}

		tiles := int(math.Ceil(float64(size) / float64(opts.TileSize)))
		log.Debug().
			Int("zoom", z).
			Int("px", size).
			Int("grid", tiles).
			Msg("Processing zoom level")

		var wg sync.WaitGroup
		sem := make(chan struct{}, opts.Concurrency)

		for x := 0; x < tiles; x++ {
			for y := 0; y < tiles; y++ {
				rect := image.Rect(x*opts.TileSize, y*opts.TileSize, (x+1)*opts.TileSize, (y+1)*opts.TileSize).
					Intersect(level.Bounds())
				if opts.Crop != nil && !rect.Overlaps(crop) {
					continue
				}

				out := TilePath(dir, z, x, y, opts.Format)
				if !opts.Force {
					if info, err := os.Stat(out); err == nil && info.Size() > 0 {
						atomic.AddInt64(&stats.Skipped, 1)
						continue
					}
				}

				wg.Add(1)
				sem <- struct{}{}

				go func(rect image.Rectangle, out string) {
					defer wg.Done()
					defer func() { <-sem }()

					tile := image.NewRGBA(image.Rect(0, 0, opts.TileSize, opts.TileSize))
					if rect.Dx() == opts.TileSize && rect.Dy() == opts.TileSize {
						draw.Draw(tile, tile.Bounds(), level, rect.Min, draw.Src)
					} else {
						xdraw.CatmullRom.Scale(tile, tile.Bounds(), level, rect, draw.Src, nil)
					}

					if err := writeTile(out, tile, opts.Format); err != nil {
						atomic.AddInt64(&stats.Failed, 1)
						log.Error().Err(err).Str("path", out).Msg("Failed to write tile")
						return
					}
					atomic.AddInt64(&stats.Written, 1)
				}(rect, out)
			}
		}
		wg.Wait()
	}

	return stats
}

// TilePath returns the file path of a tile.
func TilePath(dir string, z, x, y int, format string) string {
	return filepath.Join(dir, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+"."+format)
}

// EncodeTile encodes an image in the tile format.
func EncodeTile(w io.Writer, img image.Image, format string) error {
	if format == config.FormatPNG {
		return png.Encode(w, img)
	}
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 85})
}

func writeTile(path string, img image.Image, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := EncodeTile(f, img, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return f.Close()
}

func loadSourceImage(client *http.Client, source string) (image.Image, error) {
	var reader io.Reader

	if loader.IsRemote(source) {
		log.Info().Str("url", source).Msg("Downloading source image...")
		resp, err := client.Get(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download failed: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		reader = f
	}

	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	log.Info().Str("format", format).Msg("Image decoded successfully")
	return img, nil
}
