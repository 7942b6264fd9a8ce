// Package geo handles the flat coordinate reference system of a fantasy world map.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a position on the world map. It is not geographic: latitude and
// longitude are projected pixel units multiplied by PixelsPerTile.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Point returns the position as an orb point (X=lng, Y=lat).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// FromPoint converts an orb point (X=lng, Y=lat) into a LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

func (ll LatLng) String() string {
	return fmt.Sprintf("%g,%g", ll.Lat, ll.Lng)
}

// Dimensions describes the map image and the transformation used by the client CRS.
type Dimensions struct {
	ReferenceSize  float64 `yaml:"reference_size,omitempty" json:"reference_size"`
	MetersPerPixel float64 `yaml:"meters_per_pixel,omitempty" json:"meters_per_pixel"`
	PixelsPerTile  float64 `yaml:"pixels_per_tile,omitempty" json:"pixels_per_tile"`
	FactorX        float64 `yaml:"factor_x,omitempty" json:"factor_x"`
	FactorY        float64 `yaml:"factor_y,omitempty" json:"factor_y"`
	MinZoom        int     `yaml:"min_zoom,omitempty" json:"min_zoom"`
	MaxZoom        int     `yaml:"max_zoom,omitempty" json:"max_zoom"`
}

// DefaultDimensions returns the dimensions of a 50 km world at 100 m per pixel.
func DefaultDimensions() Dimensions {
	return Dimensions{
		ReferenceSize:  50000,
		MetersPerPixel: 100,
		PixelsPerTile:  256,
		FactorX:        1,
		FactorY:        1,
		MinZoom:        3,
		MaxZoom:        8,
	}
}

// WithDefaults fills zero fields from DefaultDimensions.
func (d Dimensions) WithDefaults() Dimensions {
	def := DefaultDimensions()
	if d.ReferenceSize <= 0 {
		d.ReferenceSize = def.ReferenceSize
	}
	if d.MetersPerPixel <= 0 {
		d.MetersPerPixel = def.MetersPerPixel
	}
	if d.PixelsPerTile <= 0 {
		d.PixelsPerTile = def.PixelsPerTile
	}
	if d.FactorX == 0 {
		d.FactorX = def.FactorX
	}
	if d.FactorY == 0 {
		d.FactorY = def.FactorY
	}
	if d.MinZoom == 0 && d.MaxZoom == 0 {
		d.MinZoom, d.MaxZoom = def.MinZoom, def.MaxZoom
	}
	return d
}

// Validate reports dimensions the CRS cannot work with.
func (d Dimensions) Validate() error {
	switch {
	case d.ReferenceSize <= 0:
		return fmt.Errorf("reference_size must be > 0")
	case d.PixelsPerTile <= 0:
		return fmt.Errorf("pixels_per_tile must be > 0")
	case d.FactorX == 0 || d.FactorY == 0:
		return fmt.Errorf("factor_x and factor_y must not be 0")
	case d.MinZoom < 0 || d.MaxZoom < d.MinZoom:
		return fmt.Errorf("invalid zoom range %d..%d", d.MinZoom, d.MaxZoom)
	}
	return nil
}

// offset is the transformation translation shared by both axes.
func (d Dimensions) offset() float64 {
	return (d.ReferenceSize / d.PixelsPerTile) / 2
}

// Scale returns the pixel scale factor at the zoom level.
func Scale(zoom float64) float64 {
	return math.Pow(2, zoom)
}

// Project maps a LatLng into projected units.
func (d Dimensions) Project(ll LatLng) orb.Point {
	return orb.Point{ll.Lng / d.PixelsPerTile, ll.Lat / d.PixelsPerTile}
}

// Unproject maps projected units back into a LatLng.
func (d Dimensions) Unproject(p orb.Point) LatLng {
	return LatLng{Lat: p[1] * d.PixelsPerTile, Lng: p[0] * d.PixelsPerTile}
}

// LatLngToPixel returns the absolute pixel position of ll at the zoom level.
func (d Dimensions) LatLngToPixel(ll LatLng, zoom float64) orb.Point {
	p := d.Project(ll)
	s := Scale(zoom)
	off := d.offset()
	return orb.Point{
		s * (d.FactorX*p[0] + off),
		s * (-d.FactorY*p[1] + off),
	}
}

// PixelToLatLng is the inverse of LatLngToPixel.
func (d Dimensions) PixelToLatLng(px orb.Point, zoom float64) LatLng {
	s := Scale(zoom)
	off := d.offset()
	return d.Unproject(orb.Point{
		(px[0]/s - off) / d.FactorX,
		(px[1]/s - off) / -d.FactorY,
	})
}

// Bounds returns the world bounds used to limit panning.
func (d Dimensions) Bounds() orb.Bound {
	a := d.PixelToLatLng(orb.Point{0, d.ReferenceSize}, float64(d.MaxZoom))
	b := d.PixelToLatLng(orb.Point{d.ReferenceSize, 0}, float64(d.MaxZoom))
	return orb.MultiPoint{a.Point(), b.Point()}.Bound()
}

// Center returns the center of the reference image.
func (d Dimensions) Center() LatLng {
	half := d.ReferenceSize / 2
	return d.PixelToLatLng(orb.Point{half, half}, float64(d.MaxZoom))
}
