package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Distance returns the distance in meters between two positions.
// The world is flat, so this is a plain euclidean distance.
func (d Dimensions) Distance(a, b LatLng) float64 {
	dx := (b.Lng - a.Lng) * d.MetersPerPixel
	dy := (b.Lat - a.Lat) * d.MetersPerPixel
	return math.Sqrt(dx*dx + dy*dy)
}

// Segment is one leg of a measured path.
type Segment struct {
	From     LatLng  `json:"from"`
	To       LatLng  `json:"to"`
	Length   float64 `json:"length"`
	Distance float64 `json:"distance"` // running total up to To
}

// Measurement is the result of measuring a path with the ruler.
type Measurement struct {
	Segments []Segment `json:"segments"`
	Total    float64   `json:"total"`
}

// PathLength measures a polyline leg by leg.
func (d Dimensions) PathLength(points []LatLng) Measurement {
	m := Measurement{Segments: make([]Segment, 0, max(len(points)-1, 0))}
	for i := 1; i < len(points); i++ {
		l := d.Distance(points[i-1], points[i])
		m.Total += l
		m.Segments = append(m.Segments, Segment{
			From:     points[i-1],
			To:       points[i],
			Length:   l,
			Distance: m.Total,
		})
	}
	return m
}

// PathSeparator separates positions in a path. It survives URL query parsing,
// which drops pairs containing a bare ';'.
const PathSeparator = "|"

// ParsePath parses "lat,lng|lat,lng|..." into positions.
func ParsePath(s string) ([]LatLng, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, PathSeparator)
	points := make([]LatLng, 0, len(parts))
	for _, part := range parts {
		ll, err := ParseLatLng(part)
		if err != nil {
			return nil, err
		}
		points = append(points, ll)
	}
	return points, nil
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(s string) (LatLng, error) {
	lat, lng, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return LatLng{}, fmt.Errorf("invalid position %q: expected lat,lng", s)
	}

	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("invalid longitude %q: %w", lng, err)
	}
	return LatLng{Lat: la, Lng: lo}, nil
}
