package geo

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// Well-known feature property names.
const (
	PropMarkerGroup = "marker-group"
	PropPopupText   = "popup-text"
	PropName        = "name"
)

// GroupKey returns the marker-group of a feature.
// Missing, non-string and empty values all mean "ungrouped" and yield "".
func GroupKey(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	return StringProp(f.Properties, PropMarkerGroup)
}

// StringProp returns a string property or "" when absent or not a string.
func StringProp(props geojson.Properties, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

// FloatProp returns a numeric property. Numeric strings are accepted since
// hand-edited data often quotes numbers.
func FloatProp(props geojson.Properties, key string) (float64, bool) {
	if props == nil {
		return 0, false
	}

	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// FeatureCollection parses raw GeoJSON. A bare Feature is wrapped into a collection.
func FeatureCollection(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && fc.Type == "FeatureCollection" {
		return fc, nil
	}

	f, ferr := geojson.UnmarshalFeature(data)
	if ferr == nil && f.Geometry != nil {
		fc = geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}

	if err == nil {
		err = fmt.Errorf("unexpected geojson type %q", fc.Type)
	}
	return nil, fmt.Errorf("parse geojson: %w", err)
}
