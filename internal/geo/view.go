package geo

import (
	"math"
	"net/url"
	"strconv"
)

// View is the initial viewport of the map.
type View struct {
	Center LatLng `yaml:"center" json:"center"`
	Zoom   int    `yaml:"zoom" json:"zoom"`
}

// DefaultView is the view used when neither the request nor the config sets one.
var DefaultView = View{Center: LatLng{Lat: -38, Lng: 35}, Zoom: 6}

// ViewFromQuery reads integer lat, lng and zoom query parameters.
// A missing, malformed or zero lat selects the fallback view.
func ViewFromQuery(q url.Values, fallback View) View {
	lat := queryInt(q, "lat")
	if lat == 0 {
		return fallback
	}

	return View{
		Center: LatLng{Lat: float64(lat), Lng: float64(queryInt(q, "lng"))},
		Zoom:   queryInt(q, "zoom"),
	}
}

func queryInt(q url.Values, key string) int {
	raw := q.Get(key)
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	// "12.7" truncates to 12
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}
