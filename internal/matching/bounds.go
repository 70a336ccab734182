// internal/matching/bounds.go
package matching

import (
	"math"

	"demand-broker/internal/models"
)

const (
	kmPerDegreeLatitude = 111.133
	earthRadiusKm       = 6378.7
	milesToKm           = 1.609344
)

// Bounds is the rectangular search window around a center coordinate.
// Longitude bounds are clamped to the valid range rather than wrapped;
// searches straddling the antimeridian lose the far side of the window.
type Bounds struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// ComputeBounds derives the bounding box for a range expressed in the
// given unit around (latitude, longitude). One degree of latitude is a
// near-constant distance; a degree of longitude shrinks with the cosine
// of the latitude, so the window widens toward the poles.
func ComputeBounds(latitude, longitude, rangeValue float64, rangeUnit string) Bounds {
	rangeKm := rangeValue
	if rangeUnit == models.UnitMiles {
		rangeKm = rangeValue * milesToKm
	}

	latDelta := rangeKm / kmPerDegreeLatitude

	cosLat := math.Cos(latitude * math.Pi / 180.0)
	var lonDelta float64
	if cosLat <= 1e-9 {
		// at the poles every longitude is within range
		lonDelta = 180.0
	} else {
		lonDelta = math.Abs(rangeKm * math.Asin(1/(cosLat*earthRadiusKm)) * 180.0 / math.Pi)
	}

	return Bounds{
		MinLatitude:  math.Max(latitude-latDelta, -90.0),
		MaxLatitude:  math.Min(latitude+latDelta, 90.0),
		MinLongitude: math.Max(longitude-lonDelta, -180.0),
		MaxLongitude: math.Min(longitude+lonDelta, 180.0),
	}
}

// ContainsLongitude reports whether lon falls inside the window. The
// latitude band is enforced by the backing store; longitude is checked
// in process because the store accepts a single range attribute only.
func (b Bounds) ContainsLongitude(lon float64) bool {
	return b.MinLongitude <= lon && lon <= b.MaxLongitude
}
