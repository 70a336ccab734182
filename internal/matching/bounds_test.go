// internal/matching/bounds_test.go
package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"demand-broker/internal/models"
)

func TestComputeBounds_KilometerWindow(t *testing.T) {
	b := ComputeBounds(45.5, -73.6, 25.0, models.UnitKilometers)

	assert.InDelta(t, 45.5-25.0/111.133, b.MinLatitude, 1e-9)
	assert.InDelta(t, 45.5+25.0/111.133, b.MaxLatitude, 1e-9)
	assert.Less(t, b.MinLongitude, -73.6)
	assert.Greater(t, b.MaxLongitude, -73.6)
	// the window is symmetric around the center
	assert.InDelta(t, -73.6-b.MinLongitude, b.MaxLongitude-(-73.6), 1e-9)
}

func TestComputeBounds_MilesConvertToKilometers(t *testing.T) {
	km := ComputeBounds(45.5, -73.6, 1.609344, models.UnitKilometers)
	mi := ComputeBounds(45.5, -73.6, 1.0, models.UnitMiles)

	assert.InDelta(t, km.MinLatitude, mi.MinLatitude, 1e-9)
	assert.InDelta(t, km.MaxLongitude, mi.MaxLongitude, 1e-9)
}

func TestComputeBounds_LongitudeWidensTowardPoles(t *testing.T) {
	equator := ComputeBounds(0.0, 0.0, 25.0, models.UnitKilometers)
	north := ComputeBounds(60.0, 0.0, 25.0, models.UnitKilometers)

	assert.Greater(t,
		north.MaxLongitude-north.MinLongitude,
		equator.MaxLongitude-equator.MinLongitude)
}

func TestComputeBounds_ClampsAtPoles(t *testing.T) {
	b := ComputeBounds(89.9, 0.0, 100.0, models.UnitKilometers)

	assert.Equal(t, 90.0, b.MaxLatitude)
	assert.GreaterOrEqual(t, b.MinLongitude, -180.0)
	assert.LessOrEqual(t, b.MaxLongitude, 180.0)
}

func TestComputeBounds_AntimeridianClampsWithoutWrap(t *testing.T) {
	// a center near the dateline keeps the window inside [-180, 180];
	// the far side of the line is not reachable
	b := ComputeBounds(0.0, 179.9, 50.0, models.UnitKilometers)

	assert.Equal(t, 180.0, b.MaxLongitude)
	assert.True(t, b.ContainsLongitude(179.95))
	assert.False(t, b.ContainsLongitude(-179.95))
}

func TestBounds_ContainsLongitude(t *testing.T) {
	b := Bounds{MinLongitude: -74.0, MaxLongitude: -73.0}

	assert.True(t, b.ContainsLongitude(-73.5))
	assert.True(t, b.ContainsLongitude(-74.0))
	assert.True(t, b.ContainsLongitude(-73.0))
	assert.False(t, b.ContainsLongitude(-72.9))
	assert.False(t, b.ContainsLongitude(-74.1))
}
