// internal/matching/engine_test.go
package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/logger"
	"demand-broker/internal/models"
	"demand-broker/internal/storage"
)

// ==========================
// Test Fixtures
// ==========================

type fixture struct {
	store  *storage.Memory
	engine *Engine
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	store := storage.NewMemory()
	return &fixture{
		store:  store,
		engine: NewEngine(store, logger.NewNoOpLogger()),
		ctx:    context.Background(),
	}
}

func (f *fixture) addLocation(t *testing.T, lat, lon float64, hasStore bool) *models.Location {
	loc := &models.Location{
		CountryCode: "CA",
		Latitude:    lat,
		Longitude:   lon,
		HasStore:    hasStore,
	}
	require.NoError(t, f.store.SaveLocation(f.ctx, loc))
	return loc
}

func (f *fixture) addStore(t *testing.T, locationKey string, hasEmployees bool) *models.Store {
	st := &models.Store{LocationKey: locationKey, HasEmployees: hasEmployees}
	require.NoError(t, f.store.SaveStore(f.ctx, st))
	return st
}

func (f *fixture) addAssociate(t *testing.T, storeKey string, criteria ...string) *models.SaleAssociate {
	a := &models.SaleAssociate{StoreKey: storeKey, Criteria: criteria}
	require.NoError(t, f.store.SaveSaleAssociate(f.ctx, a))
	return a
}

func (f *fixture) addDemand(t *testing.T, locationKey string, criteria ...string) *models.Demand {
	d := &models.Demand{Range: 25.0, RangeUnit: models.UnitKilometers}
	d.LocationKey = locationKey
	d.Locale = "en"
	d.Criteria = criteria
	require.NoError(t, f.store.SaveDemand(f.ctx, d))
	return d
}

// ==========================
// Matching Chain Tests
// ==========================

func TestEngine_SaleAssociatesInRange_MatchInRange(t *testing.T) {
	f := newFixture(t)
	center := f.addLocation(t, 45.50, -73.60, false)
	nearby := f.addLocation(t, 45.52, -73.58, true)
	st := f.addStore(t, nearby.Key, true)
	match := f.addAssociate(t, st.Key, "console", "games")
	f.addAssociate(t, st.Key, "books")
	demand := f.addDemand(t, center.Key, "wii", "console")

	got, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, match.Key, got[0].Key)
}

func TestEngine_SaleAssociatesInRange_ExcludesOutOfLongitude(t *testing.T) {
	f := newFixture(t)
	center := f.addLocation(t, 45.50, -73.60, false)
	// same latitude band, far east of the window
	faraway := f.addLocation(t, 45.50, -70.00, true)
	st := f.addStore(t, faraway.Key, true)
	f.addAssociate(t, st.Key, "console")
	demand := f.addDemand(t, center.Key, "console")

	got, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_SaleAssociatesInRange_SkipsStoresWithoutEmployees(t *testing.T) {
	f := newFixture(t)
	center := f.addLocation(t, 45.50, -73.60, false)
	nearby := f.addLocation(t, 45.51, -73.59, true)
	st := f.addStore(t, nearby.Key, false)
	f.addAssociate(t, st.Key, "console")
	demand := f.addDemand(t, center.Key, "console")

	got, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_SaleAssociatesInRange_UntaggedDemandReachesEveryone(t *testing.T) {
	f := newFixture(t)
	center := f.addLocation(t, 45.50, -73.60, false)
	nearby := f.addLocation(t, 45.51, -73.59, true)
	st := f.addStore(t, nearby.Key, true)
	f.addAssociate(t, st.Key, "books")
	f.addAssociate(t, st.Key, "music")
	demand := f.addDemand(t, center.Key)

	got, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEngine_SaleAssociatesInRange_UsesMilesRange(t *testing.T) {
	f := newFixture(t)
	center := f.addLocation(t, 45.50, -73.60, false)
	// roughly 12 km north of the center
	nearby := f.addLocation(t, 45.61, -73.60, true)
	st := f.addStore(t, nearby.Key, true)
	f.addAssociate(t, st.Key, "console")

	demand := f.addDemand(t, center.Key, "console")
	demand.Range = 1.0
	demand.RangeUnit = models.UnitMiles
	require.NoError(t, f.store.SaveDemand(f.ctx, demand))

	got, err := f.engine.SaleAssociatesInRange(f.ctx, demand)
	require.NoError(t, err)
	assert.Empty(t, got)

	demand.Range = 10.0
	require.NoError(t, f.store.SaveDemand(f.ctx, demand))

	got, err = f.engine.SaleAssociatesInRange(f.ctx, demand)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEngine_SaleAssociatesInRange_RejectsUnresolvedLocation(t *testing.T) {
	f := newFixture(t)
	raw := &models.Location{CountryCode: "CA", Latitude: models.InvalidCoordinate, Longitude: models.InvalidCoordinate}
	require.NoError(t, f.store.SaveLocation(f.ctx, raw))
	demand := f.addDemand(t, raw.Key, "console")

	_, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
}

func TestEngine_SaleAssociatesInRange_MissingLocationKey(t *testing.T) {
	f := newFixture(t)
	demand := &models.Demand{}
	require.NoError(t, f.store.SaveDemand(f.ctx, demand))

	_, err := f.engine.SaleAssociatesInRange(f.ctx, demand)

	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
}
