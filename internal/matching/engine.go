// internal/matching/engine.go
package matching

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/logger"
	"demand-broker/internal/common/metrics"
	"demand-broker/internal/locale"
	"demand-broker/internal/models"
	"demand-broker/internal/storage"
)

// Engine finds the sale associates a published demand should reach. The
// search runs in two phases because the backing store limits a query to
// one inequality attribute: latitude is filtered by the store, longitude
// is filtered in process against the same bounding box.
type Engine struct {
	store storage.Store
	log   logger.Logger
}

func NewEngine(store storage.Store, log logger.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// SaleAssociatesInRange resolves the demand's location, widens it to the
// demand's range, and walks locations, their stores, and each store's
// associates, keeping the associates whose tags overlap the demand's
// criteria. The result is deduplicated by associate key.
func (e *Engine) SaleAssociatesInRange(ctx context.Context, demand *models.Demand) ([]*models.SaleAssociate, error) {
	if demand.LocationKey == "" {
		return nil, apperrors.NewClientError("demand %s has no location to search around", demand.Key)
	}
	center, err := e.store.GetLocation(ctx, demand.LocationKey)
	if err != nil {
		return nil, err
	}
	if !center.Geocoded() {
		return nil, apperrors.NewClientError("location %s has no resolved coordinates", center.Key)
	}

	rangeValue := demand.Range
	if rangeValue <= 0 {
		rangeValue = models.DefaultRange
	}
	rangeUnit := demand.RangeUnit
	if rangeUnit == "" {
		rangeUnit = models.DefaultRangeUnit
	}
	bounds := ComputeBounds(center.Latitude, center.Longitude, rangeValue, rangeUnit)

	locations, err := e.queryLocations(ctx, center, bounds)
	if err != nil {
		return nil, err
	}

	stores, err := e.queryStores(ctx, locations)
	if err != nil {
		return nil, err
	}

	associates, err := e.queryAssociates(ctx, demand, stores)
	if err != nil {
		return nil, err
	}

	e.log.Info("matching completed", map[string]interface{}{
		"demand_key": demand.Key,
		"locations":  len(locations),
		"stores":     len(stores),
		"associates": len(associates),
	})
	return associates, nil
}

func (e *Engine) queryLocations(ctx context.Context, center *models.Location, bounds Bounds) ([]*models.Location, error) {
	timer := prometheus.NewTimer(metrics.MatchingDuration.WithLabelValues("locations"))
	defer timer.ObserveDuration()

	candidates, err := e.store.QueryLocations(ctx, storage.Query{Filters: append(
		storage.Between("latitude", bounds.MinLatitude, bounds.MaxLatitude),
		storage.Eq("countryCode", center.CountryCode),
		storage.Eq("hasStore", true),
	)})
	if err != nil {
		return nil, err
	}

	// second phase: the store already narrowed latitude, longitude is
	// checked here against the same window
	var locations []*models.Location
	for _, loc := range candidates {
		if bounds.ContainsLongitude(loc.Longitude) {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

func (e *Engine) queryStores(ctx context.Context, locations []*models.Location) ([]*models.Store, error) {
	timer := prometheus.NewTimer(metrics.MatchingDuration.WithLabelValues("stores"))
	defer timer.ObserveDuration()

	var stores []*models.Store
	for _, loc := range locations {
		batch, err := e.store.QueryStores(ctx, storage.Query{Filters: []storage.Filter{
			storage.Eq("locationKey", loc.Key),
			storage.Eq("hasEmployees", true),
		}})
		if err != nil {
			return nil, err
		}
		stores = append(stores, batch...)
	}
	return stores, nil
}

func (e *Engine) queryAssociates(ctx context.Context, demand *models.Demand, stores []*models.Store) ([]*models.SaleAssociate, error) {
	timer := prometheus.NewTimer(metrics.MatchingDuration.WithLabelValues("associates"))
	defer timer.ObserveDuration()

	tag := locale.Load(demand.Locale).Tag
	seen := make(map[string]bool)
	var associates []*models.SaleAssociate
	for _, st := range stores {
		batch, err := e.store.QuerySaleAssociates(ctx, storage.Query{Filters: []storage.Filter{
			storage.Eq("storeKey", st.Key),
		}})
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			if seen[a.Key] {
				continue
			}
			seen[a.Key] = true
			if MatchesCriteria(demand.Criteria, a.Criteria, tag) {
				associates = append(associates, a)
			}
		}
	}
	return associates, nil
}
