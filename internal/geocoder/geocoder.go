// internal/geocoder/geocoder.go
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"demand-broker/internal/common/database"
	apperrors "demand-broker/internal/common/errors"
	commonhttp "demand-broker/internal/common/http"
	"demand-broker/internal/common/logger"
)

// Coordinates is a resolved postal code.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves a postal code and country to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, postalCode, countryCode string) (Coordinates, error)
}

// HTTPGeocoder calls an external geocoding service and caches hits in
// Redis. Postal codes are stable so the cache TTL can be generous.
type HTTPGeocoder struct {
	baseURL  string
	client   *commonhttp.Client
	cache    *database.RedisClient
	cacheTTL time.Duration
	log      logger.Logger
}

func NewHTTPGeocoder(baseURL string, timeout time.Duration, cache *database.RedisClient, cacheTTL time.Duration, log logger.Logger) *HTTPGeocoder {
	return &HTTPGeocoder{
		baseURL:  baseURL,
		client:   commonhttp.NewClient(timeout),
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func (g *HTTPGeocoder) Resolve(ctx context.Context, postalCode, countryCode string) (Coordinates, error) {
	cacheKey := fmt.Sprintf("geo:%s:%s", countryCode, postalCode)
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil {
			var coords Coordinates
			if err := json.Unmarshal([]byte(cached), &coords); err == nil {
				return coords, nil
			}
		}
	}

	coords, err := g.lookup(ctx, postalCode, countryCode)
	if err != nil {
		return Coordinates{}, err
	}

	if g.cache != nil {
		if payload, err := json.Marshal(coords); err == nil {
			if err := g.cache.Set(ctx, cacheKey, string(payload), g.cacheTTL); err != nil {
				g.log.WithError(err).Warn("geocode cache write failed", map[string]interface{}{
					"postal_code": postalCode,
				})
			}
		}
	}
	return coords, nil
}

func (g *HTTPGeocoder) lookup(ctx context.Context, postalCode, countryCode string) (Coordinates, error) {
	endpoint := fmt.Sprintf("%s/geocode?postal_code=%s&country=%s",
		g.baseURL, url.QueryEscape(postalCode), url.QueryEscape(countryCode))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinates{}, apperrors.NewDataAccessError("geocode request", err)
	}

	resp, err := g.client.DoWithContext(ctx, req)
	if err != nil {
		return Coordinates{}, apperrors.NewDataAccessError("geocode request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Coordinates{}, apperrors.NewClientError("postal code %s (%s) cannot be resolved", postalCode, countryCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, apperrors.NewDataAccessError("geocode request",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var coords Coordinates
	if err := json.NewDecoder(resp.Body).Decode(&coords); err != nil {
		return Coordinates{}, apperrors.NewDataAccessError("geocode decode", err)
	}
	return coords, nil
}

// Static resolves from a fixed table, for tests and the simulated channel.
type Static struct {
	Table map[string]Coordinates
}

func NewStatic(table map[string]Coordinates) *Static {
	return &Static{Table: table}
}

func (s *Static) Resolve(_ context.Context, postalCode, countryCode string) (Coordinates, error) {
	coords, ok := s.Table[fmt.Sprintf("%s:%s", countryCode, postalCode)]
	if !ok {
		return Coordinates{}, apperrors.NewClientError("postal code %s (%s) cannot be resolved", postalCode, countryCode)
	}
	return coords, nil
}
