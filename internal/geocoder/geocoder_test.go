// internal/geocoder/geocoder_test.go
package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-broker/internal/common/database"
	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/logger"
)

func newTestCache(t *testing.T) *database.RedisClient {
	mr := miniredis.RunT(t)
	return &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestHTTPGeocoder_ResolvesAndCaches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "H3G1B2", r.URL.Query().Get("postal_code"))
		assert.Equal(t, "CA", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latitude": 45.4972, "longitude": -73.5790}`))
	}))
	defer server.Close()

	g := NewHTTPGeocoder(server.URL, 2*time.Second, newTestCache(t), time.Hour, logger.NewNoOpLogger())
	ctx := context.Background()

	first, err := g.Resolve(ctx, "H3G1B2", "CA")
	require.NoError(t, err)
	assert.InDelta(t, 45.4972, first.Latitude, 1e-6)
	assert.InDelta(t, -73.5790, first.Longitude, 1e-6)

	second, err := g.Resolve(ctx, "H3G1B2", "CA")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits, "second resolve should come from the cache")
}

func TestHTTPGeocoder_UnknownPostalCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := NewHTTPGeocoder(server.URL, 2*time.Second, nil, time.Hour, logger.NewNoOpLogger())

	_, err := g.Resolve(context.Background(), "00000", "US")

	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
}

func TestHTTPGeocoder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := NewHTTPGeocoder(server.URL, 2*time.Second, nil, time.Hour, logger.NewNoOpLogger())

	_, err := g.Resolve(context.Background(), "H3G1B2", "CA")

	assert.Equal(t, apperrors.ErrCodeDataAccess, apperrors.CodeOf(err))
}

func TestStatic_Resolve(t *testing.T) {
	g := NewStatic(map[string]Coordinates{
		"CA:H3G1B2": {Latitude: 45.4972, Longitude: -73.5790},
	})

	coords, err := g.Resolve(context.Background(), "H3G1B2", "CA")
	require.NoError(t, err)
	assert.InDelta(t, 45.4972, coords.Latitude, 1e-6)

	_, err = g.Resolve(context.Background(), "99999", "CA")
	assert.Equal(t, apperrors.ErrCodeClient, apperrors.CodeOf(err))
}
