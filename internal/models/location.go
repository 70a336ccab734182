// internal/models/location.go
package models

import "time"

// InvalidCoordinate is the sentinel latitude/longitude of a location that
// has not been geocoded yet. Such a location must be geocoded before it is
// persisted, or rejected.
const InvalidCoordinate = -1000.0

// Location identifies a geographic point. Identity is logical: one
// (postalCode, countryCode) pair maps to a single persisted row. A location
// with explicit coordinates but no postal code is allowed as a search
// center. Immutable once geocoded, except for HasStore.
type Location struct {
	Key         string    `json:"key"`
	PostalCode  string    `json:"postalCode"`
	CountryCode string    `json:"countryCode"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	HasStore    bool      `json:"hasStore"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewLocation returns an ungeocoded location for a postal code.
func NewLocation(postalCode, countryCode string, now time.Time) *Location {
	return &Location{
		PostalCode:  postalCode,
		CountryCode: countryCode,
		Latitude:    InvalidCoordinate,
		Longitude:   InvalidCoordinate,
		CreatedAt:   now.UTC(),
	}
}

// Geocoded reports whether both coordinates have been resolved.
func (l *Location) Geocoded() bool {
	return l.Latitude != InvalidCoordinate && l.Longitude != InvalidCoordinate
}
