// internal/workflow/location.go
package workflow

import (
	"context"

	"demand-broker/internal/models"
	"demand-broker/internal/parser"
	"demand-broker/internal/storage"
)

// ResolveLocation returns the persisted Location for a postal code and
// country, creating and geocoding it on first sight. A (postalCode,
// countryCode) pair maps to exactly one Location; a location that cannot
// be geocoded is never persisted.
func (e *Engine) ResolveLocation(ctx context.Context, postalCode, countryCode string) (*models.Location, error) {
	existing, err := e.store.QueryLocations(ctx, storage.Query{
		Filters: []storage.Filter{
			storage.Eq("postalCode", postalCode),
			storage.Eq("countryCode", countryCode),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	loc := models.NewLocation(postalCode, countryCode, e.now())
	coords, err := e.geocoder.Resolve(ctx, postalCode, countryCode)
	if err != nil {
		return nil, err
	}
	loc.Latitude = coords.Latitude
	loc.Longitude = coords.Longitude

	if err := e.store.SaveLocation(ctx, loc); err != nil {
		return nil, err
	}
	e.log.Info("location created", map[string]interface{}{
		"location_key": loc.Key,
		"postal_code":  postalCode,
		"country_code": countryCode,
	})
	return loc, nil
}

// attachLocation resolves the postal fields of a parsed command and binds
// the resulting location key to the entity's command block.
func (e *Engine) attachLocation(ctx context.Context, cmd *models.Command, fields models.FieldMap) error {
	if !fields.Has(models.FieldPostalCode) {
		return nil
	}
	countryCode := fields.String(models.FieldCountryCode)
	if countryCode == "" {
		countryCode = parser.DefaultCountryCode
	}
	loc, err := e.ResolveLocation(ctx, fields.String(models.FieldPostalCode), countryCode)
	if err != nil {
		return err
	}
	cmd.LocationKey = loc.Key
	return nil
}
