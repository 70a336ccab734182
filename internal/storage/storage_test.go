// internal/storage/storage_test.go
package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Query Validation Tests
// ==========================

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{
			name:    "no filters",
			query:   Query{},
			wantErr: false,
		},
		{
			name: "equality filters only",
			query: Query{Filters: []Filter{
				Eq("countryCode", "CA"),
				Eq("hasStore", true),
			}},
			wantErr: false,
		},
		{
			name: "single range attribute",
			query: Query{Filters: append(
				Between("latitude", 45.0, 46.0),
				Eq("countryCode", "CA"),
			)},
			wantErr: false,
		},
		{
			name: "one-sided inequality",
			query: Query{Filters: []Filter{
				{Attr: "expiration", Op: OpLT, Value: 0},
				Eq("state", "published"),
			}},
			wantErr: false,
		},
		{
			name: "two range attributes rejected",
			query: Query{Filters: append(
				Between("latitude", 45.0, 46.0),
				Between("longitude", -74.0, -73.0)...,
			)},
			wantErr: true,
		},
		{
			name: "mixed inequality attributes rejected",
			query: Query{Filters: []Filter{
				{Attr: "latitude", Op: OpGE, Value: 45.0},
				{Attr: "longitude", Op: OpLE, Value: -73.0},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMultipleRangeAttrs)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBetween_SingleAttribute(t *testing.T) {
	filters := Between("latitude", 10.0, 20.0)

	assert.Len(t, filters, 2)
	assert.Equal(t, OpGE, filters[0].Op)
	assert.Equal(t, OpLE, filters[1].Op)
	assert.Equal(t, filters[0].Attr, filters[1].Attr)
	assert.NoError(t, Query{Filters: filters}.Validate())
}
