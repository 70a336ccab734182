// internal/models/fields.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field identifiers used as FieldMap keys. These are domain identifiers,
// never display strings; localized prefixes resolve to them during parsing.
const (
	FieldAction         = "action"
	FieldReference      = "reference"
	FieldRange          = "range"
	FieldRangeUnit      = "rangeUnit"
	FieldExpiration     = "expiration"
	FieldQuantity       = "quantity"
	FieldPrice          = "price"
	FieldTotal          = "total"
	FieldPostalCode     = "postalCode"
	FieldCountryCode    = "countryCode"
	FieldProposal       = "proposal"
	FieldStore          = "store"
	FieldState          = "state"
	FieldCriteria       = "criteria"
	FieldCriteriaAdd    = "criteriaAdd"
	FieldCriteriaRemove = "criteriaRemove"
	FieldNeedHelp       = "needHelp"
)

// FieldMap is the structured output of command parsing, consumed directly
// by entity constructors and the workflow engine.
type FieldMap map[string]interface{}

func (m FieldMap) Has(field string) bool {
	_, ok := m[field]
	return ok
}

func (m FieldMap) String(field string) string {
	if v, ok := m[field].(string); ok {
		return v
	}
	return ""
}

func (m FieldMap) Long(field string) int64 {
	if v, ok := m[field].(int64); ok {
		return v
	}
	return 0
}

func (m FieldMap) Double(field string) float64 {
	switch v := m[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (m FieldMap) Date(field string) time.Time {
	if v, ok := m[field].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func (m FieldMap) Decimal(field string) decimal.Decimal {
	if v, ok := m[field].(decimal.Decimal); ok {
		return v
	}
	return decimal.Zero
}

func (m FieldMap) Strings(field string) []string {
	if v, ok := m[field].([]string); ok {
		return v
	}
	return nil
}
