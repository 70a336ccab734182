// internal/models/proposal.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Proposal is a sale associate's structured offer responding to a demand.
// ConsumerKey is a copy of the demand owner's key, kept for access control.
type Proposal struct {
	Command

	DemandKey   string          `json:"demandKey"`
	ConsumerKey string          `json:"consumerKey"`
	StoreKey    string          `json:"storeKey"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	Quantity    int64           `json:"quantity"`
}

// NewProposal builds an opened proposal from a parsed field map.
func NewProposal(fields FieldMap, ownerKey, source, locale string, now time.Time) *Proposal {
	p := &Proposal{
		Command: Command{
			OwnerKey:  ownerKey,
			Source:    source,
			Locale:    locale,
			State:     StateOpened,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		},
		Quantity: DefaultQuantity,
	}
	p.ApplyFields(fields, now)
	return p
}

// ApplyFields copies the proposal-relevant entries of a field map onto the
// entity. State handling is the caller's concern.
func (p *Proposal) ApplyFields(fields FieldMap, now time.Time) {
	if fields.Has(FieldQuantity) {
		p.Quantity = fields.Long(FieldQuantity)
	}
	if fields.Has(FieldPrice) {
		p.Price = fields.Decimal(FieldPrice)
	}
	if fields.Has(FieldTotal) {
		p.Total = fields.Decimal(FieldTotal)
	}
	if fields.Has(FieldStore) {
		p.StoreKey = fields.String(FieldStore)
	}
	if fields.Has(FieldCriteria) {
		p.ResetCriteria(fields.Strings(FieldCriteria))
	}
	for _, tag := range fields.Strings(FieldCriteriaAdd) {
		p.AddCriterion(tag)
	}
	for _, tag := range fields.Strings(FieldCriteriaRemove) {
		p.RemoveCriterion(tag)
	}
	p.Touch(now)
}
