// internal/models/demand.go
package models

import "time"

// Range units accepted by the command grammar.
const (
	UnitKilometers = "km"
	UnitMiles      = "mi"
)

// DefaultRange applies when a demand omits its search radius.
const (
	DefaultRange     = 25.0
	DefaultRangeUnit = UnitKilometers
	DefaultQuantity  = int64(1)
)

// Demand is a consumer's structured purchase request.
type Demand struct {
	Command

	Reference         int64     `json:"reference"`
	Quantity          int64     `json:"quantity"`
	Expiration        time.Time `json:"expiration"`
	Range             float64   `json:"range"`
	RangeUnit         string    `json:"rangeUnit"`
	ProposalKeys      []string  `json:"proposalKeys"`
	SaleAssociateKeys []string  `json:"saleAssociateKeys"`
}

// NewDemand builds an opened demand from a parsed field map.
func NewDemand(fields FieldMap, ownerKey, source, locale string, now time.Time) *Demand {
	d := &Demand{
		Command: Command{
			OwnerKey:  ownerKey,
			Source:    source,
			Locale:    locale,
			State:     StateOpened,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		},
		Quantity:  DefaultQuantity,
		Range:     DefaultRange,
		RangeUnit: DefaultRangeUnit,
	}
	d.ApplyFields(fields, now)
	return d
}

// ApplyFields copies the demand-relevant entries of a field map onto the
// entity. State handling is the caller's concern.
func (d *Demand) ApplyFields(fields FieldMap, now time.Time) {
	if fields.Has(FieldQuantity) {
		d.Quantity = fields.Long(FieldQuantity)
	}
	if fields.Has(FieldExpiration) {
		d.Expiration = fields.Date(FieldExpiration)
	}
	if fields.Has(FieldRange) {
		d.Range = fields.Double(FieldRange)
	}
	if fields.Has(FieldRangeUnit) {
		d.RangeUnit = fields.String(FieldRangeUnit)
	}
	if fields.Has(FieldCriteria) {
		d.ResetCriteria(fields.Strings(FieldCriteria))
	}
	for _, tag := range fields.Strings(FieldCriteriaAdd) {
		d.AddCriterion(tag)
	}
	for _, tag := range fields.Strings(FieldCriteriaRemove) {
		d.RemoveCriterion(tag)
	}
	d.Touch(now)
}

// AttachProposal records a proposal key, keeping the list duplicate-free.
func (d *Demand) AttachProposal(proposalKey string) {
	for _, k := range d.ProposalKeys {
		if k == proposalKey {
			return
		}
	}
	d.ProposalKeys = append(d.ProposalKeys, proposalKey)
}

// DetachProposal removes a proposal key if present.
func (d *Demand) DetachProposal(proposalKey string) {
	for i, k := range d.ProposalKeys {
		if k == proposalKey {
			d.ProposalKeys = append(d.ProposalKeys[:i], d.ProposalKeys[i+1:]...)
			return
		}
	}
}

// Expired reports whether the demand's expiration date has passed.
func (d *Demand) Expired(now time.Time) bool {
	return !d.Expiration.IsZero() && d.Expiration.Before(now)
}
