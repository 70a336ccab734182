// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"demand-broker/internal/models"
)

// Entity kind names, used in error messages and table routing.
const (
	KindLocation      = "location"
	KindStore         = "store"
	KindSaleAssociate = "saleAssociate"
	KindDemand        = "demand"
	KindProposal      = "proposal"
	KindRawCommand    = "rawCommand"
)

// Op is a filter operator. The backing store supports any number of
// equality filters but only a single attribute with range operators per
// query; the matching engine is designed around that limitation.
type Op string

const (
	OpEq Op = "="
	OpGE Op = ">="
	OpLE Op = "<="
	OpGT Op = ">"
	OpLT Op = "<"
)

// Filter constrains one attribute.
type Filter struct {
	Attr  string
	Op    Op
	Value interface{}
}

// Query is a filtered find with an optional limit (0 = no limit).
type Query struct {
	Filters []Filter
	Limit   int
}

// ErrMultipleRangeAttrs is returned when a query carries range filters on
// more than one attribute.
var ErrMultipleRangeAttrs = errors.New("storage: at most one attribute may carry a range filter")

// Validate enforces the single-range-attribute contract. Both bounds of a
// between (>= and <= on the same attribute) count as one.
func (q Query) Validate() error {
	rangeAttr := ""
	for _, f := range q.Filters {
		if f.Op == OpEq {
			continue
		}
		if rangeAttr == "" {
			rangeAttr = f.Attr
			continue
		}
		if f.Attr != rangeAttr {
			return ErrMultipleRangeAttrs
		}
	}
	return nil
}

// Eq is shorthand for an equality filter.
func Eq(attr string, value interface{}) Filter {
	return Filter{Attr: attr, Op: OpEq, Value: value}
}

// Between produces the two bounds of a closed range on one attribute.
func Between(attr string, lo, hi interface{}) []Filter {
	return []Filter{
		{Attr: attr, Op: OpGE, Value: lo},
		{Attr: attr, Op: OpLE, Value: hi},
	}
}

// Store is the persistence collaborator. Save assigns a key to new
// entities; Get returns an InvalidIdentifierError for unknown keys. Every
// query passes through Validate before execution.
type Store interface {
	GetLocation(ctx context.Context, key string) (*models.Location, error)
	GetStore(ctx context.Context, key string) (*models.Store, error)
	GetSaleAssociate(ctx context.Context, key string) (*models.SaleAssociate, error)
	GetDemand(ctx context.Context, key string) (*models.Demand, error)
	GetProposal(ctx context.Context, key string) (*models.Proposal, error)
	GetRawCommand(ctx context.Context, key string) (*models.RawCommand, error)

	SaveLocation(ctx context.Context, loc *models.Location) error
	SaveStore(ctx context.Context, s *models.Store) error
	SaveSaleAssociate(ctx context.Context, a *models.SaleAssociate) error
	SaveDemand(ctx context.Context, d *models.Demand) error
	SaveProposal(ctx context.Context, p *models.Proposal) error
	SaveRawCommand(ctx context.Context, rc *models.RawCommand) error

	QueryLocations(ctx context.Context, q Query) ([]*models.Location, error)
	QueryStores(ctx context.Context, q Query) ([]*models.Store, error)
	QuerySaleAssociates(ctx context.Context, q Query) ([]*models.SaleAssociate, error)
	QueryDemands(ctx context.Context, q Query) ([]*models.Demand, error)
	QueryProposals(ctx context.Context, q Query) ([]*models.Proposal, error)
}

// Sequencer issues per-owner demand reference numbers.
type Sequencer interface {
	NextDemandReference(ctx context.Context, ownerKey string) (int64, error)
}
