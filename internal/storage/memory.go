// internal/storage/memory.go
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
)

// Memory is an in-process Store used by tests and the end-to-end suite.
// It honors the same single-range-attribute query contract as the real
// backing stores, and hands out copies so callers never share state with
// the "persisted" rows.
type Memory struct {
	mu             sync.RWMutex
	locations      map[string]*models.Location
	stores         map[string]*models.Store
	saleAssociates map[string]*models.SaleAssociate
	demands        map[string]*models.Demand
	proposals      map[string]*models.Proposal
	rawCommands    map[string]*models.RawCommand
}

func NewMemory() *Memory {
	return &Memory{
		locations:      map[string]*models.Location{},
		stores:         map[string]*models.Store{},
		saleAssociates: map[string]*models.SaleAssociate{},
		demands:        map[string]*models.Demand{},
		proposals:      map[string]*models.Proposal{},
		rawCommands:    map[string]*models.RawCommand{},
	}
}

func (m *Memory) GetLocation(_ context.Context, key string) (*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindLocation, key)
	}
	return cloneLocation(loc), nil
}

func (m *Memory) GetStore(_ context.Context, key string) (*models.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindStore, key)
	}
	return cloneStore(s), nil
}

func (m *Memory) GetSaleAssociate(_ context.Context, key string) (*models.SaleAssociate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.saleAssociates[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindSaleAssociate, key)
	}
	return cloneSaleAssociate(a), nil
}

func (m *Memory) GetDemand(_ context.Context, key string) (*models.Demand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.demands[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindDemand, key)
	}
	return cloneDemand(d), nil
}

func (m *Memory) GetProposal(_ context.Context, key string) (*models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindProposal, key)
	}
	return cloneProposal(p), nil
}

func (m *Memory) GetRawCommand(_ context.Context, key string) (*models.RawCommand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.rawCommands[key]
	if !ok {
		return nil, apperrors.NewInvalidIdentifierError(KindRawCommand, key)
	}
	clone := *rc
	return &clone, nil
}

func (m *Memory) SaveLocation(_ context.Context, loc *models.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc.Key == "" {
		loc.Key = uuid.NewString()
	}
	m.locations[loc.Key] = cloneLocation(loc)
	return nil
}

func (m *Memory) SaveStore(_ context.Context, s *models.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Key == "" {
		s.Key = uuid.NewString()
	}
	m.stores[s.Key] = cloneStore(s)
	return nil
}

func (m *Memory) SaveSaleAssociate(_ context.Context, a *models.SaleAssociate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Key == "" {
		a.Key = uuid.NewString()
	}
	m.saleAssociates[a.Key] = cloneSaleAssociate(a)
	return nil
}

func (m *Memory) SaveDemand(_ context.Context, d *models.Demand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Key == "" {
		d.Key = uuid.NewString()
	}
	m.demands[d.Key] = cloneDemand(d)
	return nil
}

func (m *Memory) SaveProposal(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Key == "" {
		p.Key = uuid.NewString()
	}
	m.proposals[p.Key] = cloneProposal(p)
	return nil
}

func (m *Memory) SaveRawCommand(_ context.Context, rc *models.RawCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc.Key == "" {
		rc.Key = uuid.NewString()
	}
	clone := *rc
	m.rawCommands[rc.Key] = &clone
	return nil
}

func (m *Memory) QueryLocations(_ context.Context, q Query) ([]*models.Location, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Location
	for _, loc := range m.locations {
		if matchFilters(q.Filters, locationAttr(loc)) {
			out = append(out, cloneLocation(loc))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) QueryStores(_ context.Context, q Query) ([]*models.Store, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Store
	for _, s := range m.stores {
		if matchFilters(q.Filters, storeAttr(s)) {
			out = append(out, cloneStore(s))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) QuerySaleAssociates(_ context.Context, q Query) ([]*models.SaleAssociate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.SaleAssociate
	for _, a := range m.saleAssociates {
		if matchFilters(q.Filters, saleAssociateAttr(a)) {
			out = append(out, cloneSaleAssociate(a))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) QueryDemands(_ context.Context, q Query) ([]*models.Demand, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Demand
	for _, d := range m.demands {
		if matchFilters(q.Filters, demandAttr(d)) {
			out = append(out, cloneDemand(d))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) QueryProposals(_ context.Context, q Query) ([]*models.Proposal, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Proposal
	for _, p := range m.proposals {
		if matchFilters(q.Filters, proposalAttr(p)) {
			out = append(out, cloneProposal(p))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

// attribute accessors shared with the filter evaluator

func locationAttr(l *models.Location) func(string) (interface{}, bool) {
	return func(attr string) (interface{}, bool) {
		switch attr {
		case "postalCode":
			return l.PostalCode, true
		case "countryCode":
			return l.CountryCode, true
		case "latitude":
			return l.Latitude, true
		case "longitude":
			return l.Longitude, true
		case "hasStore":
			return l.HasStore, true
		}
		return nil, false
	}
}

func storeAttr(s *models.Store) func(string) (interface{}, bool) {
	return func(attr string) (interface{}, bool) {
		switch attr {
		case "locationKey":
			return s.LocationKey, true
		case "hasEmployees":
			return s.HasEmployees, true
		}
		return nil, false
	}
}

func saleAssociateAttr(a *models.SaleAssociate) func(string) (interface{}, bool) {
	return func(attr string) (interface{}, bool) {
		switch attr {
		case "storeKey":
			return a.StoreKey, true
		case "consumerKey":
			return a.ConsumerKey, true
		case "locationKey":
			return a.LocationKey, true
		}
		return nil, false
	}
}

func demandAttr(d *models.Demand) func(string) (interface{}, bool) {
	return func(attr string) (interface{}, bool) {
		switch attr {
		case "ownerKey":
			return d.OwnerKey, true
		case "state":
			return string(d.State), true
		case "reference":
			return d.Reference, true
		case "expiration":
			return d.Expiration, true
		case "updatedAt":
			return d.UpdatedAt, true
		}
		return nil, false
	}
}

func proposalAttr(p *models.Proposal) func(string) (interface{}, bool) {
	return func(attr string) (interface{}, bool) {
		switch attr {
		case "ownerKey":
			return p.OwnerKey, true
		case "demandKey":
			return p.DemandKey, true
		case "consumerKey":
			return p.ConsumerKey, true
		case "state":
			return string(p.State), true
		}
		return nil, false
	}
}

func matchFilters(filters []Filter, attr func(string) (interface{}, bool)) bool {
	for _, f := range filters {
		value, ok := attr(f.Attr)
		if !ok {
			return false
		}
		if !compare(value, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func compare(have interface{}, op Op, want interface{}) bool {
	switch h := have.(type) {
	case string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		return compareOrdered(op, compareStrings(h, w))
	case bool:
		w, ok := want.(bool)
		return ok && op == OpEq && h == w
	case int64:
		w, ok := toFloat(want)
		return ok && compareOrdered(op, compareFloats(float64(h), w))
	case float64:
		w, ok := toFloat(want)
		return ok && compareOrdered(op, compareFloats(h, w))
	case time.Time:
		w, ok := want.(time.Time)
		if !ok {
			return false
		}
		switch {
		case h.Before(w):
			return compareOrdered(op, -1)
		case h.After(w):
			return compareOrdered(op, 1)
		}
		return compareOrdered(op, 0)
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOrdered(op Op, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpGE:
		return cmp >= 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpLT:
		return cmp < 0
	}
	return false
}

// clone helpers keep callers isolated from stored rows

func cloneLocation(l *models.Location) *models.Location {
	clone := *l
	return &clone
}

func cloneStore(s *models.Store) *models.Store {
	clone := *s
	return &clone
}

func cloneSaleAssociate(a *models.SaleAssociate) *models.SaleAssociate {
	clone := *a
	clone.Criteria = append([]string(nil), a.Criteria...)
	return &clone
}

func cloneDemand(d *models.Demand) *models.Demand {
	clone := *d
	clone.Criteria = append([]string(nil), d.Criteria...)
	clone.ProposalKeys = append([]string(nil), d.ProposalKeys...)
	clone.SaleAssociateKeys = append([]string(nil), d.SaleAssociateKeys...)
	return &clone
}

func cloneProposal(p *models.Proposal) *models.Proposal {
	clone := *p
	clone.Criteria = append([]string(nil), p.Criteria...)
	return &clone
}
