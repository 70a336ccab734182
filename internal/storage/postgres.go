// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"demand-broker/internal/common/database"
	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/models"
)

// Postgres implements Store on top of the shared PostgresClient. Criteria
// and key lists are persisted as JSONB; money columns are NUMERIC scanned
// through their string form.
type Postgres struct {
	db *database.PostgresClient
}

func NewPostgres(db *database.PostgresClient) *Postgres {
	return &Postgres{db: db}
}

// column whitelists shared by the query builder; attribute names are the
// ones the domain layer uses in filters.
var (
	locationColumns = map[string]string{
		"postalCode":  "postal_code",
		"countryCode": "country_code",
		"latitude":    "latitude",
		"longitude":   "longitude",
		"hasStore":    "has_store",
	}
	storeColumns = map[string]string{
		"locationKey":  "location_key",
		"hasEmployees": "has_employees",
	}
	saleAssociateColumns = map[string]string{
		"storeKey":    "store_key",
		"consumerKey": "consumer_key",
		"locationKey": "location_key",
	}
	demandColumns = map[string]string{
		"ownerKey":   "owner_key",
		"state":      "state",
		"reference":  "reference",
		"expiration": "expiration",
		"updatedAt":  "updated_at",
	}
	proposalColumns = map[string]string{
		"ownerKey":    "owner_key",
		"demandKey":   "demand_key",
		"consumerKey": "consumer_key",
		"state":       "state",
	}
)

// buildWhere renders validated filters into a WHERE clause. Unknown
// attributes are rejected rather than silently dropped.
func buildWhere(q Query, columns map[string]string) (string, []interface{}, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	var (
		clauses []string
		args    []interface{}
	)
	for _, f := range q.Filters {
		col, ok := columns[f.Attr]
		if !ok {
			return "", nil, fmt.Errorf("storage: unknown filter attribute %q", f.Attr)
		}
		args = append(args, f.Value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, f.Op, len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	if q.Limit > 0 {
		where += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return where, args, nil
}

func (s *Postgres) GetLocation(ctx context.Context, key string) (*models.Location, error) {
	row := s.db.QueryRow(ctx, `
		SELECT key, postal_code, country_code, latitude, longitude, has_store, created_at
		FROM locations WHERE key = $1`, key)
	loc, err := scanLocation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindLocation, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get location", err)
	}
	return loc, nil
}

func (s *Postgres) SaveLocation(ctx context.Context, loc *models.Location) error {
	if loc.Key == "" {
		loc.Key = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO locations (key, postal_code, country_code, latitude, longitude, has_store, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			has_store = EXCLUDED.has_store`,
		loc.Key, loc.PostalCode, loc.CountryCode, loc.Latitude, loc.Longitude, loc.HasStore, loc.CreatedAt)
	if err != nil {
		return apperrors.NewDataAccessError("save location", err)
	}
	return nil
}

func (s *Postgres) QueryLocations(ctx context.Context, q Query) ([]*models.Location, error) {
	where, args, err := buildWhere(q, locationColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT key, postal_code, country_code, latitude, longitude, has_store, created_at
		FROM locations`+where, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError("query locations", err)
	}
	defer rows.Close()

	var out []*models.Location
	for rows.Next() {
		loc, err := scanLocation(rows.Scan)
		if err != nil {
			return nil, apperrors.NewDataAccessError("scan location", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func scanLocation(scan func(...interface{}) error) (*models.Location, error) {
	var loc models.Location
	err := scan(&loc.Key, &loc.PostalCode, &loc.CountryCode,
		&loc.Latitude, &loc.Longitude, &loc.HasStore, &loc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *Postgres) GetStore(ctx context.Context, key string) (*models.Store, error) {
	row := s.db.QueryRow(ctx, `
		SELECT key, location_key, name, address, phone_number, email, has_employees, created_at, updated_at
		FROM stores WHERE key = $1`, key)
	st, err := scanStore(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindStore, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get store", err)
	}
	return st, nil
}

func (s *Postgres) SaveStore(ctx context.Context, st *models.Store) error {
	if st.Key == "" {
		st.Key = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO stores (key, location_key, name, address, phone_number, email, has_employees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			location_key = EXCLUDED.location_key,
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			phone_number = EXCLUDED.phone_number,
			email = EXCLUDED.email,
			has_employees = EXCLUDED.has_employees,
			updated_at = EXCLUDED.updated_at`,
		st.Key, st.LocationKey, st.Name, st.Address, st.PhoneNumber, st.Email,
		st.HasEmployees, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return apperrors.NewDataAccessError("save store", err)
	}
	return nil
}

func (s *Postgres) QueryStores(ctx context.Context, q Query) ([]*models.Store, error) {
	where, args, err := buildWhere(q, storeColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT key, location_key, name, address, phone_number, email, has_employees, created_at, updated_at
		FROM stores`+where, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError("query stores", err)
	}
	defer rows.Close()

	var out []*models.Store
	for rows.Next() {
		st, err := scanStore(rows.Scan)
		if err != nil {
			return nil, apperrors.NewDataAccessError("scan store", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStore(scan func(...interface{}) error) (*models.Store, error) {
	var st models.Store
	err := scan(&st.Key, &st.LocationKey, &st.Name, &st.Address,
		&st.PhoneNumber, &st.Email, &st.HasEmployees, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Postgres) GetSaleAssociate(ctx context.Context, key string) (*models.SaleAssociate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT key, consumer_key, store_key, location_key, criteria, is_store_admin, score, locale, created_at, updated_at
		FROM sale_associates WHERE key = $1`, key)
	a, err := scanSaleAssociate(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindSaleAssociate, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get sale associate", err)
	}
	return a, nil
}

func (s *Postgres) SaveSaleAssociate(ctx context.Context, a *models.SaleAssociate) error {
	if a.Key == "" {
		a.Key = uuid.NewString()
	}
	criteria, err := json.Marshal(a.Criteria)
	if err != nil {
		return apperrors.NewDataAccessError("marshal sale associate criteria", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO sale_associates (key, consumer_key, store_key, location_key, criteria, is_store_admin, score, locale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			store_key = EXCLUDED.store_key,
			location_key = EXCLUDED.location_key,
			criteria = EXCLUDED.criteria,
			is_store_admin = EXCLUDED.is_store_admin,
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at`,
		a.Key, a.ConsumerKey, a.StoreKey, a.LocationKey, criteria,
		a.IsStoreAdmin, a.Score, a.Locale, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return apperrors.NewDataAccessError("save sale associate", err)
	}
	return nil
}

func (s *Postgres) QuerySaleAssociates(ctx context.Context, q Query) ([]*models.SaleAssociate, error) {
	where, args, err := buildWhere(q, saleAssociateColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT key, consumer_key, store_key, location_key, criteria, is_store_admin, score, locale, created_at, updated_at
		FROM sale_associates`+where, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError("query sale associates", err)
	}
	defer rows.Close()

	var out []*models.SaleAssociate
	for rows.Next() {
		a, err := scanSaleAssociate(rows.Scan)
		if err != nil {
			return nil, apperrors.NewDataAccessError("scan sale associate", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSaleAssociate(scan func(...interface{}) error) (*models.SaleAssociate, error) {
	var (
		a        models.SaleAssociate
		criteria []byte
	)
	err := scan(&a.Key, &a.ConsumerKey, &a.StoreKey, &a.LocationKey, &criteria,
		&a.IsStoreAdmin, &a.Score, &a.Locale, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteria, &a.Criteria); err != nil {
		a.Criteria = nil
	}
	return &a, nil
}

func (s *Postgres) GetDemand(ctx context.Context, key string) (*models.Demand, error) {
	row := s.db.QueryRow(ctx, demandSelect+` WHERE key = $1`, key)
	d, err := scanDemand(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindDemand, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get demand", err)
	}
	return d, nil
}

const demandSelect = `
	SELECT key, owner_key, location_key, source, state, raw_command_key, criteria,
	       canceler_key, locale, created_at, updated_at, reference, quantity,
	       expiration, range_value, range_unit, proposal_keys, sale_associate_keys
	FROM demands`

func (s *Postgres) SaveDemand(ctx context.Context, d *models.Demand) error {
	if d.Key == "" {
		d.Key = uuid.NewString()
	}
	criteria, err := json.Marshal(d.Criteria)
	if err != nil {
		return apperrors.NewDataAccessError("marshal demand criteria", err)
	}
	proposalKeys, err := json.Marshal(d.ProposalKeys)
	if err != nil {
		return apperrors.NewDataAccessError("marshal demand proposal keys", err)
	}
	associateKeys, err := json.Marshal(d.SaleAssociateKeys)
	if err != nil {
		return apperrors.NewDataAccessError("marshal demand associate keys", err)
	}
	var expiration interface{}
	if !d.Expiration.IsZero() {
		expiration = d.Expiration
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO demands (key, owner_key, location_key, source, state, raw_command_key,
			criteria, canceler_key, locale, created_at, updated_at, reference, quantity,
			expiration, range_value, range_unit, proposal_keys, sale_associate_keys)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (key) DO UPDATE SET
			location_key = EXCLUDED.location_key,
			state = EXCLUDED.state,
			criteria = EXCLUDED.criteria,
			canceler_key = EXCLUDED.canceler_key,
			updated_at = EXCLUDED.updated_at,
			quantity = EXCLUDED.quantity,
			expiration = EXCLUDED.expiration,
			range_value = EXCLUDED.range_value,
			range_unit = EXCLUDED.range_unit,
			proposal_keys = EXCLUDED.proposal_keys,
			sale_associate_keys = EXCLUDED.sale_associate_keys`,
		d.Key, d.OwnerKey, d.LocationKey, d.Source, string(d.State), d.RawCommandKey,
		criteria, d.CancelerKey, d.Locale, d.CreatedAt, d.UpdatedAt, d.Reference,
		d.Quantity, expiration, d.Range, d.RangeUnit, proposalKeys, associateKeys)
	if err != nil {
		return apperrors.NewDataAccessError("save demand", err)
	}
	return nil
}

func (s *Postgres) QueryDemands(ctx context.Context, q Query) ([]*models.Demand, error) {
	where, args, err := buildWhere(q, demandColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, demandSelect+where, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError("query demands", err)
	}
	defer rows.Close()

	var out []*models.Demand
	for rows.Next() {
		d, err := scanDemand(rows.Scan)
		if err != nil {
			return nil, apperrors.NewDataAccessError("scan demand", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDemand(scan func(...interface{}) error) (*models.Demand, error) {
	var (
		d             models.Demand
		criteria      []byte
		proposalKeys  []byte
		associateKeys []byte
		state         string
		expiration    sql.NullTime
	)
	err := scan(&d.Key, &d.OwnerKey, &d.LocationKey, &d.Source, &state, &d.RawCommandKey,
		&criteria, &d.CancelerKey, &d.Locale, &d.CreatedAt, &d.UpdatedAt, &d.Reference,
		&d.Quantity, &expiration, &d.Range, &d.RangeUnit, &proposalKeys, &associateKeys)
	if err != nil {
		return nil, err
	}
	d.State = models.State(state)
	if expiration.Valid {
		d.Expiration = expiration.Time
	}
	_ = json.Unmarshal(criteria, &d.Criteria)
	_ = json.Unmarshal(proposalKeys, &d.ProposalKeys)
	_ = json.Unmarshal(associateKeys, &d.SaleAssociateKeys)
	return &d, nil
}

func (s *Postgres) GetProposal(ctx context.Context, key string) (*models.Proposal, error) {
	row := s.db.QueryRow(ctx, proposalSelect+` WHERE key = $1`, key)
	p, err := scanProposal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindProposal, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get proposal", err)
	}
	return p, nil
}

const proposalSelect = `
	SELECT key, owner_key, location_key, source, state, raw_command_key, criteria,
	       canceler_key, locale, created_at, updated_at, demand_key, consumer_key,
	       store_key, price, total, quantity
	FROM proposals`

func (s *Postgres) SaveProposal(ctx context.Context, p *models.Proposal) error {
	if p.Key == "" {
		p.Key = uuid.NewString()
	}
	criteria, err := json.Marshal(p.Criteria)
	if err != nil {
		return apperrors.NewDataAccessError("marshal proposal criteria", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO proposals (key, owner_key, location_key, source, state, raw_command_key,
			criteria, canceler_key, locale, created_at, updated_at, demand_key, consumer_key,
			store_key, price, total, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (key) DO UPDATE SET
			state = EXCLUDED.state,
			criteria = EXCLUDED.criteria,
			canceler_key = EXCLUDED.canceler_key,
			updated_at = EXCLUDED.updated_at,
			demand_key = EXCLUDED.demand_key,
			store_key = EXCLUDED.store_key,
			price = EXCLUDED.price,
			total = EXCLUDED.total,
			quantity = EXCLUDED.quantity`,
		p.Key, p.OwnerKey, p.LocationKey, p.Source, string(p.State), p.RawCommandKey,
		criteria, p.CancelerKey, p.Locale, p.CreatedAt, p.UpdatedAt, p.DemandKey,
		p.ConsumerKey, p.StoreKey, p.Price.String(), p.Total.String(), p.Quantity)
	if err != nil {
		return apperrors.NewDataAccessError("save proposal", err)
	}
	return nil
}

func (s *Postgres) QueryProposals(ctx context.Context, q Query) ([]*models.Proposal, error) {
	where, args, err := buildWhere(q, proposalColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, proposalSelect+where, args...)
	if err != nil {
		return nil, apperrors.NewDataAccessError("query proposals", err)
	}
	defer rows.Close()

	var out []*models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, apperrors.NewDataAccessError("scan proposal", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProposal(scan func(...interface{}) error) (*models.Proposal, error) {
	var (
		p        models.Proposal
		criteria []byte
		state    string
		price    string
		total    string
	)
	err := scan(&p.Key, &p.OwnerKey, &p.LocationKey, &p.Source, &state, &p.RawCommandKey,
		&criteria, &p.CancelerKey, &p.Locale, &p.CreatedAt, &p.UpdatedAt, &p.DemandKey,
		&p.ConsumerKey, &p.StoreKey, &price, &total, &p.Quantity)
	if err != nil {
		return nil, err
	}
	p.State = models.State(state)
	_ = json.Unmarshal(criteria, &p.Criteria)
	if v, err := decimal.NewFromString(price); err == nil {
		p.Price = v
	}
	if v, err := decimal.NewFromString(total); err == nil {
		p.Total = v
	}
	return &p, nil
}

func (s *Postgres) GetRawCommand(ctx context.Context, key string) (*models.RawCommand, error) {
	var rc models.RawCommand
	err := s.db.QueryRow(ctx, `
		SELECT key, command, source, emitter, locale, created_at
		FROM raw_commands WHERE key = $1`, key).
		Scan(&rc.Key, &rc.Command, &rc.Source, &rc.Emitter, &rc.Locale, &rc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInvalidIdentifierError(KindRawCommand, key)
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get raw command", err)
	}
	return &rc, nil
}

func (s *Postgres) SaveRawCommand(ctx context.Context, rc *models.RawCommand) error {
	if rc.Key == "" {
		rc.Key = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO raw_commands (key, command, source, emitter, locale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`,
		rc.Key, rc.Command, rc.Source, rc.Emitter, rc.Locale, rc.CreatedAt)
	if err != nil {
		return apperrors.NewDataAccessError("save raw command", err)
	}
	return nil
}
