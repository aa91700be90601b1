package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clarusrisk/diligence-cli/internal/db"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_company":       `SELECT ` + pgCompanyColumns + ` FROM companies WHERE id = $1`,
	"find_company_vat":  `SELECT ` + pgCompanyColumns + ` FROM companies WHERE vat_number = $1 ORDER BY created_at LIMIT 1`,
	"find_company_name": `SELECT ` + pgCompanyColumns + ` FROM companies WHERE name = $1 ORDER BY created_at LIMIT 1`,
	"insert_check":      `INSERT INTO checks (id, company_id, status, created_at) VALUES ($1, $2, $3, $4)`,
	"insert_result":     `INSERT INTO check_results (id, check_id, source, status, details, note, position, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"insert_event":      `INSERT INTO check_events (id, company_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
}

const pgCompanyColumns = `id, vat_number, registration_number, name, country, address, website,
	requester, raw_source, current_status, confidence_score, last_checked, created_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vat_number          TEXT NOT NULL DEFAULT '',
	registration_number TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	requester           JSONB,
	raw_source          JSONB,
	current_status      TEXT NOT NULL DEFAULT 'unknown',
	confidence_score    INTEGER NOT NULL DEFAULT 0,
	last_checked        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checks (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	status     TEXT NOT NULL DEFAULT 'unknown',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_results (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	check_id   TEXT NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL,
	details    JSONB,
	note       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitoring_subscriptions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	notify_by  TEXT NOT NULL DEFAULT 'webhook',
	enabled    BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_vat ON companies(vat_number);
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_checks_company_id ON checks(company_id);
CREATE INDEX IF NOT EXISTS idx_check_results_check_id ON check_results(check_id);
CREATE INDEX IF NOT EXISTS idx_check_events_company_id ON check_events(company_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_company_id ON monitoring_subscriptions(company_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.CurrentStatus == "" {
		c.CurrentStatus = model.StatusUnknown
	}

	requesterJSON, err := jsonOrNil(c.Requester != nil, c.Requester)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal requester")
	}
	rawJSON, err := jsonOrNil(c.RawSource != nil, c.RawSource)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal raw source")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, vat_number, registration_number, name, country, address, website,
			requester, raw_source, current_status, confidence_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.VATNumber, c.RegistrationNumber, c.Name, c.Country, c.Address, c.Website,
		requesterJSON, rawJSON, string(c.CurrentStatus), c.ConfidenceScore, c.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert company")
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	rawJSON, err := jsonOrNil(c.RawSource != nil, c.RawSource)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal raw source")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET vat_number = $1, registration_number = $2, name = $3, country = $4,
			address = $5, website = $6, raw_source = $7 WHERE id = $8`,
		c.VATNumber, c.RegistrationNumber, c.Name, c.Country, c.Address, c.Website, rawJSON, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyColumns+` FROM companies WHERE id = $1`, id)
	return scanPgCompany(row)
}

func (s *PostgresStore) FindCompanyByVAT(ctx context.Context, vat string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyColumns+` FROM companies WHERE vat_number = $1 ORDER BY created_at LIMIT 1`, vat)
	return scanPgCompany(row)
}

func (s *PostgresStore) FindCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyColumns+` FROM companies WHERE name = $1 ORDER BY created_at LIMIT 1`, name)
	return scanPgCompany(row)
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + pgCompanyColumns + ` FROM companies WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%d OR vat_number ILIKE $%d)`, argIdx, argIdx+1)
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
		argIdx += 2
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) SaveCheck(ctx context.Context, check *model.Check, score int, event *model.CheckEvent) error {
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO checks (id, company_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		check.ID, check.CompanyID, string(check.Status), check.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert check")
	}

	for i := range check.Results {
		r := &check.Results[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.CheckID = check.ID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = check.CreatedAt
		}
		detailsJSON, err := json.Marshal(r.Details())
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal details for %s", r.Source)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO check_results (id, check_id, source, status, details, note, position, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, check.ID, r.Source, string(r.Status), detailsJSON, r.Note, i, r.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert result %s", r.Source)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE companies SET current_status = $1, confidence_score = $2, last_checked = $3 WHERE id = $4`,
		string(check.Status), score, check.CreatedAt, check.CompanyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company status %s", check.CompanyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", check.CompanyID)
	}

	if event != nil {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = check.CreatedAt
		}
		payloadJSON, err := json.Marshal(event.Payload)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal event payload")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO check_events (id, company_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
			event.ID, event.CompanyID, event.EventType, payloadJSON, event.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert event")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit check")
}

func (s *PostgresStore) GetCompanyChecks(ctx context.Context, companyID string, limit int) ([]model.Check, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, status, created_at FROM checks
		 WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list checks")
	}
	defer rows.Close()

	var checks []model.Check
	for rows.Next() {
		var c model.Check
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan check")
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list checks iterate")
	}

	for i := range checks {
		results, err := s.checkResults(ctx, checks[i].ID)
		if err != nil {
			return nil, err
		}
		checks[i].Results = results
	}
	return checks, nil
}

func (s *PostgresStore) checkResults(ctx context.Context, checkID string) ([]model.CheckResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, check_id, source, status, details, note, created_at FROM check_results
		 WHERE check_id = $1 ORDER BY position`,
		checkID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.CheckResult
	for rows.Next() {
		var r model.CheckResult
		var detailsJSON []byte
		if err := rows.Scan(&r.ID, &r.CheckID, &r.Source, &r.Status, &detailsJSON, &r.Note, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &r.Data); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal details")
			}
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) ListEvents(ctx context.Context, companyID string, limit int) ([]model.CheckEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, event_type, payload, created_at FROM check_events
		 WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.CheckEvent
	for rows.Next() {
		var e model.CheckEvent
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.EventType, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal payload")
			}
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *model.MonitoringSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitoring_subscriptions (id, company_id, notify_by, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.CompanyID, sub.NotifyBy, sub.Enabled, sub.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert subscription")
}

func (s *PostgresStore) ListEnabledSubscriptions(ctx context.Context) ([]model.MonitoringSubscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, notify_by, enabled, created_at FROM monitoring_subscriptions
		 WHERE enabled ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subscriptions")
	}
	defer rows.Close()

	var subs []model.MonitoringSubscription
	for rows.Next() {
		var sub model.MonitoringSubscription
		if err := rows.Scan(&sub.ID, &sub.CompanyID, &sub.NotifyBy, &sub.Enabled, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscription")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list subscriptions iterate")
}

func jsonOrNil(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanPgCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var requesterJSON, rawJSON []byte
	var lastChecked *time.Time

	err := row.Scan(&c.ID, &c.VATNumber, &c.RegistrationNumber, &c.Name, &c.Country,
		&c.Address, &c.Website, &requesterJSON, &rawJSON, &c.CurrentStatus,
		&c.ConfidenceScore, &lastChecked, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan company")
	}

	if len(requesterJSON) > 0 {
		c.Requester = &model.Requester{}
		if err := json.Unmarshal(requesterJSON, c.Requester); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal requester")
		}
	}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &c.RawSource); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal raw source")
		}
	}
	c.LastChecked = lastChecked
	return &c, nil
}
