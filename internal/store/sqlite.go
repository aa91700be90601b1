package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Pragmas ride on the DSN so every pooled connection gets them; foreign_keys
// in particular is per-connection and backs the schema's cascade deletes.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                  TEXT PRIMARY KEY,
	vat_number          TEXT NOT NULL DEFAULT '',
	registration_number TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	requester           TEXT,
	raw_source          TEXT,
	current_status      TEXT NOT NULL DEFAULT 'unknown',
	confidence_score    INTEGER NOT NULL DEFAULT 0,
	last_checked        DATETIME,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS checks (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	status     TEXT NOT NULL DEFAULT 'unknown',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS check_results (
	id         TEXT PRIMARY KEY,
	check_id   TEXT NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL,
	details    TEXT,
	note       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS check_events (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS monitoring_subscriptions (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	notify_by  TEXT NOT NULL DEFAULT 'webhook',
	enabled    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_vat ON companies(vat_number);
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_checks_company_id ON checks(company_id);
CREATE INDEX IF NOT EXISTS idx_check_results_check_id ON check_results(check_id);
CREATE INDEX IF NOT EXISTS idx_check_events_company_id ON check_events(company_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_company_id ON monitoring_subscriptions(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.CurrentStatus == "" {
		c.CurrentStatus = model.StatusUnknown
	}

	requesterJSON, err := marshalNullable(c.Requester)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal requester")
	}
	rawJSON, err := marshalNullable(c.RawSource)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal raw source")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, vat_number, registration_number, name, country, address, website,
			requester, raw_source, current_status, confidence_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VATNumber, c.RegistrationNumber, c.Name, c.Country, c.Address, c.Website,
		requesterJSON, rawJSON, string(c.CurrentStatus), c.ConfidenceScore, c.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert company")
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	rawJSON, err := marshalNullable(c.RawSource)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal raw source")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET vat_number = ?, registration_number = ?, name = ?, country = ?,
			address = ?, website = ?, raw_source = ? WHERE id = ?`,
		c.VATNumber, c.RegistrationNumber, c.Name, c.Country, c.Address, c.Website, rawJSON, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company %s", c.ID)
	}
	return checkRowsAffected(res, "company", c.ID)
}

const companyColumns = `id, vat_number, registration_number, name, country, address, website,
	requester, raw_source, current_status, confidence_score, last_checked, created_at`

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

func (s *SQLiteStore) FindCompanyByVAT(ctx context.Context, vat string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE vat_number = ? ORDER BY created_at LIMIT 1`, vat)
	return scanCompany(row)
}

func (s *SQLiteStore) FindCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = ? ORDER BY created_at LIMIT 1`, name)
	return scanCompany(row)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (name LIKE ? OR vat_number LIKE ?)`
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) SaveCheck(ctx context.Context, check *model.Check, score int, event *model.CheckEvent) error {
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checks (id, company_id, status, created_at) VALUES (?, ?, ?, ?)`,
		check.ID, check.CompanyID, string(check.Status), check.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert check")
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
			return eris.Wrapf(err, "sqlite: marshal details for %s", r.Source)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_results (id, check_id, source, status, details, note, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, check.ID, r.Source, string(r.Status), string(detailsJSON), r.Note, i, r.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.Source)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE companies SET current_status = ?, confidence_score = ?, last_checked = ? WHERE id = ?`,
		string(check.Status), score, check.CreatedAt, check.CompanyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company status %s", check.CompanyID)
	}
	if err := checkRowsAffected(res, "company", check.CompanyID); err != nil {
		return err
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
			return eris.Wrap(err, "sqlite: marshal event payload")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_events (id, company_id, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
			event.ID, event.CompanyID, event.EventType, string(payloadJSON), event.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert event")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit check")
}

func (s *SQLiteStore) GetCompanyChecks(ctx context.Context, companyID string, limit int) ([]model.Check, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, status, created_at FROM checks
		 WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list checks")
	}
	defer rows.Close()

	var checks []model.Check
	for rows.Next() {
		var c model.Check
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan check")
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list checks iterate")
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

func (s *SQLiteStore) checkResults(ctx context.Context, checkID string) ([]model.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, check_id, source, status, details, note, created_at FROM check_results
		 WHERE check_id = ? ORDER BY position`,
		checkID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.CheckResult
	for rows.Next() {
		var r model.CheckResult
		var detailsJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.CheckID, &r.Source, &r.Status, &detailsJSON, &r.Note, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &r.Data); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal details")
			}
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, companyID string, limit int) ([]model.CheckEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, event_type, payload, created_at FROM check_events
		 WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.CheckEvent
	for rows.Next() {
		var e model.CheckEvent
		var payloadJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.EventType, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if payloadJSON.Valid {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal payload")
			}
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) CreateSubscription(ctx context.Context, sub *model.MonitoringSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitoring_subscriptions (id, company_id, notify_by, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.CompanyID, sub.NotifyBy, sub.Enabled, sub.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert subscription")
}

func (s *SQLiteStore) ListEnabledSubscriptions(ctx context.Context) ([]model.MonitoringSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, notify_by, enabled, created_at FROM monitoring_subscriptions
		 WHERE enabled = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subscriptions")
	}
	defer rows.Close()

	var subs []model.MonitoringSubscription
	for rows.Next() {
		var sub model.MonitoringSubscription
		if err := rows.Scan(&sub.ID, &sub.CompanyID, &sub.NotifyBy, &sub.Enabled, &sub.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subscription")
		}
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list subscriptions iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case *model.Requester:
		if t == nil {
			return sql.NullString{}, nil
		}
	case map[string]any:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var requesterJSON, rawJSON sql.NullString
	var lastChecked sql.NullTime

	err := row.Scan(&c.ID, &c.VATNumber, &c.RegistrationNumber, &c.Name, &c.Country,
		&c.Address, &c.Website, &requesterJSON, &rawJSON, &c.CurrentStatus,
		&c.ConfidenceScore, &lastChecked, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}

	if requesterJSON.Valid {
		c.Requester = &model.Requester{}
		if err := json.Unmarshal([]byte(requesterJSON.String), c.Requester); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal requester")
		}
	}
	if rawJSON.Valid {
		if err := json.Unmarshal([]byte(rawJSON.String), &c.RawSource); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal raw source")
		}
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		c.LastChecked = &t
	}
	return &c, nil
}
