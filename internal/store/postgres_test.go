package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCompany(context.Background(), "missing-id")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCompanyByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE name = \$1`).
		WithArgs("Nonexistent GmbH").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.FindCompanyByName(context.Background(), "Nonexistent GmbH")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO companies`).
		WithArgs(pgxmock.AnyArg(), "DE123456789", "", "Siemens AG", "DE", "", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "unknown", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &model.Company{VATNumber: "DE123456789", Name: "Siemens AG", Country: "DE"}
	require.NoError(t, s.CreateCompany(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.StatusUnknown, c.CurrentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE companies SET`).
		WithArgs("", "", "", "", "", "", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCompany(context.Background(), &model.Company{ID: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCheck_CommitsTransaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checks`).
		WithArgs(pgxmock.AnyArg(), "company-1", "warning", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO check_results`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "vies", "warning",
			pgxmock.AnyArg(), "VAT not valid", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE companies SET current_status`).
		WithArgs("warning", 90, pgxmock.AnyArg(), "company-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO check_events`).
		WithArgs(pgxmock.AnyArg(), "company-1", model.EventStatusChanged,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	check := &model.Check{
		CompanyID: "company-1",
		Status:    model.StatusWarning,
		Results: []model.CheckResult{
			{Source: "vies", Status: model.StatusWarning, Note: "VAT not valid"},
		},
	}
	event := model.NewStatusChangedEvent("company-1", model.StatusOK, model.StatusWarning)
	require.NoError(t, s.SaveCheck(context.Background(), check, 90, &event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCheck_RollsBackOnMissingCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checks`).
		WithArgs(pgxmock.AnyArg(), "ghost", "ok", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE companies SET current_status`).
		WithArgs("ok", 100, pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	check := &model.Check{CompanyID: "ghost", Status: model.StatusOK}
	err := s.SaveCheck(context.Background(), check, 100, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEnabledSubscriptions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "company_id", "notify_by", "enabled", "created_at"}).
		AddRow("sub-1", "company-1", "webhook", true, time.Now().UTC())
	mock.ExpectQuery(`SELECT .+ FROM monitoring_subscriptions`).
		WillReturnRows(rows)

	subs, err := s.ListEnabledSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "company-1", subs[0].CompanyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
