package store

import (
	"context"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// CompanyFilter specifies criteria for listing companies.
type CompanyFilter struct {
	Query string `json:"q,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the check pipeline. Lookup
// methods return (nil, nil) when the entity does not exist; only real faults
// surface as errors.
type Store interface {
	// Companies
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	FindCompanyByVAT(ctx context.Context, vat string) (*model.Company, error)
	FindCompanyByName(ctx context.Context, name string) (*model.Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)

	// Checks. SaveCheck commits one run atomically: the check row, its
	// ordered results, the company's new status/score/last-checked, and the
	// optional transition event all land in a single transaction.
	SaveCheck(ctx context.Context, check *model.Check, score int, event *model.CheckEvent) error
	GetCompanyChecks(ctx context.Context, companyID string, limit int) ([]model.Check, error)

	// Events
	ListEvents(ctx context.Context, companyID string, limit int) ([]model.CheckEvent, error)

	// Monitoring
	CreateSubscription(ctx context.Context, sub *model.MonitoringSubscription) error
	ListEnabledSubscriptions(ctx context.Context) ([]model.MonitoringSubscription, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
