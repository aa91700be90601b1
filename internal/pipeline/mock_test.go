package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/clarusrisk/diligence-cli/internal/model"
	"github.com/clarusrisk/diligence-cli/internal/store"
)

// memStore is an in-memory Store for runner tests.
type memStore struct {
	mu        sync.Mutex
	companies map[string]*model.Company
	checks    []*model.Check
	events    []model.CheckEvent
	subs      []model.MonitoringSubscription
	scores    map[string]int

	saveErr error
}

func newMemStore() *memStore {
	return &memStore{
		companies: map[string]*model.Company{},
		scores:    map[string]int{},
	}
}

func (m *memStore) addCompany(c *model.Company) *model.Company {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CurrentStatus == "" {
		c.CurrentStatus = model.StatusUnknown
	}
	m.companies[c.ID] = c
	return c
}

func (m *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCompany(c)
	return nil
}

func (m *memStore) UpdateCompany(_ context.Context, c *model.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[c.ID]; !ok {
		return eris.Errorf("company not found: %s", c.ID)
	}
	m.companies[c.ID] = c
	return nil
}

func (m *memStore) GetCompany(_ context.Context, id string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (m *memStore) FindCompanyByVAT(_ context.Context, vat string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.VATNumber == vat {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindCompanyByName(_ context.Context, name string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.Name == name {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListCompanies(_ context.Context, _ store.CompanyFilter) ([]model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Company
	for _, c := range m.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) SaveCheck(_ context.Context, check *model.Check, score int, event *model.CheckEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c, ok := m.companies[check.CompanyID]
	if !ok {
		return eris.Errorf("company not found: %s", check.CompanyID)
	}
	m.checks = append(m.checks, check)
	m.scores[check.CompanyID] = score
	c.CurrentStatus = check.Status
	c.ConfidenceScore = score
	if event != nil {
		m.events = append(m.events, *event)
	}
	return nil
}

func (m *memStore) GetCompanyChecks(_ context.Context, companyID string, _ int) ([]model.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Check
	for _, ch := range m.checks {
		if ch.CompanyID == companyID {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (m *memStore) ListEvents(_ context.Context, companyID string, _ int) ([]model.CheckEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CheckEvent
	for _, e := range m.events {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CreateSubscription(_ context.Context, sub *model.MonitoringSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *memStore) ListEnabledSubscriptions(_ context.Context) ([]model.MonitoringSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MonitoringSubscription
	for _, s := range m.subs {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// stubAdapter is a scriptable adapter for runner tests.
type stubAdapter struct {
	name     string
	gateErr  error
	result   model.CheckResult
	fetchErr error
	panics   bool

	mu      sync.Mutex
	fetches int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Ready(model.Query) error { return s.gateErr }

func (s *stubAdapter) Fetch(_ context.Context, _ model.Query) (model.CheckResult, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	if s.panics {
		panic("stub exploded")
	}
	if s.fetchErr != nil {
		return model.CheckResult{}, s.fetchErr
	}
	return s.result, nil
}

func (s *stubAdapter) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []struct{ from, to model.Status }
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, from, to model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct{ from, to model.Status }{from, to})
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
