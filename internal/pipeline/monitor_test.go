package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/adapter"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

func TestRunMonitoringSweep_ChecksEnabledSubscriptions(t *testing.T) {
	st := newMemStore()
	a := st.addCompany(&model.Company{VATNumber: "DE111", Name: "A"})
	b := st.addCompany(&model.Company{VATNumber: "DE222", Name: "B"})

	require.NoError(t, st.CreateSubscription(context.Background(),
		&model.MonitoringSubscription{CompanyID: a.ID, Enabled: true}))
	require.NoError(t, st.CreateSubscription(context.Background(),
		&model.MonitoringSubscription{CompanyID: b.ID, Enabled: false}))

	stub := &stubAdapter{name: "s", result: okResult("s")}
	r := New(st, nil, []adapter.Adapter{stub}, nil)

	res, err := r.RunMonitoringSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Subscriptions)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, stub.fetchCount())
}

func TestRunMonitoringSweep_DeduplicatesCompanies(t *testing.T) {
	st := newMemStore()
	a := st.addCompany(&model.Company{VATNumber: "DE111", Name: "A"})

	for i := 0; i < 3; i++ {
		require.NoError(t, st.CreateSubscription(context.Background(),
			&model.MonitoringSubscription{CompanyID: a.ID, Enabled: true}))
	}

	stub := &stubAdapter{name: "s", result: okResult("s")}
	r := New(st, nil, []adapter.Adapter{stub}, nil)

	res, err := r.RunMonitoringSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Subscriptions)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, stub.fetchCount())
}

func TestRunMonitoringSweep_CountsTransitions(t *testing.T) {
	st := newMemStore()
	a := st.addCompany(&model.Company{VATNumber: "DE111", Name: "A", CurrentStatus: model.StatusOK})

	require.NoError(t, st.CreateSubscription(context.Background(),
		&model.MonitoringSubscription{CompanyID: a.ID, Enabled: true}))

	critical := &stubAdapter{name: "s", result: model.CheckResult{
		Source: "s", Status: model.StatusCritical, Note: "exact VAT match in s"}}
	r := New(st, nil, []adapter.Adapter{critical}, nil)

	res, err := r.RunMonitoringSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitions)
}

func TestRunMonitoringSweep_MissingCompanySkipped(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.CreateSubscription(context.Background(),
		&model.MonitoringSubscription{CompanyID: "ghost", Enabled: true}))

	r := New(st, nil, nil, nil)
	res, err := r.RunMonitoringSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Checked)
	assert.Equal(t, 0, res.Failed)
}
