package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

func openCorpConfig() config.OpenCorpConfig {
	return config.OpenCorpConfig{
		Enabled:  true,
		Endpoint: "https://api.opencorporates.example/v0.4",
		APIKey:   "test-token",
		TTLHours: 24,
	}
}

const ocFoundJSON = `{"results":{"companies":[{"company":{
	"name":"SIEMENS AKTIENGESELLSCHAFT",
	"company_number":"HRB 6684",
	"jurisdiction_code":"de",
	"incorporation_date":"1966-10-04",
	"opencorporates_url":"https://opencorporates.com/companies/de/HRB6684"
}}]}}`

const ocEmptyJSON = `{"results":{"companies":[]}}`

func TestOpenCorporates_Found(t *testing.T) {
	f := &stubFetcher{getBody: []byte(ocFoundJSON)}
	o := NewOpenCorporates(openCorpConfig(), f, t.TempDir())

	res, err := o.Fetch(context.Background(), model.Query{VATNumber: "DE129274202"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, "found by OpenCorporates", res.Note)
	assert.Equal(t, "SIEMENS AKTIENGESELLSCHAFT", res.Data["name"])
	assert.Equal(t, "HRB 6684", res.Data["company_number"])

	// Jurisdiction-scoped search by the VAT's numeric part.
	assert.Contains(t, f.gotURL, "jurisdiction_code=de")
	assert.Contains(t, f.gotURL, "q=129274202")
	assert.Contains(t, f.gotURL, "api_token=test-token")
}

func TestOpenCorporates_NoResultsIsUnknown(t *testing.T) {
	f := &stubFetcher{getBody: []byte(ocEmptyJSON)}
	o := NewOpenCorporates(openCorpConfig(), f, t.TempDir())

	res, err := o.Fetch(context.Background(), model.Query{Name: "Nonexistent GmbH"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnknown, res.Status)
	assert.Equal(t, "no companies found", res.Note)
	assert.Contains(t, f.gotURL, "q=Nonexistent+GmbH")
}

func TestOpenCorporates_CacheHitSkipsHTTP(t *testing.T) {
	dir := t.TempDir()
	f := &stubFetcher{getBody: []byte(ocFoundJSON)}
	o := NewOpenCorporates(openCorpConfig(), f, dir)

	q := model.Query{VATNumber: "DE129274202"}
	first, err := o.Fetch(context.Background(), q)
	require.NoError(t, err)

	// Second adapter instance on the same cache dir never touches the fetcher.
	f2 := &stubFetcher{getErr: assert.AnError}
	o2 := NewOpenCorporates(openCorpConfig(), f2, dir)
	second, err := o2.Fetch(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Data["company_number"], second.Data["company_number"])
	assert.Empty(t, f2.gotURL)
}

func TestOpenCorporates_NoAPIKeyIsError(t *testing.T) {
	cfg := openCorpConfig()
	cfg.APIKey = ""
	o := NewOpenCorporates(cfg, &stubFetcher{}, t.TempDir())

	res, err := o.Fetch(context.Background(), model.Query{Name: "Siemens AG"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, "no API key configured", res.Note)
}

func TestOpenCorporates_RequestFailure(t *testing.T) {
	o := NewOpenCorporates(openCorpConfig(), &stubFetcher{getErr: assert.AnError}, t.TempDir())

	res, err := o.Fetch(context.Background(), model.Query{Name: "Siemens AG"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, "OpenCorporates request failed", res.Note)
}

func TestOpenCorporates_Ready(t *testing.T) {
	o := NewOpenCorporates(openCorpConfig(), &stubFetcher{}, t.TempDir())
	assert.ErrorIs(t, o.Ready(model.Query{}), ErrIdentityRequired)
	assert.NoError(t, o.Ready(model.Query{VATNumber: "DE123"}))
	assert.NoError(t, o.Ready(model.Query{Name: "Siemens"}))
}

func TestSplitVATPrefix(t *testing.T) {
	country, number, ok := splitVATPrefix("DE129274202")
	require.True(t, ok)
	assert.Equal(t, "DE", country)
	assert.Equal(t, "129274202", number)

	_, _, ok = splitVATPrefix("12")
	assert.False(t, ok)

	_, _, ok = splitVATPrefix("129274202")
	assert.False(t, ok)
}
