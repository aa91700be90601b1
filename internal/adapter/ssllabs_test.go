package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

func ssllabsConfig() config.EndpointConfig {
	return config.EndpointConfig{Enabled: true, Endpoint: "https://ssllabs.example/api/v3"}
}

func TestSSLLabs_GoodGradeIsOK(t *testing.T) {
	body := `{"host":"example.com","status":"READY","endpoints":[{"grade":"A"},{"grade":"A+"}]}`
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{getBody: []byte(body)})

	res, err := s.Fetch(context.Background(), model.Query{Website: "https://example.com"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, "TLS grade A", res.Note)
	assert.Equal(t, "A", res.Data["grade"])
}

func TestSSLLabs_WorstEndpointDecides(t *testing.T) {
	body := `{"host":"example.com","status":"READY","endpoints":[{"grade":"A"},{"grade":"C"},{"grade":"B"}]}`
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{getBody: []byte(body)})

	res, err := s.Fetch(context.Background(), model.Query{Website: "example.com"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusWarning, res.Status)
	assert.Equal(t, "weak TLS grade C", res.Note)
}

func TestSSLLabs_InProgressIsUnknown(t *testing.T) {
	body := `{"host":"example.com","status":"IN_PROGRESS","endpoints":[]}`
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{getBody: []byte(body)})

	res, err := s.Fetch(context.Background(), model.Query{Website: "example.com"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnknown, res.Status)
	assert.Equal(t, "assessment in progress", res.Note)
}

func TestSSLLabs_ReadyWithoutGradesIsUnknown(t *testing.T) {
	body := `{"host":"example.com","status":"READY","endpoints":[{"grade":""},{}]}`
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{getBody: []byte(body)})

	res, err := s.Fetch(context.Background(), model.Query{Website: "example.com"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnknown, res.Status)
	assert.Equal(t, "no TLS grade reported", res.Note)
}

func TestSSLLabs_AssessmentError(t *testing.T) {
	body := `{"host":"example.com","status":"ERROR"}`
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{getBody: []byte(body)})

	res, err := s.Fetch(context.Background(), model.Query{Website: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, "SSL Labs assessment error", res.Note)
}

func TestSSLLabs_RequestsCachedAssessment(t *testing.T) {
	f := &stubFetcher{getBody: []byte(`{"status":"READY","endpoints":[{"grade":"A"}]}`)}
	s := NewSSLLabs(ssllabsConfig(), f)

	_, err := s.Fetch(context.Background(), model.Query{Website: "https://www.example.com/about"})
	require.NoError(t, err)

	assert.Contains(t, f.gotURL, "host=example.com")
	assert.Contains(t, f.gotURL, "fromCache=on")
}

func TestSSLLabs_Ready(t *testing.T) {
	s := NewSSLLabs(ssllabsConfig(), &stubFetcher{})
	assert.ErrorIs(t, s.Ready(model.Query{}), ErrWebsiteRequired)
	assert.NoError(t, s.Ready(model.Query{Website: "example.com"}))
}

func TestWorstGrade(t *testing.T) {
	report := ssllabsReport{}
	assert.Equal(t, "", worstGrade(report))

	report.Endpoints = []struct {
		Grade string `json:"grade"`
	}{{Grade: "A+"}, {Grade: "F"}, {Grade: "B"}}
	assert.Equal(t, "F", worstGrade(report))
}
