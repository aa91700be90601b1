package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

func TestWebhookNotifier_DeliversPayload(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	err := n.Notify(context.Background(), "company-1", model.StatusOK, model.StatusCritical)
	require.NoError(t, err)

	assert.Equal(t, "company-1", got.CompanyID)
	assert.Equal(t, model.EventStatusChanged, got.EventType)
	assert.Equal(t, model.StatusOK, got.From)
	assert.Equal(t, model.StatusCritical, got.To)
	assert.False(t, got.Timestamp.IsZero())
}

func TestWebhookNotifier_ServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	err := n.Notify(context.Background(), "company-1", model.StatusOK, model.StatusWarning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWebhookNotifier_UnreachableURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := NewWebhook(url)
	err := n.Notify(context.Background(), "company-1", model.StatusOK, model.StatusWarning)
	assert.Error(t, err)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	err := LogNotifier{}.Notify(context.Background(), "company-1", model.StatusOK, model.StatusWarning)
	assert.NoError(t, err)
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, &WebhookNotifier{}, FromConfig("https://hooks.example/diligence"))
	assert.IsType(t, LogNotifier{}, FromConfig(""))
}
