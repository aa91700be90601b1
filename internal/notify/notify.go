// Package notify delivers status-change notifications for monitored companies.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// Notification is the payload delivered on a company status transition.
type Notification struct {
	CompanyID string       `json:"company_id"`
	EventType string       `json:"event_type"`
	From      model.Status `json:"from"`
	To        model.Status `json:"to"`
	Timestamp time.Time    `json:"timestamp"`
}

// Notifier delivers one status-change notification. Delivery failures are the
// notifier's problem to report; the pipeline never fails a check run over them.
type Notifier interface {
	Notify(ctx context.Context, companyID string, from, to model.Status) error
}

// WebhookNotifier posts notifications to a configured webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, companyID string, from, to model.Status) error {
	payload, err := json.Marshal(Notification{
		CompanyID: companyID,
		EventType: model.EventStatusChanged,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier records the transition in the application log. Used when no
// webhook is configured so transitions still leave a trace.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, companyID string, from, to model.Status) error {
	zap.L().Info("company status changed",
		zap.String("company_id", companyID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

// FromConfig picks the webhook notifier when a URL is configured, else the
// log notifier.
func FromConfig(webhookURL string) Notifier {
	if webhookURL != "" {
		return NewWebhook(webhookURL)
	}
	return LogNotifier{}
}
