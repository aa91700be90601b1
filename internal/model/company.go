package model

import "time"

// Company is the persistent entity a check run targets. Identity fields are
// filled on first lookup and only ever enriched when empty; user-provided
// values stay authoritative over fetched ones.
type Company struct {
	ID                 string         `json:"id"`
	VATNumber          string         `json:"vat_number"`
	RegistrationNumber string         `json:"registration_number,omitempty"`
	Name               string         `json:"name"`
	Country            string         `json:"country"`
	Address            string         `json:"address"`
	Website            string         `json:"website"`
	Requester          *Requester     `json:"requester,omitempty"`
	RawSource          map[string]any `json:"raw_source,omitempty"`
	CurrentStatus      Status         `json:"current_status"`
	ConfidenceScore    int            `json:"confidence_score"`
	LastChecked        *time.Time     `json:"last_checked,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// MonitoringSubscription links a company to a notification target. The
// pipeline only reads it: enabled subscriptions are swept daily.
type MonitoringSubscription struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	NotifyBy  string    `json:"notify_by"` // email/webhook/json
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}
