package model

import "time"

// Status is the outcome severity of a single adapter check or of a whole run.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
	StatusError    Status = "error"
)

// severityRank orders statuses from least to most severe. The total order is
// critical > error > warning > unknown > ok; an unrecognized status ranks as
// unknown so malformed adapter output can never look healthier than "no data".
var severityRank = map[Status]int{
	StatusOK:       0,
	StatusUnknown:  1,
	StatusWarning:  2,
	StatusError:    3,
	StatusCritical: 4,
}

// Rank returns the severity rank of s.
func (s Status) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[StatusUnknown]
}

// Valid reports whether s is one of the five recognized statuses.
func (s Status) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Worse returns the more severe of a and b.
func Worse(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// CheckResult is the wire-level contract between an adapter and the
// aggregator. The four-key JSON shape (status/data/source/note) is persisted
// as audit data and must stay stable.
type CheckResult struct {
	ID        string         `json:"id,omitempty"`
	CheckID   string         `json:"check_id,omitempty"`
	Source    string         `json:"source"`
	Status    Status         `json:"status"`
	Data      map[string]any `json:"data"`
	Note      string         `json:"note"`
	UsedQuery *Query         `json:"used_query,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Details merges the adapter payload with the query that produced it, for
// persistence under the check_results.details column.
func (r CheckResult) Details() map[string]any {
	details := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		details[k] = v
	}
	if r.UsedQuery != nil {
		details["used_query"] = r.UsedQuery
	}
	return details
}

// Check is one orchestration run for a company. It owns its results; result
// order mirrors adapter execution order.
type Check struct {
	ID        string        `json:"id"`
	CompanyID string        `json:"company_id"`
	Status    Status        `json:"status"`
	Results   []CheckResult `json:"results,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// EventStatusChanged is the only event type the pipeline emits today.
const EventStatusChanged = "status_changed"

// CheckEvent is an append-only log entry recorded when a company's aggregated
// status transitions between consecutive runs.
type CheckEvent struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewStatusChangedEvent builds the payload for a status transition.
func NewStatusChangedEvent(companyID string, from, to Status) CheckEvent {
	return CheckEvent{
		CompanyID: companyID,
		EventType: EventStatusChanged,
		Payload:   map[string]any{"from": string(from), "to": string(to)},
	}
}
