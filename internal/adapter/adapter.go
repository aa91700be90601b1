// Package adapter contains the external-data adapters the check pipeline fans
// out to. Every adapter satisfies one capability: fetch a CheckResult for a
// canonical query. Adapters are registered in an explicit ordered list at
// startup; the identity adapter (VIES) always runs first.
package adapter

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// Gate errors shared by adapter categories. Their text ends up verbatim in
// the unknown result's note.
var (
	ErrVATRequired      = eris.New("vat number required")
	ErrNameRequired     = eris.New("name required")
	ErrWebsiteRequired  = eris.New("website required")
	ErrIdentityRequired = eris.New("at least one of name, country or address required")
)

// Adapter is one external data source.
type Adapter interface {
	// Name is the stable source identifier persisted with each result.
	Name() string

	// Ready reports whether the query carries the minimum inputs this
	// adapter needs. A non-nil error describes what is missing; the
	// orchestrator then records an unknown result without invoking Fetch,
	// so no external call is wasted.
	Ready(q model.Query) error

	// Fetch performs the check. Implementations return a well-formed result
	// even for upstream failures; a returned error is a last resort that the
	// orchestrator converts into an unknown result.
	Fetch(ctx context.Context, q model.Query) (model.CheckResult, error)
}

// Result builds a well-formed CheckResult.
func Result(source string, status model.Status, data map[string]any, note string) model.CheckResult {
	if data == nil {
		data = map[string]any{}
	}
	return model.CheckResult{
		Source: source,
		Status: status,
		Data:   data,
		Note:   note,
	}
}

// Unknown is the short form for an insufficient-input or cannot-tell outcome.
func Unknown(source, note string) model.CheckResult {
	return Result(source, model.StatusUnknown, nil, note)
}

// Disabled is the result for an administratively disabled adapter.
func Disabled(source string) model.CheckResult {
	return Result(source, model.StatusError, nil, source+" adapter is disabled in configuration")
}

// Failure wraps an upstream fault as an error-status result, preserving the
// error text for operator diagnosis.
func Failure(source, note string, err error) model.CheckResult {
	return Result(source, model.StatusError, map[string]any{"error": err.Error()}, note)
}
