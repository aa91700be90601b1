package adapter

import (
	"context"
	"net/url"
	"strings"

	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/match"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// SourceRegistry identifies the Unternehmensregister adapter.
const SourceRegistry = "unternehmensregister"

// Registry searches the German company register portal for the company name.
// The portal has no JSON API; the adapter issues the public search and checks
// whether the normalized name appears in the result page.
type Registry struct {
	cfg     config.EndpointConfig
	fetcher fetcher.Fetcher
}

// NewRegistry creates the company-register adapter.
func NewRegistry(cfg config.EndpointConfig, f fetcher.Fetcher) *Registry {
	return &Registry{cfg: cfg, fetcher: f}
}

func (r *Registry) Name() string { return SourceRegistry }

// Ready needs something to search by; VAT alone is useless against a
// name-indexed register.
func (r *Registry) Ready(q model.Query) error {
	if q.Name == "" && q.Country == "" && q.Address == "" {
		return ErrIdentityRequired
	}
	if q.Name == "" {
		return ErrNameRequired
	}
	return nil
}

func (r *Registry) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !r.cfg.Enabled {
		return Disabled(SourceRegistry), nil
	}

	searchURL := r.cfg.Endpoint + "?" + url.Values{
		"submitaction":        {"language"},
		"language":            {"en"},
		"searchRegisterQuery": {q.Name},
	}.Encode()

	body, err := r.fetcher.Get(ctx, searchURL)
	if err != nil {
		return Failure(SourceRegistry, "register search failed", err), nil
	}

	page := strings.ToUpper(string(body))
	normalized := match.NormalizeName(q.Name)
	if normalized != "" && strings.Contains(page, normalized) {
		return Result(SourceRegistry, model.StatusOK,
			map[string]any{"query": q.Name, "matched": normalized},
			"company found in register"), nil
	}

	return Unknown(SourceRegistry, "company not found in register"), nil
}
