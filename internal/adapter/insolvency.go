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

// SourceInsolvency identifies the insolvency-register adapter.
const SourceInsolvency = "insolvenz"

// Insolvency checks the German insolvency announcements portal for proceedings
// naming the company. Any hit is critical; absence of a hit is ok, not proof
// of solvency, which is why the note stays factual.
type Insolvency struct {
	cfg     config.EndpointConfig
	fetcher fetcher.Fetcher
}

// NewInsolvency creates the insolvency adapter.
func NewInsolvency(cfg config.EndpointConfig, f fetcher.Fetcher) *Insolvency {
	return &Insolvency{cfg: cfg, fetcher: f}
}

func (i *Insolvency) Name() string { return SourceInsolvency }

func (i *Insolvency) Ready(q model.Query) error {
	if q.Name == "" {
		return ErrNameRequired
	}
	return nil
}

func (i *Insolvency) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !i.cfg.Enabled {
		return Disabled(SourceInsolvency), nil
	}

	searchURL := i.cfg.Endpoint + "?" + url.Values{
		"frm_suche:lsomsuchfunktion": {"uneingeschr"},
		"frm_suche:ldi_firma":        {q.Name},
	}.Encode()

	body, err := i.fetcher.Get(ctx, searchURL)
	if err != nil {
		return Failure(SourceInsolvency, "insolvency search failed", err), nil
	}

	page := strings.ToUpper(string(body))
	normalized := match.NormalizeName(q.Name)
	if normalized != "" && strings.Contains(page, normalized) && strings.Contains(page, "INSOLVENZ") {
		return Result(SourceInsolvency, model.StatusCritical,
			map[string]any{"query": q.Name, "matched": normalized},
			"insolvency found"), nil
	}

	return Result(SourceInsolvency, model.StatusOK,
		map[string]any{"query": q.Name}, "no insolvency found"), nil
}
