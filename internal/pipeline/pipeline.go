package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clarusrisk/diligence-cli/internal/adapter"
	"github.com/clarusrisk/diligence-cli/internal/model"
	"github.com/clarusrisk/diligence-cli/internal/notify"
	"github.com/clarusrisk/diligence-cli/internal/store"
)

// Runner orchestrates one full check: identity resolution, fill-only
// enrichment, concurrent adapter fan-out, aggregation, and persistence.
type Runner struct {
	store             store.Store
	identity          adapter.Adapter
	adapters          []adapter.Adapter
	notifier          notify.Notifier
	requesterDefaults *model.Requester
}

// New creates a check runner. identity may be nil when the identity adapter
// is disabled; adapters is the ordered secondary fan-out set.
func New(st store.Store, identity adapter.Adapter, adapters []adapter.Adapter, notifier notify.Notifier) *Runner {
	return &Runner{
		store:    st,
		identity: identity,
		adapters: adapters,
		notifier: notifier,
	}
}

// RunFullCheck executes a complete check run for the company. A missing
// company is a silent no-op so a stale monitoring sweep cannot fail the batch.
func (r *Runner) RunFullCheck(ctx context.Context, companyID string) (*model.Check, error) {
	company, err := r.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load company %s", companyID)
	}
	if company == nil {
		zap.L().Warn("check requested for unknown company", zap.String("company_id", companyID))
		return nil, nil
	}

	log := zap.L().With(zap.String("company_id", company.ID), zap.String("vat", company.VATNumber))
	log.Info("starting check run")
	start := time.Now()

	query := model.QueryFromCompany(company)

	// Position-ordered results: identity first, then the fan-out set. Each
	// goroutine writes only its own slot, so no lock is needed.
	total := len(r.adapters)
	offset := 0
	if r.identity != nil {
		total++
		offset = 1
	}
	results := make([]model.CheckResult, total)

	if r.identity != nil {
		results[0] = r.runAdapter(ctx, r.identity, query)
		if EnrichCompany(company, results[0]) {
			if err := r.store.UpdateCompany(ctx, company); err != nil {
				log.Warn("enrichment persist failed", zap.Error(err))
			}
			// Later adapters see the enriched identity.
			query = model.QueryFromCompany(company)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range r.adapters {
		g.Go(func() error {
			results[offset+i] = r.runAdapter(gctx, a, query)
			return nil
		})
	}
	_ = g.Wait()

	status := AggregateStatus(results)
	score := ConfidenceScore(results)

	var event *model.CheckEvent
	previous := company.CurrentStatus
	if previous != status {
		e := model.NewStatusChangedEvent(company.ID, previous, status)
		event = &e
	}

	check := &model.Check{
		CompanyID: company.ID,
		Status:    status,
		Results:   results,
	}
	if err := r.store.SaveCheck(ctx, check, score, event); err != nil {
		return nil, eris.Wrapf(err, "pipeline: save check for %s", company.ID)
	}

	log.Info("check run complete",
		zap.String("status", string(status)),
		zap.Int("score", score),
		zap.Int("adapters", total),
		zap.Duration("elapsed", time.Since(start)),
	)

	if event != nil && r.notifier != nil {
		if err := r.notifier.Notify(ctx, company.ID, previous, status); err != nil {
			log.Warn("notification delivery failed", zap.Error(err))
		}
	}
	return check, nil
}

// runAdapter executes one adapter against the query. Gate failures, fetch
// errors and panics all degrade to an unknown result carrying the failure
// text, so one misbehaving source can never sink the run.
func (r *Runner) runAdapter(ctx context.Context, a adapter.Adapter, query model.Query) (result model.CheckResult) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("adapter panicked",
				zap.String("source", a.Name()), zap.Any("panic", p))
			result = adapter.Unknown(a.Name(), fmt.Sprintf("adapter panic: %v", p))
			result.UsedQuery = &query
		}
	}()

	if err := a.Ready(query); err != nil {
		result = adapter.Unknown(a.Name(), err.Error())
		result.UsedQuery = &query
		return result
	}

	fetched, err := a.Fetch(ctx, query)
	if err != nil {
		zap.L().Warn("adapter failed",
			zap.String("source", a.Name()), zap.Error(err))
		result = adapter.Unknown(a.Name(), err.Error())
	} else {
		result = fetched
		if result.Source == "" {
			result.Source = a.Name()
		}
		if !result.Status.Valid() {
			result.Status = model.StatusUnknown
		}
	}
	result.UsedQuery = &query
	return result
}
