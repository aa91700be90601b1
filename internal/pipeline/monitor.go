package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SweepResult summarizes one monitoring sweep.
type SweepResult struct {
	Subscriptions int
	Checked       int
	Failed        int
	Transitions   int
}

// RunMonitoringSweep re-checks every company with an enabled monitoring
// subscription. Companies subscribed more than once are checked once. A
// failing check is logged and counted but does not stop the sweep.
func (r *Runner) RunMonitoringSweep(ctx context.Context) (*SweepResult, error) {
	subs, err := r.store.ListEnabledSubscriptions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list subscriptions")
	}

	res := &SweepResult{Subscriptions: len(subs)}
	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if seen[sub.CompanyID] {
			continue
		}
		seen[sub.CompanyID] = true

		company, err := r.store.GetCompany(ctx, sub.CompanyID)
		if err != nil {
			res.Failed++
			zap.L().Error("monitoring load failed",
				zap.String("company_id", sub.CompanyID), zap.Error(err))
			continue
		}
		if company == nil {
			continue
		}
		previous := company.CurrentStatus

		check, err := r.RunFullCheck(ctx, sub.CompanyID)
		if err != nil {
			res.Failed++
			zap.L().Error("monitoring check failed",
				zap.String("company_id", sub.CompanyID), zap.Error(err))
			continue
		}
		if check == nil {
			continue
		}
		res.Checked++
		if check.Status != previous {
			res.Transitions++
		}
	}

	zap.L().Info("monitoring sweep complete",
		zap.Int("subscriptions", res.Subscriptions),
		zap.Int("checked", res.Checked),
		zap.Int("failed", res.Failed),
		zap.Int("transitions", res.Transitions),
	)
	return res, nil
}
