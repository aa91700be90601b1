package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/adapter"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/model"
	"github.com/clarusrisk/diligence-cli/internal/notify"
	"github.com/clarusrisk/diligence-cli/internal/pipeline"
	"github.com/clarusrisk/diligence-cli/internal/resilience"
	"github.com/clarusrisk/diligence-cli/internal/store"
)

// checkEnv holds the initialized store, adapters, and runner used by the
// check/monitor/serve/companies commands.
type checkEnv struct {
	Store  store.Store
	Runner *pipeline.Runner
}

// Close releases resources held by the environment.
func (ce *checkEnv) Close() {
	if ce.Store != nil {
		_ = ce.Store.Close()
	}
}

// initEnv opens the store, runs migrations, builds the adapter set from
// config, and assembles the check runner. Callers should defer env.Close().
func initEnv(ctx context.Context) (*checkEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	f := fetcher.New(fetcher.Options{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		Retry: resilience.FromHTTPConfig(
			cfg.HTTP.MaxRetries, cfg.HTTP.InitialBackoffMs, cfg.HTTP.MaxBackoffMs, cfg.HTTP.BackoffMult),
		RateLimits: fetcher.DefaultRateLimits(),
	})

	identity, secondary, err := buildAdapters(f)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	runner := pipeline.New(st, identity, secondary, notify.FromConfig(cfg.Notify.WebhookURL))
	if cfg.Requester.VATNumber != "" || cfg.Requester.CountryCode != "" {
		runner.SetRequesterDefaults(&model.Requester{
			CountryCode: cfg.Requester.CountryCode,
			VATNumber:   cfg.Requester.VATNumber,
		})
	}

	return &checkEnv{Store: st, Runner: runner}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	case "", "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildAdapters assembles the identity adapter and the secondary fan-out set
// from configuration. Disabled adapters are simply not registered.
func buildAdapters(f fetcher.Fetcher) (adapter.Adapter, []adapter.Adapter, error) {
	var identity adapter.Adapter
	if cfg.Adapters.VIES.Enabled {
		identity = adapter.NewVIES(cfg.Adapters.VIES, f)
	}

	var secondary []adapter.Adapter

	specs := adapter.DefaultListSpecs(cfg.Adapters, cfg.Cache.DefaultTTLHours)
	if cfg.Adapters.ListsFile != "" {
		loaded, err := adapter.LoadListSpecs(cfg.Adapters.ListsFile)
		if err != nil {
			return nil, nil, eris.Wrap(err, "load screening lists")
		}
		specs = loaded
		zap.L().Info("screening lists loaded from file",
			zap.String("path", cfg.Adapters.ListsFile), zap.Int("lists", len(specs)))
	}
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		secondary = append(secondary, adapter.NewListScreen(spec, f, cfg.Cache.Dir, cfg.Match))
	}

	if cfg.Adapters.Registry.Enabled {
		secondary = append(secondary, adapter.NewRegistry(cfg.Adapters.Registry, f))
	}
	if cfg.Adapters.Insolvency.Enabled {
		secondary = append(secondary, adapter.NewInsolvency(cfg.Adapters.Insolvency, f))
	}
	if cfg.Adapters.OpenCorporates.Enabled {
		secondary = append(secondary, adapter.NewOpenCorporates(cfg.Adapters.OpenCorporates, f, cfg.Cache.Dir))
	}
	if cfg.Adapters.Whois.Enabled {
		secondary = append(secondary, adapter.NewWhois(cfg.Adapters.Whois))
	}
	if cfg.Adapters.SSLLabs.Enabled {
		secondary = append(secondary, adapter.NewSSLLabs(cfg.Adapters.SSLLabs, f))
	}

	return identity, secondary, nil
}
