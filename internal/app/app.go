// Package app wires the gateway's components from configuration: validator,
// limiter, executor, audit trail, bus handler, admin surface, and the
// periodic jobs. main() supplies only the things it must own — database
// handles, config, and the logger.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/grobertson/Rosey-Robot-sub001/internal/admin"
	"github.com/grobertson/Rosey-Robot-sub001/internal/audit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/bus"
	"github.com/grobertson/Rosey-Robot-sub001/internal/config"
	"github.com/grobertson/Rosey-Robot-sub001/internal/executor"
	"github.com/grobertson/Rosey-Robot-sub001/internal/format"
	"github.com/grobertson/Rosey-Robot-sub001/internal/gateway"
	"github.com/grobertson/Rosey-Robot-sub001/internal/ratelimit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/validate"
)

// Deps holds the external dependencies main() must provide: the shared data
// store, the optional audit store (nil disables persistence), config, and
// the logger.
type Deps struct {
	Cfg     *config.Config
	StoreDB *sql.DB
	AuditDB *sql.DB
	Logger  *slog.Logger
}

// App is the fully wired gateway.
type App struct {
	Handler  *gateway.Handler
	Admin    *admin.Server
	Limiter  *ratelimit.Limiter
	Counters *audit.Counters

	sink audit.Sink
	cron *cron.Cron
	sub  bus.Subscription
}

// New wires every component. Tenant quota overrides and cross-tenant grants
// come from the optional YAML quotas file.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	quotas, err := config.LoadQuotas(cfg.QuotasPath)
	if err != nil {
		return nil, fmt.Errorf("load quotas: %w", err)
	}

	validatorCfg := validate.DefaultConfig()
	validatorCfg.CrossTenantTenants = quotas.CrossTenantList()
	validator := validate.New(validatorCfg, deps.Logger.With(slog.String("component", "validator")))

	limiter := ratelimit.New(ratelimit.Config{
		DefaultLimit: cfg.RateLimitDefault,
		Window:       cfg.RateLimitWindow,
	})
	for tenant, quota := range quotas.Tenants {
		if quota.RateLimit != nil {
			limiter.SetLimit(tenant, *quota.RateLimit)
		}
	}

	counters := audit.NewCounters()
	var sink audit.Sink = audit.NopSink{}
	if deps.AuditDB != nil {
		sink = audit.NewSQLiteSink(deps.AuditDB, cfg.AuditBufferSize,
			deps.Logger.With(slog.String("component", "audit-sink")))
	}
	auditCfg := audit.DefaultConfig()
	auditCfg.SlowThresholdMs = cfg.SlowQueryMs
	auditor := audit.New(auditCfg, sink, counters,
		deps.Logger.With(slog.String("component", "audit")))

	bounds := executor.DefaultBounds()
	bounds.SlowThresholdMs = cfg.SlowQueryMs
	exec := executor.New(deps.StoreDB, bounds,
		deps.Logger.With(slog.String("component", "executor")))

	handler := gateway.New(gateway.Deps{
		Validator: validator,
		Limiter:   limiter,
		Executor:  exec,
		Formatter: format.New(deps.Logger.With(slog.String("component", "format"))),
		Auditor:   auditor,
		Gate:      rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		Logger:    deps.Logger.With(slog.String("component", "gateway")),
	}, cfg.SubjectPrefix, bounds)

	app := &App{
		Handler:  handler,
		Admin:    admin.NewServer(counters, limiter, deps.Logger.With(slog.String("component", "admin"))),
		Limiter:  limiter,
		Counters: counters,
		sink:     sink,
		cron:     newJobs(limiter, counters, deps.Logger),
	}
	return app, nil
}

// Start subscribes the handler on the bus and launches the periodic jobs.
func (a *App) Start(b bus.Bus) error {
	sub, err := a.Handler.Register(b)
	if err != nil {
		return fmt.Errorf("subscribe handler: %w", err)
	}
	a.sub = sub
	a.cron.Start()
	return nil
}

// Close stops the jobs, unsubscribes, and flushes the audit sink.
func (a *App) Close(ctx context.Context) error {
	<-a.cron.Stop().Done()
	if a.sub != nil {
		if err := a.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	if s, ok := a.sink.(*audit.SQLiteSink); ok {
		return s.Close(ctx)
	}
	return nil
}

// newJobs schedules the minutely metrics snapshot log line and the limiter
// window sweep.
func newJobs(limiter *ratelimit.Limiter, counters *audit.Counters, logger *slog.Logger) *cron.Cron {
	c := cron.New()
	// Schedules are fixed; AddFunc cannot fail on them.
	_, _ = c.AddFunc("@every 1m", func() {
		snap := counters.Snapshot()
		logger.Info("metrics snapshot",
			slog.Int64("total_requests", snap.Global.TotalRequests),
			slog.Int64("total_errors", snap.Global.TotalErrors),
			slog.Int64("total_slow", snap.Global.TotalSlow),
			slog.Float64("avg_ms", snap.Global.AvgMs),
			slog.Int("tenants", len(snap.Tenants)))
	})
	_, _ = c.AddFunc("@every 5m", func() {
		if n := limiter.Sweep(); n > 0 {
			logger.Debug("limiter windows swept", slog.Int("removed", n))
		}
	})
	return c
}
