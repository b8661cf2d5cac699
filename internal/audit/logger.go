// Package audit records one append-only entry per gateway request, keeps the
// running per-tenant counters behind the metrics surface, and flags slow
// queries. Recording is fire-and-forget: it never blocks the request path and
// never fails it.
package audit

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// Config bounds what the audit trail retains of a request.
type Config struct {
	// PreviewLimit caps the query preview stored on every record.
	PreviewLimit int
	// ParamLimit caps each logged parameter value; longer strings get a
	// trailing ellipsis and raw bytes are never logged at all.
	ParamLimit int
	// SlowThresholdMs is the latency above which a request additionally
	// produces a detailed slow-query record.
	SlowThresholdMs float64
}

func DefaultConfig() Config {
	return Config{
		PreviewLimit:    100,
		ParamLimit:      64,
		SlowThresholdMs: 1000,
	}
}

// Logger is the audit trail. Every request produces exactly one record at
// 100% sampling; slow requests produce a second, more detailed one.
type Logger struct {
	cfg      Config
	logger   *slog.Logger
	sink     Sink
	counters *Counters
	now      func() time.Time
}

func New(cfg Config, sink Sink, counters *Counters, logger *slog.Logger) *Logger {
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = DefaultConfig().PreviewLimit
	}
	if cfg.ParamLimit <= 0 {
		cfg.ParamLimit = DefaultConfig().ParamLimit
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Logger{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		counters: counters,
		now:      time.Now,
	}
}

// Counters exposes the shared metrics accumulator for the admin surface.
func (l *Logger) Counters() *Counters { return l.counters }

// RecordSuccess audits a completed request.
func (l *Logger) RecordSuccess(tenant, query string, params []any, rowCount int, elapsedMs float64, truncated bool) {
	rec := l.newRecord(tenant, query, params, elapsedMs, "success")
	rec.RowCount = &rowCount

	l.counters.Observe(tenant, elapsedMs, false, l.isSlow(elapsedMs))
	l.sink.Write(rec)

	l.logger.Info("query executed",
		slog.String("tenant", tenant),
		slog.String("query_hash", rec.QueryHash),
		slog.Int("rows", rowCount),
		slog.Bool("truncated", truncated),
		slog.Float64("elapsed_ms", elapsedMs))

	l.maybeLogSlow(rec, query, params)
}

// RecordError audits a failed request with whatever context was available at
// the failure point.
func (l *Logger) RecordError(tenant, query string, params []any, err error, elapsedMs float64) {
	rec := l.newRecord(tenant, query, params, elapsedMs, "error")
	kind := domain.KindOf(err)
	msg := err.Error()
	rec.ErrorKind = &kind
	rec.ErrorMessage = &msg

	l.counters.Observe(tenant, elapsedMs, true, l.isSlow(elapsedMs))
	l.sink.Write(rec)

	l.logger.Warn("query failed",
		slog.String("tenant", tenant),
		slog.String("query_hash", rec.QueryHash),
		slog.String("error_kind", string(kind)),
		slog.String("error", msg),
		slog.Float64("elapsed_ms", elapsedMs))

	l.maybeLogSlow(rec, query, params)
}

func (l *Logger) newRecord(tenant, query string, params []any, elapsedMs float64, status string) domain.AuditRecord {
	return domain.AuditRecord{
		ID:           uuid.NewString(),
		Timestamp:    l.now().UTC(),
		Tenant:       tenant,
		QueryHash:    QueryHash(query),
		QueryPreview: preview(query, l.cfg.PreviewLimit),
		ParamCount:   len(params),
		ElapsedMs:    elapsedMs,
		Status:       status,
	}
}

func (l *Logger) isSlow(elapsedMs float64) bool {
	return l.cfg.SlowThresholdMs > 0 && elapsedMs > l.cfg.SlowThresholdMs
}

// maybeLogSlow emits the detailed slow-query record: full query text plus
// sanitized parameters, separate from the always-on summary record.
func (l *Logger) maybeLogSlow(rec domain.AuditRecord, query string, params []any) {
	if !l.isSlow(rec.ElapsedMs) {
		return
	}
	l.logger.Warn("slow query",
		slog.String("tenant", rec.Tenant),
		slog.String("query_hash", rec.QueryHash),
		slog.String("query", query),
		slog.Any("params", l.sanitizeParams(params)),
		slog.Float64("elapsed_ms", rec.ElapsedMs),
		slog.Float64("threshold_ms", l.cfg.SlowThresholdMs))
}

// sanitizeParams renders parameter values safe for logging: byte values are
// replaced by a length marker and long strings are cut with an ellipsis.
func (l *Logger) sanitizeParams(params []any) []string {
	out := make([]string, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case []byte:
			out[i] = fmt.Sprintf("<bytes:%d>", len(v))
		case string:
			out[i] = preview(v, l.cfg.ParamLimit)
		default:
			out[i] = preview(fmt.Sprint(v), l.cfg.ParamLimit)
		}
	}
	return out
}

// QueryHash returns a stable hash of the whitespace- and case-normalized
// query so similar invocations group together across the audit trail.
func QueryHash(query string) string {
	normalized := strings.ToUpper(strings.Join(strings.Fields(query), " "))
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%016x", h.Sum64())
}

func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
