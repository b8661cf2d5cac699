// Package executor runs bound statements against the shared store with
// timeout and row-cap enforcement, translating engine errors into the
// gateway taxonomy.
package executor

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
	"github.com/grobertson/Rosey-Robot-sub001/internal/validate"
)

// Bounds clamp caller-supplied limits into the configured envelope.
type Bounds struct {
	DefaultTimeoutMs int
	MinTimeoutMs     int
	MaxTimeoutMs     int
	DefaultMaxRows   int
	MinMaxRows       int
	MaxMaxRows       int
	SlowThresholdMs  float64
}

// DefaultBounds returns the executor's configured defaults.
func DefaultBounds() Bounds {
	return Bounds{
		DefaultTimeoutMs: 10_000,
		MinTimeoutMs:     100,
		MaxTimeoutMs:     30_000,
		DefaultMaxRows:   10_000,
		MinMaxRows:       1,
		MaxMaxRows:       100_000,
		SlowThresholdMs:  1_000,
	}
}

// Executor runs one bound statement per call against the store. One
// connection is acquired per request and released on every exit path.
type Executor struct {
	db     *sql.DB
	bounds Bounds
	logger *slog.Logger
}

// New creates an Executor over the given store handle.
func New(db *sql.DB, bounds Bounds, logger *slog.Logger) *Executor {
	return &Executor{db: db, bounds: bounds, logger: logger}
}

// Request carries one execution's inputs.
type Request struct {
	Tenant     string
	Query      string // already bound to native markers
	Values     []any
	TimeoutMs  int
	MaxRows    int
	AllowWrite bool
}

// Execute runs the bound statement. Reads stream rows up to the row cap;
// writes report the affected-row count with an empty row set. The elapsed
// time is attached regardless of outcome.
func (e *Executor) Execute(ctx context.Context, req Request) (domain.ExecutionResult, error) {
	timeoutMs := clamp(req.TimeoutMs, e.bounds.DefaultTimeoutMs, e.bounds.MinTimeoutMs, e.bounds.MaxTimeoutMs)
	maxRows := clamp(req.MaxRows, e.bounds.DefaultMaxRows, e.bounds.MinMaxRows, e.bounds.MaxMaxRows)

	// Independent re-derivation of the statement kind from the bound text.
	// The validator already classified the original query; this second check
	// is deliberately redundant so the write gate cannot be bypassed by any
	// earlier-stage bug.
	kind := validate.Classify(req.Query)
	if kind.IsWrite() && !req.AllowWrite {
		return domain.ExecutionResult{}, domain.ErrPermission("allow_write",
			"%s requires the allow_write capability", kind)
	}

	start := time.Now()
	result, err := e.run(ctx, req, kind, timeoutMs, maxRows)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	result.ElapsedMs = elapsed

	if elapsed > e.bounds.SlowThresholdMs {
		e.logger.Warn("slow query",
			"tenant", req.Tenant,
			"elapsed_ms", elapsed,
			"threshold_ms", e.bounds.SlowThresholdMs,
		)
	}
	if err != nil {
		if ge, ok := domain.AsError(err); ok && ge.Kind == domain.KindTimeout {
			return result, err
		}
		return result, translate(err, timeoutMs, ctx)
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, req Request, kind domain.StatementKind, timeoutMs, maxRows int) (domain.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	// A dedicated connection per request keeps cancellation scoped: when the
	// deadline fires, the driver interrupts this statement only.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return domain.ExecutionResult{}, translate(err, timeoutMs, ctx)
	}
	defer conn.Close()

	if kind.IsWrite() {
		res, err := conn.ExecContext(ctx, req.Query, req.Values...)
		if err != nil {
			return domain.ExecutionResult{}, translate(err, timeoutMs, ctx)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return domain.ExecutionResult{Rows: []map[string]any{}, RowCount: int(affected)}, nil
	}

	rows, err := conn.QueryContext(ctx, req.Query, req.Values...)
	if err != nil {
		return domain.ExecutionResult{}, translate(err, timeoutMs, ctx)
	}
	defer rows.Close()

	out, truncated, err := e.scanRows(rows, maxRows)
	if err != nil {
		return domain.ExecutionResult{}, translate(err, timeoutMs, ctx)
	}
	if truncated {
		e.logger.Warn("result truncated",
			"tenant", req.Tenant,
			"max_rows", maxRows,
		)
	}
	return domain.ExecutionResult{Rows: out, RowCount: len(out), Truncated: truncated}, nil
}

// scanRows collects up to maxRows records as column→value maps, reporting
// whether more rows existed. The caller closes rows on every path, so an
// early exit here cannot leak the connection.
func (e *Executor) scanRows(rows *sql.Rows, maxRows int) ([]map[string]any, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		if len(out) >= maxRows {
			return out, true, nil
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = vals[i]
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, false, nil
}

func clamp(v, def, min, max int) int {
	if v <= 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
