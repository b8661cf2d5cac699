package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// translate maps an engine-level failure onto the gateway taxonomy. The raw
// engine message travels only as the wrapped cause; the client-visible
// message stays generic apart from the classification tags.
func translate(err error, timeoutMs int, ctx context.Context) error {
	if ge, ok := domain.AsError(err); ok {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout(timeoutMs).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrExecution("query was canceled").WithCause(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return domain.ErrExecution("a constraint prevented the statement").
			WithDetail("constraint_type", "unique").
			WithCause(err)
	case strings.Contains(msg, "foreign key constraint"):
		return domain.ErrExecution("a constraint prevented the statement").
			WithDetail("constraint_type", "foreign_key").
			WithCause(err)
	case strings.Contains(msg, "not null constraint"):
		return domain.ErrExecution("a constraint prevented the statement").
			WithDetail("constraint_type", "not_null").
			WithCause(err)
	case strings.Contains(msg, "check constraint"):
		return domain.ErrExecution("a constraint prevented the statement").
			WithDetail("constraint_type", "check").
			WithCause(err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "busy"):
		return domain.ErrExecution("the store is briefly contended; retry may succeed").
			WithDetail("transient", true).
			WithCause(err)
	default:
		return domain.ErrExecution("the statement could not be executed").WithCause(err)
	}
}
