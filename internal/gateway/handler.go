// Package gateway is the protocol façade: it receives execute envelopes off
// the bus, resolves the tenant from the routing key, runs the validation,
// binding, rate-limiting and execution pipeline, and always replies with a
// structured envelope.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/grobertson/Rosey-Robot-sub001/internal/audit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/bind"
	"github.com/grobertson/Rosey-Robot-sub001/internal/bus"
	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
	"github.com/grobertson/Rosey-Robot-sub001/internal/executor"
	"github.com/grobertson/Rosey-Robot-sub001/internal/format"
	"github.com/grobertson/Rosey-Robot-sub001/internal/ratelimit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/validate"
)

// tenantSentinel is audited when the routing key carried no usable tenant.
const tenantSentinel = "unknown"

var tenantPattern = regexp.MustCompile(`(?i)^[a-z0-9_-]+$`)

// Deps are the pipeline collaborators, constructed once at startup and passed
// in explicitly.
type Deps struct {
	Validator *validate.Validator
	Limiter   *ratelimit.Limiter
	Executor  *executor.Executor
	Formatter *format.Formatter
	Auditor   *audit.Logger
	// Gate is the process-wide admission smoother, distinct from the
	// per-tenant sliding-window quota.
	Gate   *rate.Limiter
	Logger *slog.Logger
}

// Handler serves one subject prefix worth of execute requests.
type Handler struct {
	deps          Deps
	subjectPrefix string
	prefixTokens  int
	bounds        executor.Bounds
}

func New(deps Deps, subjectPrefix string, bounds executor.Bounds) *Handler {
	return &Handler{
		deps:          deps,
		subjectPrefix: subjectPrefix,
		prefixTokens:  len(strings.Split(subjectPrefix, ".")),
		bounds:        bounds,
	}
}

// Register subscribes the handler to `<prefix>.<tenant>.execute`.
func (h *Handler) Register(b bus.Bus) (bus.Subscription, error) {
	return b.Subscribe(h.subjectPrefix+".*.execute", h.Handle)
}

// Handle processes one inbound message and always returns a reply envelope.
func (h *Handler) Handle(subject string, data []byte) []byte {
	start := time.Now()
	requestID := uuid.NewString()
	logger := h.deps.Logger.With(slog.String("request_id", requestID))

	tenant, err := h.resolveTenant(subject)
	if err != nil {
		return h.fail(logger, tenantSentinel, "", nil, err, start)
	}
	logger = logger.With(slog.String("tenant", tenant))

	req, err := h.decodeEnvelope(data)
	if err != nil {
		return h.fail(logger, tenant, "", nil, err, start)
	}

	outcome := h.deps.Validator.Validate(req.Query, tenant, req.Params)
	if !outcome.Accepted {
		return h.fail(logger, tenant, req.Query, req.Params, outcome.Err, start)
	}
	for _, w := range outcome.Warnings {
		logger.Warn("validation warning", slog.String("warning", w))
	}

	stmt, err := bind.Bind(req.Query, req.Params, true)
	if err != nil {
		return h.fail(logger, tenant, req.Query, req.Params, err, start)
	}

	// Quota is spent only on statements that passed validation and binding;
	// a rejected query never counts against the tenant.
	if gerr := h.admit(tenant); gerr != nil {
		return h.fail(logger, tenant, req.Query, req.Params, gerr, start)
	}

	result, err := h.deps.Executor.Execute(context.Background(), executor.Request{
		Tenant:     tenant,
		Query:      stmt.Query,
		Values:     stmt.Values,
		TimeoutMs:  req.TimeoutMs,
		MaxRows:    req.MaxRows,
		AllowWrite: req.AllowWrite,
	})
	if err != nil {
		return h.fail(logger, tenant, req.Query, req.Params, err, start)
	}

	h.deps.Auditor.RecordSuccess(tenant, req.Query, req.Params,
		result.RowCount, result.ElapsedMs, result.Truncated)
	return h.encode(h.deps.Formatter.Success(result))
}

// resolveTenant takes the tenant from the routing key, never from the
// payload, so one tenant cannot speak for another. The tenant segment sits
// immediately after the subject prefix.
func (h *Handler) resolveTenant(subject string) (string, error) {
	tokens := strings.Split(subject, ".")
	if len(tokens) != h.prefixTokens+2 || tokens[len(tokens)-1] != "execute" {
		return "", domain.ErrShape("unrecognized routing key %q", subject)
	}
	tenant := tokens[h.prefixTokens]
	if !tenantPattern.MatchString(tenant) {
		return "", domain.ErrShape("invalid tenant segment in routing key")
	}
	return strings.ToLower(tenant), nil
}

func (h *Handler) decodeEnvelope(data []byte) (domain.ExecuteRequest, error) {
	var req domain.ExecuteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, domain.ErrShape("request body is not a valid execute envelope").WithCause(err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, domain.ErrShape("field %q is required and must be a non-empty string", "query")
	}
	if req.TimeoutMs < 0 || (req.TimeoutMs > 0 && req.TimeoutMs > h.bounds.MaxTimeoutMs) {
		return req, domain.ErrShape("timeout_ms must be between %d and %d", h.bounds.MinTimeoutMs, h.bounds.MaxTimeoutMs)
	}
	if req.MaxRows < 0 || req.MaxRows > h.bounds.MaxMaxRows {
		return req, domain.ErrShape("max_rows must be between %d and %d", h.bounds.MinMaxRows, h.bounds.MaxMaxRows)
	}
	return req, nil
}

// admit runs the global smoother first, then the tenant's sliding-window
// quota.
func (h *Handler) admit(tenant string) error {
	if h.deps.Gate != nil && !h.deps.Gate.Allow() {
		return domain.ErrRateLimited(tenant, time.Second.Milliseconds()).
			WithDetail("scope", "global")
	}
	retryAfter, ok := h.deps.Limiter.Check(tenant)
	if !ok {
		return domain.ErrRateLimited(tenant, retryAfter.Milliseconds())
	}
	return nil
}

// fail audits the error with whatever context survived and formats the reply.
func (h *Handler) fail(logger *slog.Logger, tenant, query string, params []any, err error, start time.Time) []byte {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	h.deps.Auditor.RecordError(tenant, query, params, err, elapsed)
	logger.Debug("request rejected", slog.String("error", err.Error()))
	return h.encode(h.deps.Formatter.Failure(err, tenant, query, len(params)))
}

func (h *Handler) encode(envelope any) []byte {
	data, err := json.Marshal(envelope)
	if err != nil {
		// Envelopes are plain structs of JSON-safe values; this is
		// unreachable short of a formatter bug.
		h.deps.Logger.Error("envelope marshal failed", slog.String("error", err.Error()))
		return []byte(fmt.Sprintf(`{"error":"UNKNOWN_ERROR","message":%q,"details":{}}`,
			"the response could not be serialized"))
	}
	return data
}
