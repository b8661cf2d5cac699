// Package client is the consumer-side wrapper over the gateway's bus
// protocol. It offers thin verb helpers over the generic Execute call and
// retries transport failures with capped exponential backoff. Errors returned
// by the gateway itself are terminal and never retried.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grobertson/Rosey-Robot-sub001/internal/bus"
	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// Config tunes one Client.
type Config struct {
	// SubjectPrefix is prepended to `<tenant>.execute` routing keys.
	SubjectPrefix string
	// RequestTimeout bounds each individual bus round trip.
	RequestTimeout time.Duration
	// MaxAttempts caps transport retries; 1 disables retrying.
	MaxAttempts int
	// BaseBackoff doubles per attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SubjectPrefix:  "rosey.db",
		RequestTimeout: 15 * time.Second,
		MaxAttempts:    4,
		BaseBackoff:    100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Options adjusts one Execute call.
type Options struct {
	AllowWrite bool
	TimeoutMs  int
	MaxRows    int
}

// Client issues execute requests on behalf of one tenant.
type Client struct {
	bus    bus.Bus
	tenant string
	cfg    Config
	logger *slog.Logger
}

func New(b bus.Bus, tenant string, cfg Config, logger *slog.Logger) *Client {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultConfig().SubjectPrefix
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	return &Client{bus: b, tenant: tenant, cfg: cfg, logger: logger}
}

// Execute sends one query and decodes the reply. Transport failures (no
// responder, connection loss, request timeout) are retried with capped
// exponential backoff; once any reply arrives, its verdict is final.
func (c *Client) Execute(ctx context.Context, query string, params []any, opts Options) (*domain.ExecuteResponse, error) {
	body, err := json.Marshal(domain.ExecuteRequest{
		Query:      query,
		Params:     params,
		AllowWrite: opts.AllowWrite,
		TimeoutMs:  opts.TimeoutMs,
		MaxRows:    opts.MaxRows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.execute", c.cfg.SubjectPrefix, c.tenant)
	reply, err := c.requestWithRetry(ctx, subject, body)
	if err != nil {
		return nil, err
	}
	return decodeReply(reply)
}

func (c *Client) requestWithRetry(ctx context.Context, subject string, body []byte) ([]byte, error) {
	backoff := c.cfg.BaseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		reply, err := c.bus.Request(reqCtx, subject, body)
		cancel()
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Warn("transport failure, retrying",
			slog.String("subject", subject),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
	return nil, fmt.Errorf("request %s failed after %d attempts: %w", subject, c.cfg.MaxAttempts, lastErr)
}

// Select runs a read and returns all rows.
func (c *Client) Select(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	resp, err := c.Execute(ctx, query, params, Options{})
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// SelectOne runs a read and returns the first row, or nil when the result is
// empty.
func (c *Client) SelectOne(ctx context.Context, query string, params ...any) (map[string]any, error) {
	resp, err := c.Execute(ctx, query, params, Options{MaxRows: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, nil
	}
	return resp.Rows[0], nil
}

// Insert runs an insert and returns the affected-row count.
func (c *Client) Insert(ctx context.Context, query string, params ...any) (int, error) {
	return c.write(ctx, query, params)
}

// InsertMany runs the same insert once per parameter row and returns the
// total affected-row count. It stops at the first failure.
func (c *Client) InsertMany(ctx context.Context, query string, rows [][]any) (int, error) {
	total := 0
	for i, params := range rows {
		n, err := c.write(ctx, query, params)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// Update runs an update and returns the affected-row count.
func (c *Client) Update(ctx context.Context, query string, params ...any) (int, error) {
	return c.write(ctx, query, params)
}

// Delete runs a delete and returns the affected-row count.
func (c *Client) Delete(ctx context.Context, query string, params ...any) (int, error) {
	return c.write(ctx, query, params)
}

func (c *Client) write(ctx context.Context, query string, params []any) (int, error) {
	resp, err := c.Execute(ctx, query, params, Options{AllowWrite: true})
	if err != nil {
		return 0, err
	}
	return resp.RowCount, nil
}

// clientCodes maps wire codes back onto the shared taxonomy. PARAM_ERROR is
// the client-facing alias of PARAMETER_ERROR.
var clientCodes = map[string]domain.ErrorKind{
	"PARAM_ERROR": domain.KindParameter,
}

func decodeReply(reply []byte) (*domain.ExecuteResponse, error) {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(reply, &probe); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if probe.Error != "" {
		var envelope domain.ErrorResponse
		if err := json.Unmarshal(reply, &envelope); err != nil {
			return nil, fmt.Errorf("decode error reply: %w", err)
		}
		kind, ok := clientCodes[envelope.Error]
		if !ok {
			kind = domain.ErrorKind(envelope.Error)
		}
		gerr := &domain.Error{Kind: kind, Message: envelope.Message, Details: envelope.Details}
		return nil, gerr
	}
	var resp domain.ExecuteResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &resp, nil
}

// IsTransient reports whether an error is a transport-level failure a caller
// could reasonably retry later. Gateway verdicts are never transient.
func IsTransient(err error) bool {
	if _, ok := domain.AsError(err); ok {
		return false
	}
	return errors.Is(err, bus.ErrNoResponder) ||
		errors.Is(err, context.DeadlineExceeded)
}
