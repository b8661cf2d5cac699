package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// Sink persists audit records. Write must never block the caller.
type Sink interface {
	Write(rec domain.AuditRecord)
}

// NopSink discards records. Useful when persistence is disabled and in tests.
type NopSink struct{}

func (NopSink) Write(domain.AuditRecord) {}

const insertRecord = `
INSERT INTO rosey_audit_log
	(id, ts, tenant, query_hash, query_preview, param_count, elapsed_ms, status, row_count, error_kind, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink writes records through a buffered channel drained by a single
// writer goroutine, so a slow or failing disk never backs up into the request
// path. Records are dropped (and counted) when the buffer is full.
type SQLiteSink struct {
	db      *sql.DB
	logger  *slog.Logger
	ch      chan domain.AuditRecord
	dropped atomic.Int64
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewSQLiteSink(db *sql.DB, bufferSize int, logger *slog.Logger) *SQLiteSink {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	s := &SQLiteSink{
		db:     db,
		logger: logger,
		ch:     make(chan domain.AuditRecord, bufferSize),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Write never blocks and never panics: a full buffer drops the record, and a
// record arriving after Close (a handler can still be mid-flight during
// shutdown) is dropped the same way.
func (s *SQLiteSink) Write(rec domain.AuditRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop()
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.drop()
	}
}

func (s *SQLiteSink) drop() {
	if s.dropped.Add(1)%100 == 1 {
		s.logger.Warn("audit sink dropping records",
			slog.Int64("dropped_total", s.dropped.Load()))
	}
}

// Dropped reports how many records were discarded because the buffer was full.
func (s *SQLiteSink) Dropped() int64 { return s.dropped.Load() }

// Close stops accepting records and waits for the buffer to flush. The write
// lock is held only for the flag flip and channel close, never across the
// drain wait, so in-flight Writes settle first.
func (s *SQLiteSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteSink) drain() {
	defer close(s.done)
	for rec := range s.ch {
		var errKind, errMsg any
		if rec.ErrorKind != nil {
			errKind = string(*rec.ErrorKind)
		}
		if rec.ErrorMessage != nil {
			errMsg = *rec.ErrorMessage
		}
		var rowCount any
		if rec.RowCount != nil {
			rowCount = *rec.RowCount
		}
		_, err := s.db.Exec(insertRecord,
			rec.ID, rec.Timestamp, rec.Tenant, rec.QueryHash, rec.QueryPreview,
			rec.ParamCount, rec.ElapsedMs, rec.Status, rowCount, errKind, errMsg)
		if err != nil {
			s.logger.Error("audit record write failed",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()))
		}
	}
}
