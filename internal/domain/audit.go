package domain

import "time"

// AuditRecord is the append-only record of one request attempt. Exactly one
// record is produced per request regardless of outcome; records are never
// updated after creation.
type AuditRecord struct {
	ID           string
	Timestamp    time.Time
	Tenant       string
	QueryHash    string
	QueryPreview string
	ParamCount   int
	ElapsedMs    float64
	Status       string // "success" or "error"
	RowCount     *int
	ErrorKind    *ErrorKind
	ErrorMessage *string
}

// TenantMetrics is a derived snapshot of a tenant's running counters. It is
// recomputed on demand and never persisted.
type TenantMetrics struct {
	Tenant        string  `json:"tenant"`
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	TotalSlow     int64   `json:"total_slow"`
	TotalMs       float64 `json:"total_ms"`
	AvgMs         float64 `json:"avg_ms"`
	MaxMs         float64 `json:"max_ms"`
	ErrorRate     float64 `json:"error_rate"`
	SlowRate      float64 `json:"slow_rate"`
}

// MetricsSnapshot aggregates the global counters plus per-tenant breakdowns.
type MetricsSnapshot struct {
	Global  TenantMetrics            `json:"global"`
	Tenants map[string]TenantMetrics `json:"tenants"`
}
