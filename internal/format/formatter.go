// Package format renders pipeline outcomes into the JSON envelopes sent back
// over the bus. It owns the serialization rules for row values and the
// sanitization rules for error details.
package format

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// previewLimit bounds the query preview attached to error envelopes.
const previewLimit = 160

// wireCodes maps internal error kinds onto the codes clients see. Only
// PARAMETER_ERROR is renamed; the historical client surface calls it
// PARAM_ERROR.
var wireCodes = map[domain.ErrorKind]string{
	domain.KindParameter: "PARAM_ERROR",
}

// Formatter builds success and error envelopes.
type Formatter struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Formatter {
	return &Formatter{logger: logger}
}

// Success renders an execution result. Row values pass through unchanged
// except for binary values, which are base64-encoded, and unexpected types,
// which are stringified.
func (f *Formatter) Success(result domain.ExecutionResult) domain.ExecuteResponse {
	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		out := make(map[string]any, len(row))
		for col, val := range row {
			out[col] = f.encodeValue(col, val)
		}
		rows = append(rows, out)
	}
	return domain.ExecuteResponse{
		Rows:            rows,
		RowCount:        result.RowCount,
		ExecutionTimeMs: result.ElapsedMs,
		Truncated:       result.Truncated,
	}
}

// Failure renders any pipeline error as a structured envelope. Errors outside
// the gateway taxonomy collapse to UNKNOWN_ERROR with a generic message so no
// internal detail reaches the caller.
func (f *Formatter) Failure(err error, tenant, query string, paramCount int) domain.ErrorResponse {
	ge, ok := domain.AsError(err)
	if !ok {
		f.logger.Error("unclassified error reached the formatter",
			slog.String("tenant", tenant),
			slog.String("error", err.Error()))
		ge = domain.ErrUnknown("the request could not be processed")
	}

	details := make(map[string]any, len(ge.Details)+2)
	for k, v := range ge.Details {
		details[k] = sanitizeDetail(v)
	}
	if query != "" {
		details["query_preview"] = Preview(query, previewLimit)
	}
	details["param_count"] = paramCount

	return domain.ErrorResponse{
		Error:   wireCode(ge.Kind),
		Message: ge.Message,
		Details: details,
	}
}

func (f *Formatter) encodeValue(col string, val any) any {
	switch v := val.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		f.logger.Debug("stringifying unexpected column type",
			slog.String("column", col),
			slog.String("type", fmt.Sprintf("%T", val)))
		return fmt.Sprint(v)
	}
}

// sanitizeDetail keeps error details within classification-tag territory:
// strings are preview-truncated and raw bytes never pass through.
func sanitizeDetail(v any) any {
	switch d := v.(type) {
	case string:
		return Preview(d, previewLimit)
	case []byte:
		return fmt.Sprintf("<bytes:%d>", len(d))
	default:
		return v
	}
}

func wireCode(kind domain.ErrorKind) string {
	if code, ok := wireCodes[kind]; ok {
		return code
	}
	return string(kind)
}

// Preview truncates s to at most limit characters, appending an ellipsis when
// anything was cut.
func Preview(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
