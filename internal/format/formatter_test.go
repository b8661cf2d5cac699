package format

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

func TestSuccess_ValueEncoding(t *testing.T) {
	f := New(slog.Default())

	res := domain.ExecutionResult{
		Rows: []map[string]any{{
			"id":     int64(7),
			"name":   "alice",
			"ratio":  0.5,
			"active": true,
			"note":   nil,
			"blob":   []byte{0xde, 0xad, 0xbe, 0xef},
		}},
		RowCount:  1,
		Truncated: true,
		ElapsedMs: 12.5,
	}

	env := f.Success(res)
	require.Len(t, env.Rows, 1)
	row := env.Rows[0]
	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, "alice", row["name"])
	assert.Equal(t, 0.5, row["ratio"])
	assert.Equal(t, true, row["active"])
	assert.Nil(t, row["note"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef}), row["blob"])
	assert.Equal(t, 1, env.RowCount)
	assert.True(t, env.Truncated)
	assert.Equal(t, 12.5, env.ExecutionTimeMs)
}

func TestSuccess_EmptyRowsMarshalAsArray(t *testing.T) {
	f := New(slog.Default())
	env := f.Success(domain.ExecutionResult{RowCount: 0})
	assert.NotNil(t, env.Rows)
	assert.Empty(t, env.Rows)
}

func TestFailure_ParameterAlias(t *testing.T) {
	f := New(slog.Default())
	env := f.Failure(domain.ErrParameter("placeholder $3 has no matching parameter"),
		"trivia", "SELECT * FROM trivia__scores WHERE id = $3", 1)
	assert.Equal(t, "PARAM_ERROR", env.Error)
	assert.Equal(t, 1, env.Details["param_count"])
	assert.Contains(t, env.Details["query_preview"], "trivia__scores")
}

func TestFailure_CodesPassThrough(t *testing.T) {
	f := New(slog.Default())
	tests := []struct {
		err  error
		code string
	}{
		{domain.ErrSyntax("empty query"), "SYNTAX_ERROR"},
		{domain.ErrForbidden("DROP is not allowed"), "FORBIDDEN_STATEMENT"},
		{domain.ErrStacked("multiple statements"), "STACKED_QUERIES"},
		{domain.ErrNamespace("table outside namespace"), "NAMESPACE_VIOLATION"},
		{domain.ErrPermission("allow_write", "writes need allow_write"), "PERMISSION_DENIED"},
		{domain.ErrTimeout(5000), "TIMEOUT"},
		{domain.ErrExecution("engine failure"), "EXECUTION_ERROR"},
		{domain.ErrRateLimited("trivia", 900), "RATE_LIMIT_EXCEEDED"},
		{domain.ErrShape("query must be a string"), "REQUEST_SHAPE"},
	}
	for _, tc := range tests {
		env := f.Failure(tc.err, "trivia", "", 0)
		assert.Equal(t, tc.code, env.Error)
	}
}

func TestFailure_UnclassifiedBecomesUnknown(t *testing.T) {
	f := New(slog.Default())
	env := f.Failure(errors.New("slice bounds out of range"), "trivia", "", 0)
	assert.Equal(t, "UNKNOWN_ERROR", env.Error)
	assert.NotContains(t, env.Message, "slice bounds", "internal detail must not leak")
}

func TestFailure_DetailSanitization(t *testing.T) {
	f := New(slog.Default())
	long := strings.Repeat("x", 500)
	err := domain.ErrExecution("a constraint prevented the statement").
		WithDetail("constraint_type", "unique").
		WithDetail("offending", long).
		WithDetail("raw", []byte("secret"))

	env := f.Failure(err, "trivia", long, 3)
	assert.Equal(t, "unique", env.Details["constraint_type"])
	assert.Len(t, env.Details["offending"], previewLimit+3)
	assert.Equal(t, "<bytes:6>", env.Details["raw"])
	assert.Len(t, env.Details["query_preview"], previewLimit+3)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 100))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "abcdef", Preview("abcdef", 0))
}
