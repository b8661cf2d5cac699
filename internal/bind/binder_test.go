package bind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

func TestBind_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		params     []any
		wantQuery  string
		wantValues []any
	}{
		{
			"single", "SELECT * FROM t WHERE id = $1", []any{int64(7)},
			"SELECT * FROM t WHERE id = ?", []any{int64(7)},
		},
		{
			"out_of_order", "WHERE x = $2 AND y = $1", []any{"first", "second"},
			"WHERE x = ? AND y = ?", []any{"second", "first"},
		},
		{
			"repeated", "WHERE a = $1 OR b = $1", []any{"v"},
			"WHERE a = ? OR b = ?", []any{"v", "v"},
		},
		{
			"double_digit", "SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11",
			[]any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
			"SELECT ?,?,?,?,?,?,?,?,?,?,?", []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		},
		{
			"no_placeholders", "SELECT 1", nil,
			"SELECT 1", []any{},
		},
		{
			"dollar_in_string_untouched", "SELECT * FROM t WHERE name = '$1' AND id = $1", []any{int64(3)},
			"SELECT * FROM t WHERE name = '$1' AND id = ?", []any{int64(3)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bound, err := Bind(tc.query, tc.params, false)
			require.NoError(t, err)
			assert.Equal(t, tc.wantQuery, bound.Query)
			assert.Equal(t, tc.wantValues, bound.Values)
		})
	}
}

func TestBind_Idempotent(t *testing.T) {
	query := "UPDATE t SET a = $2, b = $1 WHERE id = $3"
	params := []any{"a", "b", int64(1)}
	first, err := Bind(query, params, true)
	require.NoError(t, err)
	second, err := Bind(query, params, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBind_MissingParameter(t *testing.T) {
	_, err := Bind("WHERE a = $2", []any{"only-one"}, false)
	require.Error(t, err)
	ge, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindParameter, ge.Kind)
}

func TestBind_InjectionStaysAParameter(t *testing.T) {
	payload := "; DROP TABLE users; --"
	bound, err := Bind("SELECT * FROM t WHERE name = $1", []any{payload}, true)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE name = ?", bound.Query)
	require.Len(t, bound.Values, 1)
	assert.Equal(t, payload, bound.Values[0], "payload must reach the driver verbatim as a value")
	assert.Equal(t, 1, MarkerCount(bound.Query))
}

func TestCoerce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool_true", true, int64(1)},
		{"bool_false", false, int64(0)},
		{"int", 42, 42},
		{"float", 3.5, 3.5},
		{"string", "x", "x"},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"time", now, "2025-06-01T12:30:00Z"},
		{"slice_to_json", []any{1.0, "a"}, `[1,"a"]`},
		{"map_to_json", map[string]any{"k": true}, `{"k":true}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bound, err := Bind("SELECT $1", []any{tc.in}, true)
			require.NoError(t, err)
			assert.Equal(t, tc.want, bound.Values[0])
		})
	}
}

func TestCoerce_Disabled(t *testing.T) {
	bound, err := Bind("SELECT $1", []any{true}, false)
	require.NoError(t, err)
	assert.Equal(t, true, bound.Values[0])
}
