// Package bind rewrites $N placeholders into the engine's native positional
// markers and coerces parameter values into types the driver accepts.
package bind

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
	"github.com/grobertson/Rosey-Robot-sub001/internal/sqlscan"
)

// nativeMarker is SQLite's positional parameter marker.
const nativeMarker = "?"

// Bind rewrites every $N occurrence in left-to-right order into the engine's
// native marker and returns the matched values in that same order. A
// placeholder may repeat; each occurrence contributes its own value. The
// validator has already checked indices, but Bind re-validates defensively
// since it is the last gate before the driver.
//
// Bind has no hidden state: identical inputs always produce identical output.
func Bind(query string, params []any, coerce bool) (domain.BoundStatement, error) {
	type occurrence struct {
		pos, end int
		index    int
	}
	var occs []occurrence
	for _, tok := range sqlscan.Scan(query) {
		if tok.Type != sqlscan.TOKEN_PLACEHOLDER {
			continue
		}
		n, err := strconv.Atoi(tok.Literal[1:])
		if err != nil || n < 1 {
			return domain.BoundStatement{}, domain.ErrParameter("invalid placeholder %q", tok.Literal)
		}
		if n > len(params) {
			return domain.BoundStatement{}, domain.ErrParameter(
				"placeholder $%d exceeds the %d supplied parameters", n, len(params)).
				WithDetail("reason", "PARAM_COUNT_MISMATCH")
		}
		occs = append(occs, occurrence{pos: tok.Pos, end: tok.End, index: n})
	}

	values := make([]any, 0, len(occs))
	for _, occ := range occs {
		v := params[occ.index-1]
		if coerce {
			cv, err := coerceValue(v)
			if err != nil {
				return domain.BoundStatement{}, err
			}
			v = cv
		}
		values = append(values, v)
	}

	// Replace right-to-left so earlier byte offsets stay valid.
	rewritten := query
	for i := len(occs) - 1; i >= 0; i-- {
		occ := occs[i]
		rewritten = rewritten[:occ.pos] + nativeMarker + rewritten[occ.end:]
	}

	return domain.BoundStatement{Query: rewritten, Values: values}, nil
}

// coerceValue maps a caller-supplied value onto a type the driver's native
// binding accepts. Structured values become canonical JSON because the
// engine has no native list/map parameter types.
func coerceValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, string, []byte:
		return val, nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, domain.ErrParameter("parameter of type %T cannot be bound", v).WithCause(err)
		}
		return string(b), nil
	}
}

// MarkerCount reports how many native markers the bound query carries.
// Used by tests and diagnostics.
func MarkerCount(boundQuery string) int {
	count := 0
	inString := false
	for i := 0; i < len(boundQuery); i++ {
		switch boundQuery[i] {
		case '\'':
			inString = !inString
		case '?':
			if !inString {
				count++
			}
		}
	}
	return count
}
