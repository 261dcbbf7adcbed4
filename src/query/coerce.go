package query

import "strconv"

// CoerceNumerics returns a copy of the rows where every string cell that
// parses as a number is replaced with an int64 or float64. Non-numeric
// strings, nulls, and already-numeric values pass through unchanged. The
// pass is per-cell and best-effort: one unparseable cell never affects
// another. Applying the pass twice yields the same result.
func CoerceNumerics(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		coerced := make(map[string]any, len(row))
		for key, value := range row {
			coerced[key] = coerceValue(value)
		}
		out[i] = coerced
	}
	return out
}

func coerceValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
