package model

import (
	"strconv"
	"strings"
	"time"
)

// CompareValues orders two field values. Numbers compare numerically, times
// chronologically and strings lexically (case-insensitive). A slice compares
// by its first element. ok is false when the values are not comparable,
// including when either is nil.
func CompareValues(a, b interface{}) (cmp int, ok bool) {
	a, b = first(a), first(b)
	if a == nil || b == nil {
		return 0, false
	}

	// Numeric comparison; strings only count as numbers when both sides parse
	if af, aok := ToFloat64(a); aok {
		if bf, bok := ToFloat64(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}

	// Time comparison
	if at, aok := ToTime(a); aok {
		if bt, bok := ToTime(b); bok {
			return at.Compare(bt), true
		}
	}

	// String comparison
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(strings.ToLower(as), strings.ToLower(bs)), true
		}
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0, true
			case !ab:
				return -1, true
			}
			return 1, true
		}
	}

	return 0, false
}

// InRange reports whether v lies within [lower, upper], honoring exclusive
// bounds. A nil bound is open.
func InRange(v, lower, upper interface{}, includeLower, includeUpper bool) bool {
	switch values := v.(type) {
	case []interface{}:
		for _, item := range values {
			if InRange(item, lower, upper, includeLower, includeUpper) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range values {
			if InRange(item, lower, upper, includeLower, includeUpper) {
				return true
			}
		}
		return false
	}
	if v == nil {
		return false
	}
	if lower != nil {
		c, ok := CompareValues(v, lower)
		if !ok || c < 0 || (c == 0 && !includeLower) {
			return false
		}
	}
	if upper != nil {
		c, ok := CompareValues(v, upper)
		if !ok || c > 0 || (c == 0 && !includeUpper) {
			return false
		}
	}
	return true
}

func first(v interface{}) interface{} {
	switch s := v.(type) {
	case []interface{}:
		if len(s) == 0 {
			return nil
		}
		return s[0]
	case []string:
		if len(s) == 0 {
			return nil
		}
		return s[0]
	}
	return v
}

// ToFloat64 converts various numeric types to float64
func ToFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToTime converts various time representations to time.Time
func ToTime(val interface{}) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t, true
			}
		}
	case int64:
		// Unix timestamp
		return time.Unix(v, 0), true
	case float64:
		// Unix timestamp as float
		return time.Unix(int64(v), 0), true
	}
	return time.Time{}, false
}

// TextValues renders a field value as the strings that get analyzed for
// full-text indexing. Arrays yield one string per element; numbers and
// booleans are formatted; nested objects are skipped.
func TextValues(val interface{}) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, TextValues(item)...)
		}
		return out
	case bool:
		return []string{strconv.FormatBool(v)}
	case time.Time:
		return []string{v.Format(time.RFC3339)}
	}
	if f, ok := ToFloat64(val); ok {
		return []string{strconv.FormatFloat(f, 'f', -1, 64)}
	}
	return nil
}
