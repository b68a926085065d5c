// Package coerce turns loosely typed scalar input (CSV cells, decoded JSON values)
// into typed nullable values. A nil result means the value is absent.
// None of the functions fail: input that cannot be interpreted becomes absent.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TriBool interprets raw as true, false or unknown (nil).
//
//	"1", "true", "yes", "y"     -> true
//	"0", "false", "no", "n", "" -> false
//	anything else, nil          -> unknown
//
// Matching is case-insensitive and ignores surrounding whitespace.
func TriBool(raw any) *bool {
	if raw == nil {
		return nil
	}
	if b, ok := raw.(bool); ok {
		return &b
	}
	s, ok := stringify(raw)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return ptr(true)
	case "0", "false", "no", "n", "":
		return ptr(false)
	default:
		return nil
	}
}

// Int parses raw as a number and truncates it toward zero, so "12.0" and "7.9" are accepted.
// Absent, empty, non-numeric and non-finite input yields nil, as does anything outside int32.
func Int(raw any) *int {
	f, ok := number(raw)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	return ptr(int(math.Trunc(f)))
}

// SaturatingInt is Int without the int32 bound: numbers beyond the int range
// saturate to math.MaxInt or math.MinInt instead of becoming absent.
func SaturatingInt(raw any) *int {
	f, ok := number(raw)
	switch {
	case !ok:
		return nil
	case f >= math.MaxInt:
		return ptr(math.MaxInt)
	case f <= math.MinInt:
		return ptr(math.MinInt)
	}
	return ptr(int(math.Trunc(f)))
}

func number(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		s, ok := stringify(raw)
		if !ok {
			return 0, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// TrimmedString stringifies raw and trims it. Empty results are absent.
func TrimmedString(raw any) *string {
	s, ok := stringify(raw)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringify(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func ptr[T any](v T) *T {
	return &v
}
