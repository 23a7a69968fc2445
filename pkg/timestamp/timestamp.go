// Package timestamp parses and formats the timestamps carried in wire frames.
//
// Backends emit timestamps in several shapes: RFC3339 with or without
// fractional seconds, ISO-8601 without a zone (treated as UTC), and Unix
// seconds or milliseconds as numbers or numeric strings. Parse accepts all of
// them and returns the zero time when nothing matches.
//
// Zero Value Semantics:
//   - The zero time.Time means "not set" or "unknown"
//   - Format returns an empty string for it
package timestamp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order for string timestamps without a numeric form.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Wire is the layout used for outbound frames
const Wire = time.RFC3339Nano

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// FromUnix converts a Unix value to time.Time. Values greater than 1e12
// (year 2001 in seconds) are taken as milliseconds, others as seconds.
func FromUnix(v float64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// Parse converts various timestamp formats to time.Time.
// Supports:
//   - int, int32, int64, float64 (Unix seconds or milliseconds)
//   - json.Number
//   - string (RFC3339, zone-less ISO-8601 or numeric)
//   - time.Time and *time.Time
//   - nil (returns zero time)
//
// Returns the zero time for invalid input.
func Parse(input any) time.Time {
	switch v := input.(type) {
	case nil:
		return time.Time{}
	case int64:
		return FromUnix(float64(v))
	case int:
		return FromUnix(float64(v))
	case int32:
		return FromUnix(float64(v))
	case float64:
		return FromUnix(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}
		}
		return FromUnix(f)
	case string:
		t, err := ParseString(v)
		if err != nil {
			return time.Time{}
		}
		return t
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return v.UTC()
	default:
		return time.Time{}
	}
}

// ParseString parses a wire timestamp string.
func ParseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp: empty string")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromUnix(f), nil
	}

	return time.Time{}, fmt.Errorf("timestamp: unrecognised format %q", s)
}

// OrNow returns t, or the current time when t is zero.
func OrNow(t time.Time) time.Time {
	if t.IsZero() {
		return Now()
	}
	return t
}

// Format renders t for outbound frames. Returns empty string for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Wire)
}
