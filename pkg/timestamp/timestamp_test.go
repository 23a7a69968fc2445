package timestamp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTime   = time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	testTimeMs = int64(1673785845123)
)

func TestNow(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts := Now()

	assert.True(t, ts.After(before))
	assert.Equal(t, time.UTC, ts.Location())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected time.Time
	}{
		{"nil", nil, time.Time{}},
		{"milliseconds int64", testTimeMs, testTime},
		{"milliseconds float64", float64(testTimeMs), testTime},
		{"seconds int", 1673785845, testTime.Truncate(time.Second)},
		{"json number", json.Number("1673785845123"), testTime},
		{"rfc3339", "2023-01-15T12:30:45Z", testTime.Truncate(time.Second)},
		{"rfc3339 nano", "2023-01-15T12:30:45.123Z", testTime},
		{"rfc3339 offset", "2023-01-15T14:30:45.123+02:00", testTime},
		{"iso without zone", "2023-01-15T12:30:45.123000", testTime},
		{"iso seconds without zone", "2023-01-15T12:30:45", testTime.Truncate(time.Second)},
		{"space separated", "2023-01-15 12:30:45", testTime.Truncate(time.Second)},
		{"numeric string", "1673785845123", testTime},
		{"garbage", "yesterday", time.Time{}},
		{"empty", "", time.Time{}},
		{"time value", testTime, testTime},
		{"unsupported", struct{}{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}

func TestParse_NilPointer(t *testing.T) {
	var p *time.Time
	assert.True(t, Parse(p).IsZero())
}

func TestParseString_Error(t *testing.T) {
	_, err := ParseString("not a time")
	assert.Error(t, err)

	_, err = ParseString("   ")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Empty(t, Format(time.Time{}))

	formatted := Format(testTime)
	assert.Equal(t, "2023-01-15T12:30:45.123Z", formatted)

	parsed, err := ParseString(formatted)
	require.NoError(t, err)
	assert.True(t, testTime.Equal(parsed))
}

func TestOrNow(t *testing.T) {
	assert.Equal(t, testTime, OrNow(testTime))
	assert.False(t, OrNow(time.Time{}).IsZero())
}
