package patient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Time
		expectError bool
	}{
		{name: "Zulu suffix", input: "1815-12-10T00:00:00Z", expected: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)},
		{name: "Numeric offset", input: "2024-03-01T10:30:00+02:00", expected: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{name: "Fractional seconds truncated to ms", input: "2024-03-01T10:30:00.123456Z", expected: time.Date(2024, 3, 1, 10, 30, 0, 123000000, time.UTC)},
		{name: "No zone is UTC", input: "2024-03-01T10:30:00", expected: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{name: "Space separator", input: "2024-03-01 10:30:00", expected: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{name: "Date only", input: "1990-05-17", expected: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)},
		{name: "Surrounding whitespace", input: "  1990-05-17 ", expected: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)},
		{name: "Empty", input: "", expectError: true},
		{name: "Garbage", input: "yesterday", expectError: true},
		{name: "Invalid month", input: "2024-13-01", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(ts.Time), "got %s", ts.Time)
			assert.Equal(t, time.UTC, ts.Location())
		})
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 3, 1, 10, 30, 0, 250000000, time.FixedZone("CET", 3600)))

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-01T09:30:00.25Z"`, string(b))

	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Equal(back.Time))

	var fromNull Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &fromNull))
	assert.True(t, fromNull.IsZero())

	var fromNumber Timestamp
	assert.Error(t, json.Unmarshal([]byte(`12345`), &fromNumber))
}
