package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineConnect(t *testing.T) {
	line := "2023-01-01 00:00:00 | INFO | VirtualServerBase | ... client connected 'Alice'(id:2) ..."
	ev, ok := ParseLine(line, time.Time{}, nil)
	require.True(t, ok)
	assert.Equal(t, 2, ev.ID)
	assert.Equal(t, "Alice", ev.Name)
	assert.Equal(t, Connect, ev.Kind)
	assert.Equal(t, int64(1672531200), ev.Time.Unix())
}

func TestParseLineDisconnect(t *testing.T) {
	line := "2023-01-01 00:01:00 | INFO | VirtualServerBase | ... client disconnected 'Alice'(id:2) ..."
	ev, ok := ParseLine(line, time.Time{}, nil)
	require.True(t, ok)
	assert.Equal(t, Disconnect, ev.Kind)
}

func TestParseLineDropsUnparseableTimestamp(t *testing.T) {
	_, ok := ParseLine("garbage client connected 'Bob'(id:3)", time.Time{}, nil)
	assert.False(t, ok)
}

func TestParseLineDropsBeforeFloor(t *testing.T) {
	floor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	line := "2023-01-01 00:00:00 | INFO | VirtualServerBase | client connected 'Alice'(id:2)"
	_, ok := ParseLine(line, floor, nil)
	assert.False(t, ok)
}

func TestParseLineDropsNoMarker(t *testing.T) {
	line := "2023-01-01 00:00:00 | INFO | VirtualServerBase | nothing interesting here"
	_, ok := ParseLine(line, time.Time{}, nil)
	assert.False(t, ok)
}

func TestParseLineStripsNonASCIIFromName(t *testing.T) {
	line := "2023-01-01 00:00:00 | INFO | client connected 'B\xffob'(id:5)"
	ev, ok := ParseLine(line, time.Time{}, nil)
	require.True(t, ok)
	assert.Equal(t, "Bob", ev.Name)
}

func TestParseLineDropsNonPositiveID(t *testing.T) {
	var warned string
	_, ok := ParseLine("2023-01-01 00:00:00 | client connected 'X'(id:0)", time.Time{}, func(s string) { warned = s })
	assert.False(t, ok)
	assert.NotEmpty(t, warned)
}

func TestParseLineDropsServiceAccountSilently(t *testing.T) {
	warnCalled := false
	_, ok := ParseLine("2023-01-01 00:00:00 | client connected 'Server'(id:1)", time.Time{}, func(string) { warnCalled = true })
	assert.False(t, ok)
	assert.False(t, warnCalled)
}

func TestParseLinePicksEarlierMarkerWhenBothPresent(t *testing.T) {
	// Only one marker can realistically appear per line, but the scan must
	// not panic or misparse if both substrings happen to occur.
	line := "2023-01-01 00:00:00 | client disconnected talk then client connected 'Z'(id:9)"
	ev, ok := ParseLine(line, time.Time{}, nil)
	require.True(t, ok)
	assert.Equal(t, Disconnect, ev.Kind)
}
