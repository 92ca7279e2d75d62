package aggregator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableWithTotals(totals map[int]int64) *ClientTable {
	ct := NewClientTable()
	for id, total := range totals {
		c := ct.getOrCreate(id)
		c.Name = "client"
		c.TotalConnectedSeconds = total
	}
	return ct
}

func TestSortedClientsAscendingDefault(t *testing.T) {
	ct := tableWithTotals(map[int]int64{2: 300, 3: 60, 4: 120})
	out := SortedClients(ct, ReportOptions{Mode: ModeAll})
	require.Len(t, out, 3)
	assert.Equal(t, []int64{60, 120, 300}, []int64{out[0].TotalConnectedSeconds, out[1].TotalConnectedSeconds, out[2].TotalConnectedSeconds})
}

func TestSortedClientsLowestN(t *testing.T) {
	ct := tableWithTotals(map[int]int64{2: 300, 3: 60, 4: 120})
	out := SortedClients(ct, ReportOptions{Mode: ModeLowestN, N: 2})
	require.Len(t, out, 2)
	assert.Equal(t, int64(60), out[0].TotalConnectedSeconds)
	assert.Equal(t, int64(120), out[1].TotalConnectedSeconds)
}

func TestSortedClientsHighestNReversed(t *testing.T) {
	ct := tableWithTotals(map[int]int64{2: 300, 3: 60, 4: 120})
	out := SortedClients(ct, ReportOptions{Mode: ModeHighestN, N: 2})
	require.Len(t, out, 2)
	assert.Equal(t, int64(300), out[0].TotalConnectedSeconds)
	assert.Equal(t, int64(120), out[1].TotalConnectedSeconds)
}

func TestFormatRowRawSeconds(t *testing.T) {
	c := &Client{Name: "Alice", TotalConnectedSeconds: 60}
	assert.Equal(t, "60\tAlice\n", FormatRow(c, true))
}

func TestFormatRowDecomposed(t *testing.T) {
	c := &Client{Name: "Bob", TotalConnectedSeconds: 90061} // 1d 1h 1m 1s
	assert.Equal(t, "1d 1h 1m 1s\tBob\n", FormatRow(c, false))
}

func TestWriteReport(t *testing.T) {
	ct := tableWithTotals(map[int]int64{2: 60})
	ct.byID[2].Name = "Alice"
	clients := SortedClients(ct, ReportOptions{Mode: ModeAll})

	var sb strings.Builder
	require.NoError(t, WriteReport(&sb, clients, true))
	assert.Equal(t, "60\tAlice\n", sb.String())
}
