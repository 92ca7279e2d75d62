package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTableSimpleConnectDisconnect(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(2, "Alice", 0)
	ct.Disconnect(2, 60)

	c, ok := ct.lookup(2)
	require.True(t, ok)
	assert.Equal(t, int64(60), c.TotalConnectedSeconds)
	assert.Equal(t, 0, c.activeConnCount)
}

func TestClientTableOverlappingConnections(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(3, "Bob", 0)
	ct.Connect(3, "Bob", 30)
	ct.Disconnect(3, 60)
	ct.Disconnect(3, 120)

	c, ok := ct.lookup(3)
	require.True(t, ok)
	assert.Equal(t, int64(120), c.TotalConnectedSeconds)
}

func TestClientTableMissingConnectIsNoOp(t *testing.T) {
	ct := NewClientTable()
	ct.Disconnect(4, 0)
	_, ok := ct.lookup(4)
	assert.False(t, ok)
}

func TestClientTableFileBoundaryDropsUnterminatedConnect(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(5, "Dave", 100)
	ct.ResetForFileBoundary()

	c, ok := ct.lookup(5)
	require.True(t, ok)
	assert.Equal(t, int64(0), c.TotalConnectedSeconds)
	assert.Equal(t, 0, c.activeConnCount)
	assert.Equal(t, int64(0), c.lastConnectedAt)

	ct.Connect(5, "Dave", 200)
	ct.Disconnect(5, 260)

	c, _ = ct.lookup(5)
	assert.Equal(t, int64(60), c.TotalConnectedSeconds)
}

func TestClientTableDoubleDisconnectIsNoOpOnTotals(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(6, "Eve", 0)
	ct.Disconnect(6, 10)
	ct.Disconnect(6, 999)

	c, _ := ct.lookup(6)
	assert.Equal(t, int64(10), c.TotalConnectedSeconds)
}

func TestClientTablePreservesMostRecentName(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(7, "Old", 0)
	ct.Disconnect(7, 1)
	ct.Connect(7, "New", 2)

	c, _ := ct.lookup(7)
	assert.Equal(t, "New", c.Name)
}

func TestClientTableOverlappingRejoinDoesNotClobberName(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(9, "Bob", 0)
	ct.Connect(9, "Bob1", 30) // overlapping rejoin under a transient alternate name
	ct.Disconnect(9, 60)

	c, ok := ct.lookup(9)
	require.True(t, ok)
	assert.Equal(t, "Bob", c.Name)

	ct.Disconnect(9, 120)
	c, _ = ct.lookup(9)
	assert.Equal(t, "Bob", c.Name)
}

func TestClientTableTotalsNeverDecreaseAcrossMultipleSessions(t *testing.T) {
	ct := NewClientTable()
	ct.Connect(8, "Frank", 0)
	ct.Disconnect(8, 10)
	first := ct.byID[8].TotalConnectedSeconds

	ct.Connect(8, "Frank", 20)
	ct.Disconnect(8, 45)
	second := ct.byID[8].TotalConnectedSeconds

	assert.Equal(t, int64(10), first)
	assert.Equal(t, int64(35), second)
	assert.GreaterOrEqual(t, second, first)
}
