package aggregator

// Client is the per-id aggregate spec.md §3 describes: a name, a running
// total, and the transient bookkeeping needed to fold overlapping connects.
type Client struct {
	ID                    int
	Name                  string
	TotalConnectedSeconds int64
	lastConnectedAt       int64 // unix seconds; 0 = not currently attributed
	activeConnCount       int
}

// ClientTable accumulates Client records across an entire aggregator run,
// keyed by id, per spec.md §4.7.
type ClientTable struct {
	byID map[int]*Client
	// order preserves first-seen insertion order so ties in the final sort
	// are resolved deterministically rather than by Go's unspecified map
	// iteration order.
	order []int
}

func NewClientTable() *ClientTable {
	return &ClientTable{byID: make(map[int]*Client)}
}

func (ct *ClientTable) lookup(id int) (*Client, bool) {
	c, ok := ct.byID[id]
	return c, ok
}

func (ct *ClientTable) getOrCreate(id int) *Client {
	if c, ok := ct.byID[id]; ok {
		return c
	}
	c := &Client{ID: id}
	ct.byID[id] = c
	ct.order = append(ct.order, id)
	return c
}

// Connect applies a CONNECT(id, name, t) event per spec.md §4.7.
func (ct *ClientTable) Connect(id int, name string, t int64) {
	c := ct.getOrCreate(id)
	c.activeConnCount++
	if c.activeConnCount == 1 {
		c.lastConnectedAt = t
		if name != "" && name != c.Name {
			c.Name = name
		}
	}
}

// Disconnect applies a DISCONNECT(id, t) event per spec.md §4.7. Missing
// clients, and disconnects unmatched by any active connection, are no-ops
// on totals — the spec is explicit that reconstructing a delta from these
// derelict pairs is worse than dropping them.
func (ct *ClientTable) Disconnect(id int, t int64) {
	c, ok := ct.lookup(id)
	if !ok {
		return
	}
	if c.activeConnCount == 0 {
		return
	}
	if c.activeConnCount == 1 && c.lastConnectedAt > 0 {
		c.TotalConnectedSeconds += t - c.lastConnectedAt
		c.lastConnectedAt = 0
	}
	c.activeConnCount--
}

// ResetForFileBoundary zeroes every client's transient connection counters
// while preserving totals and names, per spec.md §4.7's "File boundaries".
func (ct *ClientTable) ResetForFileBoundary() {
	for _, id := range ct.order {
		c := ct.byID[id]
		c.activeConnCount = 0
		c.lastConnectedAt = 0
	}
}

// All returns every Client in first-seen order.
func (ct *ClientTable) All() []*Client {
	out := make([]*Client, 0, len(ct.order))
	for _, id := range ct.order {
		out = append(out, ct.byID[id])
	}
	return out
}
