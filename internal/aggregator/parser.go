package aggregator

import (
	"strconv"
	"strings"
	"time"
)

// EventKind distinguishes a connect from a disconnect event, per spec.md
// §4.6.
type EventKind int

const (
	Connect EventKind = iota
	Disconnect
)

// Event is one parsed (timestamp, client id, client name, kind) tuple.
type Event struct {
	Time time.Time
	ID   int
	Name string
	Kind EventKind
}

const timestampLayout = "2006-01-02 15:04:05"
const timestampLen = len(timestampLayout)

const (
	connectedMarker    = "client connected"
	disconnectedMarker = "client disconnected"
)

// ParseLine turns one raw log line into an Event, per spec.md §4.6. ok is
// false when the line should be silently dropped (bad timestamp, before the
// floor, no connect/disconnect marker, or a malformed id). warn, if non-nil
// and ok is false with a non-empty reason, receives a one-line diagnostic —
// the caller decides whether and how to surface it (spec.md §7's "malformed
// input... log a warning once, skip").
func ParseLine(line string, floor time.Time, warn func(string)) (Event, bool) {
	t, ok := parseTimestamp(line)
	if !ok {
		return Event{}, false
	}
	if !floor.IsZero() && t.Before(floor) {
		return Event{}, false
	}

	rest := line[timestampLen:]
	marker, kind, ok := findMarker(rest)
	if !ok {
		return Event{}, false
	}

	name, id, ok := parseNameAndID(rest[marker:])
	if !ok {
		return Event{}, false
	}

	if id <= 0 {
		if warn != nil {
			warn("dropping event with non-positive client id")
		}
		return Event{}, false
	}
	if id == 1 {
		// Service account; dropped without a warning per spec.md §4.6.
		return Event{}, false
	}

	return Event{Time: t, ID: id, Name: name, Kind: kind}, true
}

func parseTimestamp(line string) (time.Time, bool) {
	if len(line) < timestampLen {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, line[:timestampLen], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// findMarker locates the earlier of "client connected"/"client
// disconnected" in rest and returns the index immediately past the marker
// along with the event kind it denotes.
func findMarker(rest string) (afterIdx int, kind EventKind, ok bool) {
	ci := strings.Index(rest, connectedMarker)
	di := strings.Index(rest, disconnectedMarker)

	switch {
	case ci < 0 && di < 0:
		return 0, 0, false
	case di < 0 || (ci >= 0 && ci < di):
		return ci + len(connectedMarker), Connect, true
	default:
		return di + len(disconnectedMarker), Disconnect, true
	}
}

// parseNameAndID extracts NAME and DIGITS from "'<NAME>'(id:<DIGITS>)...",
// per spec.md §4.6's exact grammar: NAME runs from the first apostrophe to
// the first "'(" thereafter, ASCII only; DIGITS are a signed decimal up to
// the closing parenthesis.
func parseNameAndID(s string) (name string, id int, ok bool) {
	start := strings.IndexByte(s, '\'')
	if start < 0 {
		return "", 0, false
	}
	s = s[start+1:]

	end := strings.Index(s, "'(")
	if end < 0 {
		return "", 0, false
	}

	var b strings.Builder
	for i := 0; i < end; i++ {
		c := s[i]
		if c&0x80 == 0 {
			b.WriteByte(c)
		}
	}
	name = b.String()

	rest := s[end+2:]
	const idPrefix = "id:"
	if !strings.HasPrefix(rest, idPrefix) {
		return "", 0, false
	}
	rest = rest[len(idPrefix):]

	closeIdx := strings.IndexByte(rest, ')')
	if closeIdx < 0 {
		return "", 0, false
	}
	digits := rest[:closeIdx]

	n, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return "", 0, false
	}
	return name, n, true
}
