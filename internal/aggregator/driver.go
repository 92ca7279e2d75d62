package aggregator

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"
)

// RunOptions configures one end-to-end aggregator pass, per spec.md §4.8.
type RunOptions struct {
	// Floor drops any event timestamped earlier than it, zero value means
	// no floor (the `-d` flag).
	Floor time.Time
	// Warn receives one-line diagnostics for skipped files and malformed
	// input; may be nil.
	Warn func(string)
}

const maxLineBytes = 4096

// Run enumerates dir's log files in creation-time order, feeds every line
// through the line parser and client accounting, and returns the resulting
// table, per spec.md §4.6-§4.8.
func Run(dir string, opts RunOptions) (*ClientTable, error) {
	files, err := EnumerateLogFiles(dir, opts.Warn)
	if err != nil {
		return nil, err
	}

	ct := NewClientTable()
	for _, f := range files {
		if err := processFile(f, ct, opts); err != nil {
			return nil, err
		}
		ct.ResetForFileBoundary()
	}
	return ct, nil
}

// processFile applies every valid event in one log file to ct. Per
// spec.md §4.8, lines that do not fit the 4096-byte line buffer are fatal
// (they imply the on-disk format assumption is violated, not a malformed
// single event).
func processFile(f LogFile, ct *ClientTable, opts RunOptions) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, maxLineBytes), maxLineBytes)

	for sc.Scan() {
		ev, ok := ParseLine(sc.Text(), opts.Floor, opts.Warn)
		if !ok {
			continue
		}
		switch ev.Kind {
		case Connect:
			ct.Connect(ev.ID, ev.Name, ev.Time.Unix())
		case Disconnect:
			ct.Disconnect(ev.ID, ev.Time.Unix())
		}
	}

	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%s: line exceeds %d bytes: %w", f.Path, maxLineBytes, err)
		}
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return nil
}
