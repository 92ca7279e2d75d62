package supervisor

import (
	"bytes"
	"fmt"
	"os"
	"sync"
)

// logSink is the supervisor's append-truncated log file, per spec.md §6.
// It receives both the supervisor's own structured log lines (via zap,
// configured to write here once daemonized) and the raw relayed stdout/
// stderr of every module, tagged with the owning module's bracketed name
// per §4.4. Module output is written as-is: imposing zap's structured
// shape on foreign process output would violate the "lines are arbitrary
// text" non-goal in spec.md §1.
type logSink struct {
	mu   sync.Mutex
	file *os.File
}

func openLogSink(path string) (*logSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink %s: %w", path, err)
	}
	return &logSink{file: f}, nil
}

// relay writes a module-pipe chunk, prefixed per line with "[name] ", and
// ensures the chunk is newline-terminated. It allocates the prefix and the
// split line slices once per chunk; the read buffer itself is the caller's
// fixed, reused one.
func (ls *logSink) relay(moduleName string, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	prefix := []byte("[" + moduleName + "] ")
	lines := bytes.Split(chunk, []byte("\n"))
	for i, line := range lines {
		if i == len(lines)-1 && len(line) == 0 {
			continue // trailing split artifact after a final newline
		}
		_, _ = ls.file.Write(prefix)
		_, _ = ls.file.Write(line)
		_, _ = ls.file.Write([]byte("\n"))
	}
}

func (ls *logSink) fd() uintptr { return ls.file.Fd() }

func (ls *logSink) close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.file.Close()
}
