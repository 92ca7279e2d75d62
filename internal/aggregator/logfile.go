// Package aggregator reconstructs per-client connected-time totals from a
// directory of TS3 server log files, per spec.md §4.6-§4.9.
package aggregator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogFile is one server-run log, identified by the creation timestamp
// encoded in its filename.
type LogFile struct {
	Path string
	Time time.Time
}

const filenameTimeLayout = "ts3server_2006-01-02__15_04_05"

// EnumerateLogFiles scans dir for regular files ending in "_1.log", parses
// the creation timestamp out of each name, and returns them sorted ascending
// by that timestamp, per spec.md §4.8. Files whose names cannot be parsed
// are skipped (the caller is given a warning callback so skips are visible
// without baking a logging library choice into this package).
func EnumerateLogFiles(dir string, warn func(string)) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []LogFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_1.log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		t, ok := parseFilenameTime(e.Name())
		if !ok {
			if warn != nil {
				warn(fmt.Sprintf("skipping %s: unparseable timestamp in filename", e.Name()))
			}
			continue
		}
		files = append(files, LogFile{Path: filepath.Join(dir, e.Name()), Time: t})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Time.Before(files[j].Time) })
	return files, nil
}

// parseFilenameTime extracts the leading "ts3server_YYYY-MM-DD__HH_MM_SS"
// prefix of a log filename and parses it in UTC, per the resolved open
// question in SPEC_FULL.md §9 (no timezone offset is applied anywhere in
// this package).
func parseFilenameTime(name string) (time.Time, bool) {
	if len(name) < len(filenameTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(filenameTimeLayout, name[:len(filenameTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
