package aggregator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunSimple(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "ts3server_2023-01-01__00_00_00_1.log",
		"2023-01-01 00:00:00 | INFO | client connected 'Alice'(id:2)",
		"2023-01-01 00:01:00 | INFO | client disconnected 'Alice'(id:2)",
	)

	ct, err := Run(dir, RunOptions{})
	require.NoError(t, err)

	c, ok := ct.lookup(2)
	require.True(t, ok)
	assert.Equal(t, int64(60), c.TotalConnectedSeconds)
}

func TestRunFileBoundaryDoesNotCreditTimePastFileEnd(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "ts3server_2023-01-01__00_00_00_1.log",
		"2023-01-01 00:00:00 | INFO | client connected 'Dave'(id:5)",
	)
	writeLogFile(t, dir, "ts3server_2023-01-01__00_05_00_1.log",
		"2023-01-01 00:05:00 | INFO | client connected 'Dave'(id:5)",
		"2023-01-01 00:06:00 | INFO | client disconnected 'Dave'(id:5)",
	)

	ct, err := Run(dir, RunOptions{})
	require.NoError(t, err)

	c, ok := ct.lookup(5)
	require.True(t, ok)
	assert.Equal(t, int64(60), c.TotalConnectedSeconds)
}

func TestRunSkipsUnparseableFilenames(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "not_a_ts3_log_1.log", "irrelevant")

	var warnings []string
	ct, err := Run(dir, RunOptions{Warn: func(s string) { warnings = append(warnings, s) }})
	require.NoError(t, err)
	assert.Empty(t, ct.All())
	assert.NotEmpty(t, warnings)
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "ts3server_2023-01-01__00_00_00_1.log",
		"2023-01-01 00:00:00 | INFO | client connected 'Alice'(id:2)",
		"2023-01-01 00:01:00 | INFO | client disconnected 'Alice'(id:2)",
	)

	ct1, err := Run(dir, RunOptions{})
	require.NoError(t, err)
	ct2, err := Run(dir, RunOptions{})
	require.NoError(t, err)

	c1, _ := ct1.lookup(2)
	c2, _ := ct2.lookup(2)
	assert.Equal(t, c1.TotalConnectedSeconds, c2.TotalConnectedSeconds)
}
