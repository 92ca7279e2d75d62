package aggregator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateLogFilesSortsByCreationTime(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"ts3server_2023-01-02__00_00_00_1.log",
		"ts3server_2023-01-01__00_00_00_1.log",
		"ts3server_2023-01-01__12_00_00_1.log",
		"not_a_log_1.log.bak",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	files, err := EnumerateLogFiles(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "ts3server_2023-01-01__00_00_00_1.log", filepath.Base(files[0].Path))
	assert.Equal(t, "ts3server_2023-01-01__12_00_00_1.log", filepath.Base(files[1].Path))
	assert.Equal(t, "ts3server_2023-01-02__00_00_00_1.log", filepath.Base(files[2].Path))
}

func TestEnumerateLogFilesWarnsOnUnparseable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage_1.log"), []byte("x"), 0o644))

	var warned bool
	_, err := EnumerateLogFiles(dir, func(string) { warned = true })
	require.NoError(t, err)
	assert.True(t, warned)
}
