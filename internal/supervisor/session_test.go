package supervisor

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (clientFd int, serverFd int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestSessionReadsHeaderThenPayload(t *testing.T) {
	client, server := socketPair(t)
	s := newSession(server, zap.NewNop())

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 4)
	_, err := unix.Write(client, hdr[:])
	require.NoError(t, err)

	require.True(t, s.headerPending())
	require.True(t, s.readHeader())
	assert.False(t, s.headerPending())
	assert.False(t, s.complete())

	_, err = unix.Write(client, []byte("stop"))
	require.NoError(t, err)
	require.True(t, s.readPayload())
	assert.True(t, s.complete())
	assert.Equal(t, "stop", s.payload())
}

func TestSessionRejectsCloseSentinel(t *testing.T) {
	client, server := socketPair(t)
	s := newSession(server, zap.NewNop())

	var hdr [4]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = 0xFF, 0xFF, 0xFF, 0xFF
	_, err := unix.Write(client, hdr[:])
	require.NoError(t, err)

	assert.False(t, s.readHeader())
}

func TestSessionRejectsOversizeLength(t *testing.T) {
	client, server := socketPair(t)
	s := newSession(server, zap.NewNop())

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1<<20)
	_, err := unix.Write(client, hdr[:])
	require.NoError(t, err)

	assert.False(t, s.readHeader())
}

func TestSessionResetReturnsToHeaderPending(t *testing.T) {
	_, server := socketPair(t)
	s := newSession(server, zap.NewNop())
	s.expectedLen = 10
	s.bytesRead = 10
	s.reset()
	assert.True(t, s.headerPending())
	assert.False(t, s.complete())
}

func TestSessionPartialPayloadAccumulates(t *testing.T) {
	client, server := socketPair(t)
	s := newSession(server, zap.NewNop())
	s.expectedLen = 6
	s.bytesRead = 0

	_, err := unix.Write(client, []byte("ab"))
	require.NoError(t, err)
	require.True(t, s.readPayload())
	assert.False(t, s.complete())
	assert.Equal(t, uint32(2), s.bytesRead)

	_, err = unix.Write(client, []byte("cdef"))
	require.NoError(t, err)
	require.True(t, s.readPayload())
	assert.True(t, s.complete())
	assert.Equal(t, "abcdef", s.payload())
}
