package supervisor

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/chrisn731/ts3supervisor/pkg/framing"
)

// session is a single accepted control-socket connection with its own
// read-state machine, per spec.md §3 and §4.2. The connection is a raw
// file descriptor rather than a net.Conn: the event loop polls it directly
// alongside the listener and module pipes, so there is no goroutine-per-
// connection model to reconcile with the spec's single poll loop.
type session struct {
	id  string // correlation id only; never on the wire
	fd  int
	log *zap.Logger

	expectedLen uint32
	bytesRead   uint32
	buf         [framing.MaxPayloadLen]byte
}

func newSession(fd int, log *zap.Logger) *session {
	id := uuid.New().String()
	return &session{
		id:  id,
		fd:  fd,
		log: log.Named("session").With(zap.String("session_id", id)),
	}
}

// reset returns the session to its "awaiting header" state, per step 3 of
// spec.md §4.2's session state machine.
func (s *session) reset() {
	s.expectedLen = 0
	s.bytesRead = 0
}

// readHeader attempts to read the 4-byte length prefix. ok is false if the
// session should be closed (EOF, error, sentinel, or out-of-range length).
func (s *session) readHeader() (ok bool) {
	var hdr [4]byte
	n, err := unix.Read(s.fd, hdr[:])
	if n <= 0 || err != nil {
		return false
	}
	if n < 4 {
		// A partial header on a stream socket is vanishingly rare for a
		// 4-byte read and is treated the same as a malformed frame.
		return false
	}
	length, valid := framing.DecodeHeader(hdr)
	if !valid {
		return false
	}
	s.expectedLen = length
	s.bytesRead = 0
	return true
}

// readPayload reads up to the remaining expected bytes into the buffer
// tail. ok is false if the session should be closed.
func (s *session) readPayload() (ok bool) {
	n, err := unix.Read(s.fd, s.buf[s.bytesRead:s.expectedLen])
	if n <= 0 || err != nil {
		return false
	}
	s.bytesRead += uint32(n)
	return true
}

// complete reports whether the full payload for the current command has
// arrived.
func (s *session) complete() bool {
	return s.expectedLen > 0 && s.bytesRead == s.expectedLen
}

// headerPending reports whether the session is waiting for a new 4-byte
// length header (as opposed to mid-payload).
func (s *session) headerPending() bool {
	return s.expectedLen == 0
}

func (s *session) payload() string {
	return string(s.buf[:s.bytesRead])
}

func (s *session) reply(resp string) {
	_, _ = unix.Write(s.fd, []byte(resp))
}

func (s *session) close() {
	_ = unix.Close(s.fd)
}
