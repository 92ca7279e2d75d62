// Package framing implements the supervisor's wire protocol: a 4-byte
// big-endian length prefix followed by exactly that many bytes of ASCII
// payload, with a reserved sentinel length meaning "closing, no reply
// expected".
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxCmdLen bounds the total frame (4-byte header + payload), matching the
// original manager's MAX_CMD_LEN.
const MaxCmdLen = 4096

// MaxPayloadLen is the largest payload a single command may carry.
const MaxPayloadLen = MaxCmdLen - 4

// CloseSentinel is the length value a client sends to close its session
// without expecting a reply: the big-endian encoding of -1 reinterpreted as
// uint32, i.e. 0xFFFFFFFF.
const CloseSentinel uint32 = 0xFFFFFFFF

var ErrFrameTooLarge = errors.New("framing: payload exceeds MaxPayloadLen")

// EncodeHeader returns the 4-byte big-endian length prefix for a payload of
// the given size.
func EncodeHeader(payloadLen int) ([4]byte, error) {
	var hdr [4]byte
	if payloadLen < 0 || payloadLen > MaxPayloadLen {
		return hdr, fmt.Errorf("%w: %d", ErrFrameTooLarge, payloadLen)
	}
	binary.BigEndian.PutUint32(hdr[:], uint32(payloadLen))
	return hdr, nil
}

// DecodeHeader interprets a 4-byte big-endian length prefix. ok is false
// when the header is the close sentinel or otherwise out of range.
func DecodeHeader(hdr [4]byte) (length uint32, ok bool) {
	length = binary.BigEndian.Uint32(hdr[:])
	if length == CloseSentinel || length > MaxPayloadLen {
		return 0, false
	}
	return length, true
}
