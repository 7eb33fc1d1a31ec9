// Package frame implements the length-prefixed wire framing.
//
// One frame is a 4-byte big-endian payload length followed by exactly
// that many payload bytes. One frame carries one protocol envelope.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrZeroPayload     = errors.New("frame: zero-length payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

// DefaultLimits allows the 5 MB image payload cap elsewhere in the
// system plus encoding overhead.
func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 6 * 1024 * 1024}
}

// Encode returns the framed representation of payload.
func Encode(payload []byte, limits Limits) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrZeroPayload
	}
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderLen], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// ReadPayload blocks until one complete frame has been read from r and
// returns its payload. A declared length of zero or above the limit is
// an error; the connection owning r is expected to be torn down.
func ReadPayload(r io.Reader, limits Limits) ([]byte, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, ErrZeroPayload
	}
	if n > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WritePayload frames payload and writes it to w in one call.
func WritePayload(w io.Writer, payload []byte, limits Limits) error {
	buf, err := Encode(payload, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
