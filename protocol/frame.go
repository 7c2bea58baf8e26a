package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize is the largest payload a single frame may carry. Voice
// payloads top out around 20 KiB, so anything near this limit indicates a
// desynchronized stream.
const MaxFrameSize = 1 << 20 // 1 MiB

// maxVarintLen is the longest legal varint header (64-bit value).
const maxVarintLen = 10

// FrameCodec assembles varint-length-prefixed frames from an arbitrarily
// chunked byte stream. TCP/TLS delivers data in whatever pieces it likes: a
// single Feed call may complete zero, one, or many frames, and both the
// varint header and the payload may arrive split across calls.
//
// A codec owns exactly one in-progress partial frame. It is not safe for
// concurrent use; each directional connection gets its own instance.
type FrameCodec struct {
	header  []byte // accumulated varint header bytes, nil once decoded
	need    int    // payload length of the frame in progress, -1 if none
	payload []byte // accumulated payload bytes
}

// NewFrameCodec returns a codec with no partial frame.
func NewFrameCodec() *FrameCodec {
	return &FrameCodec{need: -1}
}

// Feed consumes a chunk of stream bytes and returns the payloads of all
// frames completed by it, in arrival order. Returned slices are freshly
// allocated and safe to retain.
//
// An error means the stream is desynchronized (oversized or malformed length
// prefix) and the connection must be dropped; the codec state is undefined
// afterwards.
func (c *FrameCodec) Feed(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		if c.need < 0 {
			// Still reading the length prefix, one byte at a time so a
			// header split across reads is handled uniformly.
			c.header = append(c.header, data[0])
			data = data[1:]
			if c.header[len(c.header)-1]&0x80 != 0 {
				if len(c.header) >= maxVarintLen {
					return frames, fmt.Errorf("frame length prefix exceeds %d bytes", maxVarintLen)
				}
				continue
			}
			length, n := protowire.ConsumeVarint(c.header)
			if n < 0 {
				return frames, fmt.Errorf("malformed frame length prefix: %w", protowire.ParseError(n))
			}
			if length > MaxFrameSize {
				return frames, fmt.Errorf("frame of %d bytes exceeds limit of %d", length, MaxFrameSize)
			}
			c.header = nil
			c.need = int(length)
			c.payload = make([]byte, 0, c.need)
		}

		take := c.need - len(c.payload)
		if take > len(data) {
			take = len(data)
		}
		c.payload = append(c.payload, data[:take]...)
		data = data[take:]

		if len(c.payload) == c.need {
			frames = append(frames, c.payload)
			c.need = -1
			c.payload = nil
		}
	}
	return frames, nil
}

// EncodeFrame prefixes payload with its varint-encoded length, producing a
// single buffer suitable for one write to the connection.
func EncodeFrame(payload []byte) []byte {
	buf := protowire.AppendVarint(make([]byte, 0, len(payload)+maxVarintLen), uint64(len(payload)))
	return append(buf, payload...)
}
