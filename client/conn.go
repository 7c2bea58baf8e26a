package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
)

const readBufferSize = 4096

// framedConn couples a connection with a frame codec and a one-shot
// connection-lost signal. Writes are serialized; reads happen on a single
// goroutine that hands complete frames to the session in arrival order.
type framedConn struct {
	conn   net.Conn
	codec  *protocol.FrameCodec
	logger zerolog.Logger

	writeMu sync.Mutex

	lostOnce sync.Once
	lostCh   chan struct{}
	lostErr  error
}

func newFramedConn(conn net.Conn, logger zerolog.Logger) *framedConn {
	return &framedConn{
		conn:   conn,
		codec:  protocol.NewFrameCodec(),
		logger: logger,
		lostCh: make(chan struct{}),
	}
}

// readLoop reads until the connection dies, delivering each complete frame
// to handle. The reply a handler writes goes out before the next frame is
// delivered, which is what keeps the reply ordering guarantee.
func (c *framedConn) readLoop(handle func(frame []byte)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			frames, codecErr := c.codec.Feed(buf[:n])
			for _, frame := range frames {
				handle(frame)
			}
			if codecErr != nil {
				c.logger.Debug().Err(codecErr).Msg("frame stream desynchronized")
				c.close(fmt.Errorf("%w: %v", ErrConnectionClosed, codecErr))
				return
			}
		}
		if err != nil {
			c.markLost(fmt.Errorf("%w: %v", classifyReadError(err), err))
			return
		}
	}
}

// writeFrame encodes and writes one frame as a single buffered write.
func (c *framedConn) writeFrame(payload []byte) error {
	select {
	case <-c.lostCh:
		return fmt.Errorf("%w: cannot write", ErrConnectionClosed)
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(protocol.EncodeFrame(payload)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// close tears down the transport and records reason as the lost cause.
// Safe to call multiple times; the first reason wins.
func (c *framedConn) close(reason error) {
	c.markLost(reason)
	_ = c.conn.Close()
}

func (c *framedConn) markLost(reason error) {
	c.lostOnce.Do(func() {
		c.lostErr = reason
		close(c.lostCh)
	})
}

// lost is closed once the connection is gone for any reason.
func (c *framedConn) lost() <-chan struct{} {
	return c.lostCh
}

// isLost reports whether the connection is already gone.
func (c *framedConn) isLost() bool {
	select {
	case <-c.lostCh:
		return true
	default:
		return false
	}
}

// lostReason is only valid after lost() is closed.
func (c *framedConn) lostReason() error {
	return c.lostErr
}

// classifyReadError maps a read failure to the error taxonomy. Under TLS 1.3
// the device verifies the client certificate after the client's handshake
// has already returned, so a certificate rejection surfaces as an alert on
// the established connection, not as a handshake error. That rejection needs
// re-pairing, never a retry.
func classifyReadError(err error) error {
	if isTLSFailure(err) {
		return ErrInvalidAuth
	}
	return ErrConnectionClosed
}

// isTLSFailure recognizes TLS-layer errors: a fatal alert from the peer
// (crypto/tls reports those as a net.OpError with Op "remote error") or a
// malformed record.
func isTLSFailure(err error) bool {
	var recordErr *tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
