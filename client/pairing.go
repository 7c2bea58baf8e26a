package client

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
)

// pairingServiceName is the fixed service identifier sent in the
// pairing_request.
const pairingServiceName = "atvremote"

// pairingCodeLength is the number of hex symbols the TV displays.
const pairingCodeLength = 6

// pairingSession runs the one-shot pairing handshake over a dedicated
// connection: request → role ack → encoding options → configuration →
// secret exchange. It needs both certificates to compute the code digest.
type pairingSession struct {
	conn       *framedConn
	clientName string
	clientCert *x509.Certificate
	peerCert   *x509.Certificate
	logger     zerolog.Logger

	mu       sync.Mutex
	started  *oneshot // resolved by configuration_ack
	finished *oneshot // resolved by secret_ack
}

func newPairingSession(conn *framedConn, clientName string, clientCert, peerCert *x509.Certificate, logger zerolog.Logger) *pairingSession {
	return &pairingSession{
		conn:       conn,
		clientName: clientName,
		clientCert: clientCert,
		peerCert:   peerCert,
		logger:     logger.With().Str("component", "pairing").Logger(),
	}
}

// run processes inbound frames until the connection dies.
func (s *pairingSession) run() {
	s.conn.readLoop(s.handleFrame)
	// A connection loss fails whichever wait is still pending.
	s.failWaiters(s.conn.lostReason())
}

// startPairing sends the pairing request and suspends until the device
// acknowledges the configuration or the connection is lost.
func (s *pairingSession) startPairing(ctx context.Context) error {
	wait := newOneshot()
	s.mu.Lock()
	s.started = wait
	s.mu.Unlock()

	msg := protocol.NewPairingMessage(&protocol.PairingRequest{
		ServiceName: pairingServiceName,
		ClientName:  s.clientName,
	})
	if err := s.send(msg); err != nil {
		return err
	}
	return s.await(ctx, wait)
}

// finishPairing validates the code shown on the TV, checks it against the
// certificate digest, and exchanges the secret. A digest mismatch is fatal
// and nothing is sent over the wire.
func (s *pairingSession) finishPairing(ctx context.Context, pairingCode string) error {
	if len(pairingCode) != pairingCodeLength {
		return fmt.Errorf("%w: pairing code must be %d characters", ErrInvalidAuth, pairingCodeLength)
	}
	codeBytes, err := hex.DecodeString(pairingCode)
	if err != nil {
		return fmt.Errorf("%w: pairing code must be hex", ErrInvalidAuth)
	}

	digest, err := pairingDigest(s.clientCert, s.peerCert, pairingCode)
	if err != nil {
		return err
	}
	if digest[0] != codeBytes[0] {
		s.logger.Debug().Msg("pairing code does not match certificate digest")
		return fmt.Errorf("%w: unexpected hash for pairing code", ErrInvalidAuth)
	}

	wait := newOneshot()
	s.mu.Lock()
	s.finished = wait
	s.mu.Unlock()

	if err := s.send(protocol.NewPairingMessage(&protocol.PairingSecret{Secret: digest})); err != nil {
		return err
	}
	return s.await(ctx, wait)
}

func (s *pairingSession) await(ctx context.Context, wait *oneshot) error {
	select {
	case <-wait.done():
		return wait.err()
	case <-s.conn.lost():
		return s.conn.lostReason()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pairingSession) handleFrame(frame []byte) {
	msg, err := protocol.UnmarshalPairingMessage(frame)
	if err != nil {
		s.logger.Debug().Err(err).Msg("couldn't parse pairing message")
		s.fail(fmt.Errorf("%w: undecodable pairing message", ErrInvalidAuth))
		return
	}
	s.logger.Debug().Stringer("msg", msg).Msg("received")

	if msg.Status != protocol.PairingStatusOK {
		s.fail(fmt.Errorf("%w: pairing status %s", ErrInvalidAuth, msg.Status))
		return
	}

	switch msg.Body.(type) {
	case *protocol.PairingRequestAck:
		reply := protocol.NewPairingMessage(&protocol.PairingOptions{
			InputEncodings: []protocol.PairingEncoding{{
				Type:         protocol.EncodingTypeHexadecimal,
				SymbolLength: pairingCodeLength,
			}},
			PreferredRole: protocol.RoleTypeInput,
		})
		if err := s.send(reply); err != nil {
			s.logger.Debug().Err(err).Msg("couldn't send options")
		}
	case *protocol.PairingOptions:
		reply := protocol.NewPairingMessage(&protocol.PairingConfiguration{
			Encoding: protocol.PairingEncoding{
				Type:         protocol.EncodingTypeHexadecimal,
				SymbolLength: pairingCodeLength,
			},
			ClientRole: protocol.RoleTypeInput,
		})
		if err := s.send(reply); err != nil {
			s.logger.Debug().Err(err).Msg("couldn't send configuration")
		}
	case *protocol.PairingConfigurationAck:
		s.mu.Lock()
		wait := s.started
		s.mu.Unlock()
		if wait != nil {
			wait.resolve(nil)
		}
	case *protocol.PairingSecretAck:
		s.mu.Lock()
		wait := s.finished
		s.mu.Unlock()
		if wait != nil {
			wait.resolve(nil)
		}
	default:
		s.logger.Debug().Stringer("msg", msg).Msg("unhandled pairing message")
		s.fail(fmt.Errorf("%w: unexpected pairing message", ErrInvalidAuth))
	}
}

func (s *pairingSession) send(msg *protocol.PairingMessage) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	s.logger.Debug().Stringer("msg", msg).Msg("sending")
	return s.conn.writeFrame(data)
}

// fail resolves pending waits with a protocol failure and drops the
// connection.
func (s *pairingSession) fail(err error) {
	s.failWaiters(err)
	s.conn.close(err)
}

func (s *pairingSession) failWaiters(err error) {
	s.mu.Lock()
	started, finished := s.started, s.finished
	s.mu.Unlock()
	if started != nil {
		started.resolve(err)
	}
	if finished != nil {
		finished.resolve(err)
	}
}

// pairingDigest computes SHA-256 over the hex nibbles of both RSA public
// keys and the tail of the pairing code. The code's first byte must equal
// the first digest byte for pairing to succeed.
func pairingDigest(clientCert, peerCert *x509.Certificate, pairingCode string) ([]byte, error) {
	clientKey, ok := clientCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: client certificate key is not RSA", ErrInvalidAuth)
	}
	peerKey, ok := peerCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: device certificate key is not RSA", ErrInvalidAuth)
	}

	h := sha256.New()
	h.Write(nibblesToBytes(clientKey.N.Text(16)))
	h.Write(nibblesToBytes("0" + strconv.FormatInt(int64(clientKey.E), 16)))
	h.Write(nibblesToBytes(peerKey.N.Text(16)))
	h.Write(nibblesToBytes("0" + strconv.FormatInt(int64(peerKey.E), 16)))

	tail, err := hex.DecodeString(pairingCode[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: pairing code must be hex", ErrInvalidAuth)
	}
	h.Write(tail)
	return h.Sum(nil), nil
}

// nibblesToBytes hex-decodes a nibble string, left-padding to a whole byte.
func nibblesToBytes(s string) []byte {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
