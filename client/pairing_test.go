package client

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/atvremote/go-atvremote/certs"
	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePairingDevice drives the device side of the pairing handshake.
type fakePairingDevice struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.FrameCodec
	queue [][]byte
}

func (d *fakePairingDevice) send(msg *protocol.PairingMessage) {
	d.t.Helper()
	data, err := msg.Marshal()
	require.NoError(d.t, err)
	_ = d.conn.SetWriteDeadline(time.Now().Add(testRecvTimeout))
	_, err = d.conn.Write(protocol.EncodeFrame(data))
	require.NoError(d.t, err)
}

func (d *fakePairingDevice) recv() *protocol.PairingMessage {
	d.t.Helper()
	buf := make([]byte, 4096)
	for len(d.queue) == 0 {
		_ = d.conn.SetReadDeadline(time.Now().Add(testRecvTimeout))
		n, err := d.conn.Read(buf)
		require.NoError(d.t, err, "waiting for a pairing frame")
		frames, err := d.codec.Feed(buf[:n])
		require.NoError(d.t, err)
		d.queue = append(d.queue, frames...)
	}
	frame := d.queue[0]
	d.queue = d.queue[1:]
	msg, err := protocol.UnmarshalPairingMessage(frame)
	require.NoError(d.t, err)
	return msg
}

func testCertPair(t *testing.T) (clientCert, deviceCert *x509.Certificate) {
	t.Helper()
	_, clientCert, err := certs.GenerateSelfSigned("test-client", 1)
	require.NoError(t, err)
	_, deviceCert, err = certs.GenerateSelfSigned("test-device", 1)
	require.NoError(t, err)
	return clientCert, deviceCert
}

func newTestPairingSession(t *testing.T, clientCert, deviceCert *x509.Certificate) (*pairingSession, *fakePairingDevice) {
	t.Helper()
	clientEnd, deviceEnd := net.Pipe()
	session := newPairingSession(newFramedConn(clientEnd, zerolog.Nop()), "test-client", clientCert, deviceCert, zerolog.Nop())
	go session.run()
	t.Cleanup(func() {
		session.conn.close(fmt.Errorf("%w: test done", ErrConnectionClosed))
		_ = deviceEnd.Close()
	})
	return session, &fakePairingDevice{t: t, conn: deviceEnd, codec: protocol.NewFrameCodec()}
}

// matchingPairingCode derives a code the digest check accepts: the tail is
// arbitrary, the leading byte must equal the first digest byte.
func matchingPairingCode(t *testing.T, clientCert, deviceCert *x509.Certificate, tail string) string {
	t.Helper()
	digest, err := pairingDigest(clientCert, deviceCert, "00"+tail)
	require.NoError(t, err)
	return hex.EncodeToString(digest[:1]) + tail
}

func TestPairingHandshake(t *testing.T) {
	clientCert, deviceCert := testCertPair(t)
	session, device := newTestPairingSession(t, clientCert, deviceCert)

	startDone := make(chan error, 1)
	go func() { startDone <- session.startPairing(context.Background()) }()

	msg := device.recv()
	req, ok := msg.Body.(*protocol.PairingRequest)
	require.True(t, ok, "expected a pairing request, got %s", msg)
	assert.Equal(t, "atvremote", req.ServiceName)
	assert.Equal(t, "test-client", req.ClientName)

	device.send(protocol.NewPairingMessage(&protocol.PairingRequestAck{}))
	msg = device.recv()
	opts, ok := msg.Body.(*protocol.PairingOptions)
	require.True(t, ok, "expected options, got %s", msg)
	require.Len(t, opts.InputEncodings, 1)
	assert.Equal(t, protocol.EncodingTypeHexadecimal, opts.InputEncodings[0].Type)
	assert.Equal(t, uint32(6), opts.InputEncodings[0].SymbolLength)

	device.send(protocol.NewPairingMessage(&protocol.PairingOptions{
		OutputEncodings: []protocol.PairingEncoding{{
			Type:         protocol.EncodingTypeHexadecimal,
			SymbolLength: 6,
		}},
	}))
	msg = device.recv()
	cfg, ok := msg.Body.(*protocol.PairingConfiguration)
	require.True(t, ok, "expected a configuration, got %s", msg)
	assert.Equal(t, protocol.EncodingTypeHexadecimal, cfg.Encoding.Type)
	assert.Equal(t, protocol.RoleTypeInput, cfg.ClientRole)

	device.send(protocol.NewPairingMessage(&protocol.PairingConfigurationAck{}))
	require.NoError(t, <-startDone)

	code := matchingPairingCode(t, clientCert, deviceCert, "beef")
	finishDone := make(chan error, 1)
	go func() { finishDone <- session.finishPairing(context.Background(), code) }()

	msg = device.recv()
	secret, ok := msg.Body.(*protocol.PairingSecret)
	require.True(t, ok, "expected the secret, got %s", msg)
	wantDigest, err := pairingDigest(clientCert, deviceCert, code)
	require.NoError(t, err)
	assert.Equal(t, wantDigest, secret.Secret)

	device.send(protocol.NewPairingMessage(&protocol.PairingSecretAck{}))
	require.NoError(t, <-finishDone)
}

func TestPairingCodeValidation(t *testing.T) {
	clientCert, deviceCert := testCertPair(t)
	session, _ := newTestPairingSession(t, clientCert, deviceCert)

	assert.ErrorIs(t, session.finishPairing(context.Background(), "abc"), ErrInvalidAuth)
	assert.ErrorIs(t, session.finishPairing(context.Background(), "zzzzzz"), ErrInvalidAuth)
}

func TestPairingWrongCodeSendsNothing(t *testing.T) {
	clientCert, deviceCert := testCertPair(t)
	session, device := newTestPairingSession(t, clientCert, deviceCert)

	code := matchingPairingCode(t, clientCert, deviceCert, "beef")
	// Flip the leading byte so the digest check fails.
	bad := "00" + code[2:]
	if code[:2] == "00" {
		bad = "01" + code[2:]
	}

	err := session.finishPairing(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidAuth)

	// No secret must ever hit the wire for a bad code.
	_ = device.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	_, readErr := device.conn.Read(buf)
	var netErr net.Error
	require.ErrorAs(t, readErr, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestPairingErrorStatusFailsHandshake(t *testing.T) {
	clientCert, deviceCert := testCertPair(t)
	session, device := newTestPairingSession(t, clientCert, deviceCert)

	startDone := make(chan error, 1)
	go func() { startDone <- session.startPairing(context.Background()) }()

	device.recv()
	device.send(&protocol.PairingMessage{
		ProtocolVersion: 2,
		Status:          protocol.PairingStatusBadSecret,
		Body:            &protocol.PairingRequestAck{},
	})

	select {
	case err := <-startDone:
		assert.ErrorIs(t, err, ErrInvalidAuth)
	case <-time.After(testRecvTimeout):
		t.Fatal("startPairing never failed")
	}
}

func TestPairingDigestFirstByteMatchesCode(t *testing.T) {
	clientCert, deviceCert := testCertPair(t)

	code := matchingPairingCode(t, clientCert, deviceCert, "1a2b")
	digest, err := pairingDigest(clientCert, deviceCert, code)
	require.NoError(t, err)
	require.Len(t, digest, 32)

	codeBytes, err := hex.DecodeString(code)
	require.NoError(t, err)
	assert.Equal(t, codeBytes[0], digest[0])
}
