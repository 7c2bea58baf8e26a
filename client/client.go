package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/atvremote/go-atvremote/certs"
	"github.com/atvremote/go-atvremote/config"
	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
)

// Reconnect backoff bounds. The delay doubles on every failed attempt and
// resets once a connection is established.
const (
	reconnectBackoffMin = 100 * time.Millisecond
	reconnectBackoffMax = 30 * time.Second
)

// dnQualifierOID carries the friendly device name in certificates issued
// by newer Android TV builds.
var dnQualifierOID = asn1.ObjectIdentifier{2, 5, 4, 46}

// dialFunc opens the raw TCP connection; swapped in tests.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Remote manages the connection to one Android TV device. It survives
// connection losses via KeepReconnecting and exposes the current session
// state through snapshot accessors and callbacks.
type Remote struct {
	cfg       *config.Config
	logger    zerolog.Logger
	tlsConfig *tls.Config
	dial      dialFunc

	// idleTimeout overrides the session idle eviction; zero means default.
	idleTimeout time.Duration

	mu      sync.Mutex
	session *remoteSession
	pairing *pairingSession
	closed  bool

	onAvailable   callbackList[bool]
	onIsOn        callbackList[bool]
	onCurrentApp  callbackList[string]
	onVolume      callbackList[VolumeInfo]
	onInvalidAuth callbackList[error]

	reconnectWG     sync.WaitGroup
	reconnectCancel context.CancelFunc
}

// New builds a Remote from a validated config. The client certificate must
// already exist; see certs.GenerateIfMissing.
func New(cfg *config.Config, logger zerolog.Logger) (*Remote, error) {
	keyPair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	return &Remote{
		cfg:    cfg,
		logger: logger.With().Str("component", "client").Str("host", cfg.Host).Logger(),
		// The device presents a self-signed certificate; trust comes from
		// it pinning our public key during pairing, not from a chain.
		tlsConfig: &tls.Config{
			Certificates:       []tls.Certificate{keyPair},
			InsecureSkipVerify: true,
		},
		dial: (&net.Dialer{}).DialContext,
	}, nil
}

// desiredFeatures is what this client asks to activate on each connection.
func (r *Remote) desiredFeatures() protocol.FeatureSet {
	desired := protocol.DefaultFeatures
	if !r.cfg.EnableIME {
		desired = desired.Without(protocol.FeatureIME)
	}
	return desired
}

// connectTLS dials addr and completes the TLS handshake. A TCP failure
// means the device is unreachable; a TLS failure means it no longer
// accepts our certificate.
func (r *Remote) connectTLS(ctx context.Context, addr string) (*tls.Conn, error) {
	rawConn, err := r.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	tlsConn := tls.Client(rawConn, r.tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuth, err)
	}
	return tlsConn, nil
}

// Connect establishes the control session and blocks until the device
// reports remote_start, the connection is lost, or ctx expires.
func (r *Remote) Connect(ctx context.Context) error {
	// A previous Disconnect does not retire the client for good; connecting
	// again reopens it.
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()

	tlsConn, err := r.connectTLS(ctx, r.cfg.RemoteAddr())
	if err != nil {
		return err
	}

	conn := newFramedConn(tlsConn, r.logger)
	session := newRemoteSession(conn, r.desiredFeatures(), remoteCallbacks{
		onIsOn:       r.onIsOn.dispatch,
		onCurrentApp: r.onCurrentApp.dispatch,
		onVolume:     r.onVolume.dispatch,
	}, r.idleTimeout, r.logger)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.close(fmt.Errorf("%w: client closed", ErrConnectionClosed))
		return fmt.Errorf("%w: client closed", ErrConnectionClosed)
	}
	r.session = session
	r.mu.Unlock()

	go session.run()

	select {
	case <-session.ready().done():
		if err := session.ready().err(); err != nil {
			return err
		}
	case <-ctx.Done():
		conn.close(fmt.Errorf("%w: %v", ErrConnectionClosed, ctx.Err()))
		return ctx.Err()
	}

	r.logger.Info().Msg("connected")
	r.onAvailable.dispatch(true)
	return nil
}

// Disconnect drops the current session and stops any reconnect loop.
// Idempotent.
func (r *Remote) Disconnect() {
	r.mu.Lock()
	r.closed = true
	session := r.session
	r.session = nil
	cancel := r.reconnectCancel
	r.reconnectCancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session != nil {
		session.conn.close(fmt.Errorf("%w: disconnect requested", ErrConnectionClosed))
	}
	r.reconnectWG.Wait()
}

// KeepReconnecting runs Connect in a loop with exponential backoff until
// ctx is cancelled, Disconnect is called, or the device stops accepting our
// certificate. Invalid-auth halts the loop and fires the invalid-auth
// callbacks; the device must be re-paired.
func (r *Remote) KeepReconnecting(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.closed = false
	r.reconnectCancel = cancel
	r.mu.Unlock()

	r.reconnectWG.Add(1)
	go func() {
		defer r.reconnectWG.Done()
		defer cancel()
		r.reconnectLoop(ctx)
	}()
}

func (r *Remote) reconnectLoop(ctx context.Context) {
	for {
		// An already-connected session is left alone; the loop only dials
		// once it is gone.
		session := r.currentSession()
		if session == nil || session.conn.isLost() {
			if !r.connectWithBackoff(ctx) {
				return
			}
			session = r.currentSession()
			if session == nil {
				return
			}
		}

		select {
		case <-session.conn.lost():
		case <-ctx.Done():
			return
		}
		r.logger.Info().Err(session.conn.lostReason()).Msg("connection lost")
		r.onAvailable.dispatch(false)
	}
}

// connectWithBackoff retries Connect until it succeeds. A false return means
// the loop must stop: cancellation, or a certificate rejection that only
// re-pairing can cure.
func (r *Remote) connectWithBackoff(ctx context.Context) bool {
	backoff := reconnectBackoffMin
	for {
		err := r.Connect(ctx)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrInvalidAuth) {
			r.logger.Error().Err(err).Msg("device rejected our certificate, pairing required")
			r.onInvalidAuth.dispatch(err)
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		r.logger.Debug().Err(err).Dur("backoff", backoff).Msg("connect failed, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff *= 2
		if backoff > reconnectBackoffMax {
			backoff = reconnectBackoffMax
		}
	}
}

func (r *Remote) currentSession() *remoteSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// liveSession returns the session if it is connected and started.
func (r *Remote) liveSession() (*remoteSession, error) {
	session := r.currentSession()
	if session == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnectionClosed)
	}
	select {
	case <-session.conn.lost():
		return nil, session.conn.lostReason()
	default:
	}
	return session, nil
}

// StartPairing opens the pairing channel and initiates the handshake; on
// return the TV is displaying a code for FinishPairing.
func (r *Remote) StartPairing(ctx context.Context) error {
	clientCert, err := certs.LoadCertificate(r.cfg.CertFile)
	if err != nil {
		return err
	}

	tlsConn, err := r.connectTLS(ctx, r.cfg.PairAddr())
	if err != nil {
		return err
	}
	peerCerts := tlsConn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		tlsConn.Close()
		return fmt.Errorf("%w: device presented no certificate", ErrInvalidAuth)
	}

	session := newPairingSession(newFramedConn(tlsConn, r.logger), r.cfg.ClientName, clientCert, peerCerts[0], r.logger)

	r.mu.Lock()
	r.pairing = session
	r.mu.Unlock()

	go session.run()

	if err := session.startPairing(ctx); err != nil {
		r.abortPairing()
		return err
	}
	return nil
}

// FinishPairing completes the handshake with the code shown on the TV and
// closes the pairing channel.
func (r *Remote) FinishPairing(ctx context.Context, pairingCode string) error {
	r.mu.Lock()
	session := r.pairing
	r.mu.Unlock()
	if session == nil {
		return fmt.Errorf("%w: pairing was not started", ErrConnectionClosed)
	}

	err := session.finishPairing(ctx, strings.TrimSpace(pairingCode))
	r.abortPairing()
	if err != nil {
		return err
	}
	r.logger.Info().Msg("paired")
	return nil
}

func (r *Remote) abortPairing() {
	r.mu.Lock()
	session := r.pairing
	r.pairing = nil
	r.mu.Unlock()
	if session != nil {
		session.conn.close(fmt.Errorf("%w: pairing channel closed", ErrConnectionClosed))
	}
}

// SendKeyCommand injects a key press on the current session.
func (r *Remote) SendKeyCommand(keyCode, direction string) error {
	session, err := r.liveSession()
	if err != nil {
		return err
	}
	return session.SendKeyCommand(keyCode, direction)
}

// SendText types a string through the on-device input method.
func (r *Remote) SendText(text string) error {
	session, err := r.liveSession()
	if err != nil {
		return err
	}
	return session.SendText(text)
}

// SendLaunchApp opens a deep link, or the store page when given a bare
// application id.
func (r *Remote) SendLaunchApp(app string) error {
	session, err := r.liveSession()
	if err != nil {
		return err
	}
	if app == "" {
		return fmt.Errorf("%w: app link cannot be empty", ErrInvalidArgument)
	}
	if u, err := url.Parse(app); err != nil || u.Scheme == "" {
		app = "market://launch?id=" + app
	}
	return session.SendLaunchApp(app)
}

// StartVoice begins a voice input session. timeout bounds the wait for the
// device grant; zero means the protocol default.
func (r *Remote) StartVoice(ctx context.Context, timeout time.Duration) (*VoiceSession, error) {
	session, err := r.liveSession()
	if err != nil {
		return nil, err
	}
	return session.startVoice(ctx, timeout)
}

// IsOn reports the device power state from the last remote_start.
func (r *Remote) IsOn() bool {
	session := r.currentSession()
	return session != nil && session.IsOn()
}

// CurrentApp is the package in the foreground, empty when unknown.
func (r *Remote) CurrentApp() string {
	session := r.currentSession()
	if session == nil {
		return ""
	}
	return session.CurrentApp()
}

// DeviceInfo is the identity from remote_configure, nil before connect.
func (r *Remote) DeviceInfo() *DeviceInfo {
	session := r.currentSession()
	if session == nil {
		return nil
	}
	return session.DeviceInfo()
}

// VolumeInfo is the last volume snapshot, nil before the device pushed one.
func (r *Remote) VolumeInfo() *VolumeInfo {
	session := r.currentSession()
	if session == nil {
		return nil
	}
	return session.VolumeInfo()
}

// ActiveFeatures is the negotiated mask of the current connection.
func (r *Remote) ActiveFeatures() protocol.FeatureSet {
	session := r.currentSession()
	if session == nil {
		return 0
	}
	return session.ActiveFeatures()
}

// GetNameAndMAC connects to the pairing port and extracts the device name
// and MAC address from the certificate it presents. Works before pairing;
// no control session is needed. Newer devices carry the name in the
// dnQualifier attribute as "model/model/name"; older ones encode it in the
// common name. The MAC is the last segment of the common name.
func (r *Remote) GetNameAndMAC(ctx context.Context) (name, mac string, err error) {
	tlsConn, err := r.connectTLS(ctx, r.cfg.PairAddr())
	if err != nil {
		return "", "", err
	}
	defer tlsConn.Close()

	peerCerts := tlsConn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return "", "", fmt.Errorf("%w: device presented no certificate", ErrInvalidAuth)
	}
	name, mac = deviceIdentity(peerCerts[0])
	return name, mac, nil
}

func deviceIdentity(cert *x509.Certificate) (name, mac string) {
	subject := cert.Subject

	for _, attr := range subject.Names {
		if attr.Type.Equal(dnQualifierOID) {
			if v, ok := attr.Value.(string); ok && v != "" {
				segments := strings.Split(v, "/")
				name = segments[len(segments)-1]
			}
		}
	}

	cnParts := strings.Split(subject.CommonName, "/")
	mac = cnParts[len(cnParts)-1]
	if name == "" {
		if len(cnParts) >= 2 {
			name = cnParts[len(cnParts)-2]
		} else {
			name = subject.CommonName
		}
	}
	return name, mac
}

// AddAvailabilityCallback fires on connect and loss; the bool is the new
// availability. Returns an unregister func.
func (r *Remote) AddAvailabilityCallback(fn func(bool)) func() {
	return r.onAvailable.add(fn)
}

// AddIsOnCallback fires on every remote_start.
func (r *Remote) AddIsOnCallback(fn func(bool)) func() {
	return r.onIsOn.add(fn)
}

// AddCurrentAppCallback fires when the foreground app changes.
func (r *Remote) AddCurrentAppCallback(fn func(string)) func() {
	return r.onCurrentApp.add(fn)
}

// AddVolumeCallback fires on every volume push from the device.
func (r *Remote) AddVolumeCallback(fn func(VolumeInfo)) func() {
	return r.onVolume.add(fn)
}

// AddInvalidAuthCallback fires when a reconnect loop halts because the
// device rejected our certificate.
func (r *Remote) AddInvalidAuthCallback(fn func(error)) func() {
	return r.onInvalidAuth.add(fn)
}
