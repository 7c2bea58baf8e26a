package client

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
)

// defaultIdleTimeout closes the connection when neither side has sent
// anything for this long. The device pings every 5 seconds when idle and
// drops peers after about three unanswered pings; we mirror that.
const defaultIdleTimeout = 16 * time.Second

// clientPackageName and clientAppVersion identify this client in the
// remote_configure reply.
const (
	clientPackageName = "atvremote"
	clientAppVersion  = "1.0.0"
)

// logPingTraffic gates debug logging of the ping/pong pair; it is high
// frequency and low information.
const logPingTraffic = false

// textCommandPrefix redirects SendKeyCommand input to the text path.
const textCommandPrefix = "text:"

const deviceStorageHint = "try clearing the storage of the Android TV Remote Service system app on the device"

// remoteCallbacks is what the remote session reports upward. All callbacks
// are invoked synchronously on the session's read goroutine.
type remoteCallbacks struct {
	onIsOn       func(bool)
	onCurrentApp func(string)
	onVolume     func(VolumeInfo)
}

// remoteSession is the long-lived control session on the remote port. It
// walks Connected → Configured → Started: remote_configure fixes the active
// feature mask, and the first remote_start marks the session ready for
// commands.
type remoteSession struct {
	conn      *framedConn
	logger    zerolog.Logger
	desired   protocol.FeatureSet
	callbacks remoteCallbacks

	started     *oneshot // session ready, resolved by the first remote_start
	idleTimeout time.Duration
	idle        *time.Timer

	mu           sync.RWMutex
	configured   bool
	active       protocol.FeatureSet
	isOn         bool
	currentApp   string
	deviceInfo   *DeviceInfo
	volumeInfo   *VolumeInfo
	imeCounter   int32
	fieldCounter int32
	voiceWaiter  chan int32 // pending start_voice wait, nil when none

	voiceMu sync.Mutex // serializes voice session starts
}

func newRemoteSession(conn *framedConn, desired protocol.FeatureSet, callbacks remoteCallbacks, idleTimeout time.Duration, logger zerolog.Logger) *remoteSession {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	s := &remoteSession{
		conn:        conn,
		logger:      logger.With().Str("component", "remote").Logger(),
		desired:     desired,
		callbacks:   callbacks,
		started:     newOneshot(),
		idleTimeout: idleTimeout,
		// Until the first remote_configure narrows it, the active mask is
		// the desired set; a set_active arriving early echoes that.
		active: desired,
	}
	s.idle = time.AfterFunc(idleTimeout, s.evictIdle)
	return s
}

// run processes inbound frames until the connection dies, then stops the
// idle timer and fails pending waits.
func (s *remoteSession) run() {
	s.conn.readLoop(s.handleFrame)
	s.idle.Stop()
	s.started.resolve(s.conn.lostReason())
	s.mu.Lock()
	waiter := s.voiceWaiter
	s.voiceWaiter = nil
	s.mu.Unlock()
	if waiter != nil {
		close(waiter)
	}
}

// ready is closed when the first remote_start arrives or the connection is
// lost; err() tells which.
func (s *remoteSession) ready() *oneshot {
	return s.started
}

func (s *remoteSession) evictIdle() {
	s.logger.Debug().Msg("closing idle connection")
	s.conn.close(fmt.Errorf("%w: idle connection", ErrConnectionClosed))
}

// resetIdle re-arms the eviction timer. Called for every message in either
// direction.
func (s *remoteSession) resetIdle() {
	s.idle.Reset(s.idleTimeout)
}

func (s *remoteSession) handleFrame(frame []byte) {
	s.resetIdle()
	msg, err := protocol.UnmarshalRemoteMessage(frame)
	if err != nil {
		// Undecodable payloads are dropped; they do not kill the connection.
		s.logger.Debug().Err(err).Msg("couldn't parse remote message")
		return
	}

	if _, isPing := msg.Body.(*protocol.RemotePingRequest); !isPing || logPingTraffic {
		s.logger.Debug().Stringer("msg", msg).Msg("received")
	}

	switch body := msg.Body.(type) {
	case *protocol.RemoteConfigure:
		s.handleConfigure(body)
	case *protocol.RemoteSetActive:
		s.send(&protocol.RemoteMessage{Body: &protocol.RemoteSetActive{Active: s.ActiveFeatures().Mask()}}, true)
	case *protocol.RemoteImeKeyInject:
		app := ""
		if body.AppInfo != nil {
			app = body.AppInfo.AppPackage
		}
		s.mu.Lock()
		s.currentApp = app
		s.mu.Unlock()
		if s.callbacks.onCurrentApp != nil {
			s.callbacks.onCurrentApp(app)
		}
	case *protocol.RemoteImeBatchEdit:
		s.mu.Lock()
		s.imeCounter = body.ImeCounter
		s.fieldCounter = body.FieldCounter
		s.mu.Unlock()
	case *protocol.RemoteSetVolumeLevel:
		info := VolumeInfo{Level: body.VolumeLevel, Max: body.VolumeMax, Muted: body.VolumeMuted}
		s.mu.Lock()
		s.volumeInfo = &info
		s.mu.Unlock()
		if s.callbacks.onVolume != nil {
			s.callbacks.onVolume(info)
		}
	case *protocol.RemoteStart:
		s.started.resolve(nil)
		s.mu.Lock()
		s.isOn = body.Started
		s.mu.Unlock()
		if s.callbacks.onIsOn != nil {
			s.callbacks.onIsOn(body.Started)
		}
	case *protocol.RemotePingRequest:
		s.send(&protocol.RemoteMessage{Body: &protocol.RemotePingResponse{Val1: body.Val1}}, logPingTraffic)
	case *protocol.RemoteVoiceBegin:
		s.deliverVoiceBegin(body.SessionID)
	default:
		s.logger.Debug().Stringer("msg", msg).Msg("unhandled remote message")
	}
}

func (s *remoteSession) handleConfigure(cfg *protocol.RemoteConfigure) {
	supported := protocol.FeatureSet(cfg.Code1)
	s.logger.Debug().Stringer("features", supported).Msg("device supports")
	if !supported.Has(protocol.FeatureKey) {
		s.logger.Error().Msg("device doesn't support key injection; " + deviceStorageHint)
	}
	if !supported.Has(protocol.FeatureAppLink) {
		s.logger.Error().Msg("device doesn't support app links; " + deviceStorageHint)
	}

	s.mu.Lock()
	if cfg.DeviceInfo != nil {
		s.deviceInfo = &DeviceInfo{
			Manufacturer: cfg.DeviceInfo.Vendor,
			Model:        cfg.DeviceInfo.Model,
			SwVersion:    cfg.DeviceInfo.AppVersion,
		}
	}
	// The active mask is fixed by the first remote_configure and immutable
	// for the rest of the connection.
	if !s.configured {
		s.active = s.desired.Intersect(supported)
		s.configured = true
	}
	active := s.active
	s.mu.Unlock()

	s.send(&protocol.RemoteMessage{Body: &protocol.RemoteConfigure{
		Code1: active.Mask(),
		DeviceInfo: &protocol.RemoteDeviceInfo{
			Unknown1:    1,
			Unknown2:    "1",
			PackageName: clientPackageName,
			AppVersion:  clientAppVersion,
		},
	}}, true)
}

// send marshals and writes one message; every outbound message also re-arms
// the idle timer.
func (s *remoteSession) send(msg *protocol.RemoteMessage, logIt bool) {
	if err := s.sendErr(msg, logIt); err != nil {
		s.logger.Debug().Err(err).Msg("couldn't send")
	}
}

func (s *remoteSession) sendErr(msg *protocol.RemoteMessage, logIt bool) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	if logIt {
		s.logger.Debug().Stringer("msg", msg).Msg("sending")
	}
	s.resetIdle()
	return s.conn.writeFrame(data)
}

// SendKeyCommand injects a key press. keyCode is a name from the Android
// key-code enumeration, with or without the KEYCODE_ prefix; a "text:"
// prefix redirects to SendText. direction is SHORT (default when empty),
// START_LONG or END_LONG.
func (s *remoteSession) SendKeyCommand(keyCode, direction string) error {
	if strings.HasPrefix(keyCode, textCommandPrefix) {
		return s.SendText(strings.TrimPrefix(keyCode, textCommandPrefix))
	}

	code, ok := protocol.KeyCodeValue(keyCode)
	if !ok {
		return fmt.Errorf("%w: unknown key code %q", ErrInvalidArgument, keyCode)
	}
	dir := protocol.DirectionShort
	if direction != "" {
		dir, ok = protocol.DirectionValue(direction)
		if !ok {
			return fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, direction)
		}
	}
	return s.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteKeyInject{
		KeyCode:   code,
		Direction: dir,
	}}, true)
}

// SendText sends a string through the input method as a single-edit batch,
// echoing the running counters published by the device.
func (s *remoteSession) SendText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidArgument)
	}

	s.mu.RLock()
	imeCounter, fieldCounter := s.imeCounter, s.fieldCounter
	s.mu.RUnlock()

	pos := int32(len(text) - 1)
	return s.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteImeBatchEdit{
		ImeCounter:   imeCounter,
		FieldCounter: fieldCounter,
		EditInfo: []protocol.RemoteEditInfo{{
			Insert:          1,
			TextFieldStatus: &protocol.RemoteImeObject{Start: pos, End: pos, Value: text},
		}},
	}}, true)
}

// SendLaunchApp sends an app link verbatim. Scheme handling for bare app
// ids happens at the Remote level.
func (s *remoteSession) SendLaunchApp(appLink string) error {
	return s.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteAppLinkLaunchRequest{AppLink: appLink}}, true)
}

// ActiveFeatures returns the negotiated feature mask; before the first
// remote_configure it is the desired set.
func (s *remoteSession) ActiveFeatures() protocol.FeatureSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *remoteSession) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn
}

func (s *remoteSession) CurrentApp() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentApp
}

func (s *remoteSession) DeviceInfo() *DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deviceInfo == nil {
		return nil
	}
	info := *s.deviceInfo
	return &info
}

func (s *remoteSession) VolumeInfo() *VolumeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.volumeInfo == nil {
		return nil
	}
	info := *s.volumeInfo
	return &info
}

// deliverVoiceBegin hands the granted session id to a pending start_voice
// wait, or discards it when no start was requested.
func (s *remoteSession) deliverVoiceBegin(sessionID int32) {
	s.mu.Lock()
	waiter := s.voiceWaiter
	s.voiceWaiter = nil
	s.mu.Unlock()
	if waiter == nil {
		s.logger.Debug().Int32("session_id", sessionID).Msg("voice begin without pending request")
		return
	}
	waiter <- sessionID
	close(waiter)
}

func (s *remoteSession) armVoiceWaiter() chan int32 {
	waiter := make(chan int32, 1)
	s.mu.Lock()
	s.voiceWaiter = waiter
	s.mu.Unlock()
	return waiter
}

func (s *remoteSession) disarmVoiceWaiter(waiter chan int32) {
	s.mu.Lock()
	if s.voiceWaiter == waiter {
		s.voiceWaiter = nil
	}
	s.mu.Unlock()
}
