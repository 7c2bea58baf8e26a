package client

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/atvremote/go-atvremote/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecvTimeout = 2 * time.Second

// fakeDevice drives the device side of a pipe in tests.
type fakeDevice struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.FrameCodec
	queue [][]byte
}

func (d *fakeDevice) send(msg *protocol.RemoteMessage) {
	d.t.Helper()
	data, err := msg.Marshal()
	require.NoError(d.t, err)
	_ = d.conn.SetWriteDeadline(time.Now().Add(testRecvTimeout))
	_, err = d.conn.Write(protocol.EncodeFrame(data))
	require.NoError(d.t, err)
}

func (d *fakeDevice) recvFrame() []byte {
	d.t.Helper()
	buf := make([]byte, 4096)
	for len(d.queue) == 0 {
		_ = d.conn.SetReadDeadline(time.Now().Add(testRecvTimeout))
		n, err := d.conn.Read(buf)
		require.NoError(d.t, err, "waiting for a frame from the client")
		frames, err := d.codec.Feed(buf[:n])
		require.NoError(d.t, err)
		d.queue = append(d.queue, frames...)
	}
	frame := d.queue[0]
	d.queue = d.queue[1:]
	return frame
}

func (d *fakeDevice) recv() *protocol.RemoteMessage {
	d.t.Helper()
	msg, err := protocol.UnmarshalRemoteMessage(d.recvFrame())
	require.NoError(d.t, err)
	return msg
}

func newTestSession(t *testing.T, desired protocol.FeatureSet, callbacks remoteCallbacks, idleTimeout time.Duration) (*remoteSession, *fakeDevice) {
	t.Helper()
	clientEnd, deviceEnd := net.Pipe()
	session := newRemoteSession(newFramedConn(clientEnd, zerolog.Nop()), desired, callbacks, idleTimeout, zerolog.Nop())
	go session.run()
	t.Cleanup(func() {
		session.conn.close(fmt.Errorf("%w: test done", ErrConnectionClosed))
		_ = deviceEnd.Close()
	})
	return session, &fakeDevice{t: t, conn: deviceEnd, codec: protocol.NewFrameCodec()}
}

// configure performs the device side of the handshake up to remote_start.
func (d *fakeDevice) configure(supported int32) {
	d.t.Helper()
	d.send(&protocol.RemoteMessage{Body: &protocol.RemoteConfigure{
		Code1: supported,
		DeviceInfo: &protocol.RemoteDeviceInfo{
			Model:      "Chromecast",
			Vendor:     "Google",
			AppVersion: "5.2",
		},
	}})
	reply := d.recv()
	require.IsType(d.t, &protocol.RemoteConfigure{}, reply.Body)

	d.send(&protocol.RemoteMessage{Body: &protocol.RemoteSetActive{Active: supported}})
	reply = d.recv()
	require.IsType(d.t, &protocol.RemoteSetActive{}, reply.Body)

	d.send(&protocol.RemoteMessage{Body: &protocol.RemoteStart{Started: true}})
}

func TestRemoteHandshake(t *testing.T) {
	var isOnEvents []bool
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{
		onIsOn: func(on bool) { isOnEvents = append(isOnEvents, on) },
	}, 0)

	supported := protocol.FeatureSet(protocol.FeaturePing | protocol.FeatureKey | protocol.FeatureVolume)
	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteConfigure{
		Code1: supported.Mask(),
		DeviceInfo: &protocol.RemoteDeviceInfo{
			Model:      "Chromecast",
			Vendor:     "Google",
			AppVersion: "5.2",
		},
	}})

	reply := device.recv()
	cfg, ok := reply.Body.(*protocol.RemoteConfigure)
	require.True(t, ok, "expected a configure reply, got %s", reply)
	assert.Equal(t, supported.Mask(), cfg.Code1, "active mask must be the intersection")
	require.NotNil(t, cfg.DeviceInfo)
	assert.Equal(t, "atvremote", cfg.DeviceInfo.PackageName)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteSetActive{Active: supported.Mask()}})
	reply = device.recv()
	active, ok := reply.Body.(*protocol.RemoteSetActive)
	require.True(t, ok)
	assert.Equal(t, supported.Mask(), active.Active)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteStart{Started: true}})

	select {
	case <-session.ready().done():
		require.NoError(t, session.ready().err())
	case <-time.After(testRecvTimeout):
		t.Fatal("session never became ready")
	}

	assert.True(t, session.IsOn())
	assert.Equal(t, []bool{true}, isOnEvents)
	assert.Equal(t, supported, session.ActiveFeatures())

	info := session.DeviceInfo()
	require.NotNil(t, info)
	assert.Equal(t, DeviceInfo{Manufacturer: "Google", Model: "Chromecast", SwVersion: "5.2"}, *info)
}

// Some devices probe with remote_set_active before sending the first
// remote_configure; the echo then carries the desired mask, not zero.
func TestSetActiveBeforeConfigureEchoesDesired(t *testing.T) {
	desired := protocol.DefaultFeatures.Without(protocol.FeatureIME)
	session, device := newTestSession(t, desired, remoteCallbacks{}, 0)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteSetActive{Active: 1}})
	reply := device.recv()
	active, ok := reply.Body.(*protocol.RemoteSetActive)
	require.True(t, ok)
	assert.Equal(t, desired.Mask(), active.Active)

	// The first configure still narrows the mask to the intersection.
	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteConfigure{
		Code1: protocol.FeatureSet(protocol.FeaturePing | protocol.FeatureKey).Mask(),
	}})
	reply = device.recv()
	cfg, ok := reply.Body.(*protocol.RemoteConfigure)
	require.True(t, ok)
	assert.Equal(t, protocol.FeatureSet(protocol.FeaturePing|protocol.FeatureKey).Mask(), cfg.Code1)
	assert.Equal(t, protocol.FeatureSet(protocol.FeaturePing|protocol.FeatureKey), session.ActiveFeatures())
}

func TestRemoteActiveMaskFixedByFirstConfigure(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)

	device.configure(protocol.FeatureSet(protocol.FeaturePing | protocol.FeatureKey).Mask())
	first := session.ActiveFeatures()

	// A second configure with a wider mask must not change the negotiation.
	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteConfigure{Code1: protocol.DefaultFeatures.Mask()}})
	reply := device.recv()
	cfg, ok := reply.Body.(*protocol.RemoteConfigure)
	require.True(t, ok)
	assert.Equal(t, first.Mask(), cfg.Code1)
	assert.Equal(t, first, session.ActiveFeatures())
}

func TestRemotePingPong(t *testing.T) {
	_, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemotePingRequest{Val1: 57}})
	reply := device.recv()
	pong, ok := reply.Body.(*protocol.RemotePingResponse)
	require.True(t, ok, "expected a ping response, got %s", reply)
	assert.Equal(t, int32(57), pong.Val1)
}

func TestRemoteIdleEviction(t *testing.T) {
	session, _ := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 50*time.Millisecond)

	select {
	case <-session.conn.lost():
		assert.ErrorIs(t, session.conn.lostReason(), ErrConnectionClosed)
	case <-time.After(testRecvTimeout):
		t.Fatal("idle connection was never evicted")
	}
}

func TestRemoteIdleResetByTraffic(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 200*time.Millisecond)

	// Pings well inside the idle window keep the connection alive past
	// several multiples of the timeout.
	deadline := time.Now().Add(700 * time.Millisecond)
	for time.Now().Before(deadline) {
		device.send(&protocol.RemoteMessage{Body: &protocol.RemotePingRequest{Val1: 1}})
		device.recv()
		select {
		case <-session.conn.lost():
			t.Fatal("connection evicted despite traffic")
		case <-time.After(80 * time.Millisecond):
		}
	}
}

func TestSendTextEchoesCounters(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)
	device.configure(protocol.DefaultFeatures.Mask())

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteImeBatchEdit{ImeCounter: 7, FieldCounter: 3}})

	// The batch edit carries no reply; ping round-trips to make sure it was
	// processed before reading the counters back.
	device.send(&protocol.RemoteMessage{Body: &protocol.RemotePingRequest{Val1: 1}})
	device.recv()

	go func() { _ = session.SendText("hi") }()
	msg := device.recv()
	edit, ok := msg.Body.(*protocol.RemoteImeBatchEdit)
	require.True(t, ok, "expected a batch edit, got %s", msg)
	assert.Equal(t, int32(7), edit.ImeCounter)
	assert.Equal(t, int32(3), edit.FieldCounter)
	require.Len(t, edit.EditInfo, 1)
	assert.Equal(t, int32(1), edit.EditInfo[0].Insert)
	status := edit.EditInfo[0].TextFieldStatus
	require.NotNil(t, status)
	assert.Equal(t, int32(1), status.Start)
	assert.Equal(t, int32(1), status.End)
	assert.Equal(t, "hi", status.Value)
}

func TestSendTextRejectsEmpty(t *testing.T) {
	session, _ := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)
	assert.ErrorIs(t, session.SendText(""), ErrInvalidArgument)
}

func TestSendKeyCommand(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)

	go func() { _ = session.SendKeyCommand("HOME", "") }()
	msg := device.recv()
	key, ok := msg.Body.(*protocol.RemoteKeyInject)
	require.True(t, ok)
	assert.Equal(t, protocol.KeyCode(3), key.KeyCode)
	assert.Equal(t, protocol.DirectionShort, key.Direction)

	go func() { _ = session.SendKeyCommand("KEYCODE_DPAD_UP", "START_LONG") }()
	msg = device.recv()
	key, ok = msg.Body.(*protocol.RemoteKeyInject)
	require.True(t, ok)
	assert.Equal(t, protocol.DirectionStartLong, key.Direction)
}

func TestSendKeyCommandValidation(t *testing.T) {
	session, _ := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)

	assert.ErrorIs(t, session.SendKeyCommand("KEYCODE_NO_SUCH_KEY", ""), ErrInvalidArgument)
	assert.ErrorIs(t, session.SendKeyCommand("HOME", "SIDEWAYS"), ErrInvalidArgument)
}

func TestCurrentAppAndVolumeUpdates(t *testing.T) {
	var apps []string
	var volumes []VolumeInfo
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{
		onCurrentApp: func(app string) { apps = append(apps, app) },
		onVolume:     func(v VolumeInfo) { volumes = append(volumes, v) },
	}, 0)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteImeKeyInject{
		AppInfo: &protocol.RemoteAppInfo{AppPackage: "com.netflix.ninja"},
	}})
	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteSetVolumeLevel{
		VolumeMax:   100,
		VolumeLevel: 40,
		VolumeMuted: false,
	}})

	// Ping round-trip to order the assertions after both updates.
	device.send(&protocol.RemoteMessage{Body: &protocol.RemotePingRequest{Val1: 1}})
	device.recv()

	assert.Equal(t, "com.netflix.ninja", session.CurrentApp())
	assert.Equal(t, []string{"com.netflix.ninja"}, apps)

	vol := session.VolumeInfo()
	require.NotNil(t, vol)
	assert.Equal(t, VolumeInfo{Level: 40, Max: 100, Muted: false}, *vol)
	assert.Equal(t, []VolumeInfo{*vol}, volumes)
}
