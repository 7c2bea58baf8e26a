package client

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/atvremote/go-atvremote/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitVoiceChunkPadsShortCaptures(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 5*1024)
	chunks := splitVoiceChunk(data)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], voiceChunkFloor)
	assert.Equal(t, data, chunks[0][:len(data)])
	assert.Equal(t, make([]byte, voiceChunkFloor-len(data)), chunks[0][len(data):])
}

func TestSplitVoiceChunkPassesMidSizeThrough(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 12*1024)
	chunks := splitVoiceChunk(data)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], len(data))
}

func TestSplitVoiceChunkSplitsOversized(t *testing.T) {
	data := bytes.Repeat([]byte{0x02}, 45*1024)
	chunks := splitVoiceChunk(data)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], voiceChunkCeiling)
	assert.Len(t, chunks[1], voiceChunkCeiling)
	// The remainder of a split goes out as-is, no padding.
	assert.Len(t, chunks[2], 45*1024-2*voiceChunkCeiling)

	var total []byte
	for _, chunk := range chunks {
		total = append(total, chunk...)
	}
	assert.Equal(t, data, total)
}

func TestSplitVoiceChunkExactBoundaries(t *testing.T) {
	chunks := splitVoiceChunk(bytes.Repeat([]byte{0x03}, voiceChunkFloor))
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], voiceChunkFloor)

	chunks = splitVoiceChunk(bytes.Repeat([]byte{0x04}, voiceChunkCeiling))
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], voiceChunkCeiling)
}

func TestVoiceSessionFlow(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)
	device.configure(protocol.DefaultFeatures.Mask())

	type result struct {
		voice *VoiceSession
		err   error
	}
	got := make(chan result, 1)
	go func() {
		voice, err := session.startVoice(context.Background(), 0)
		got <- result{voice, err}
	}()

	// The trigger is a search key press.
	msg := device.recv()
	key, ok := msg.Body.(*protocol.RemoteKeyInject)
	require.True(t, ok, "expected a key inject, got %s", msg)
	assert.Equal(t, protocol.KeyCodeSearch, key.KeyCode)

	device.send(&protocol.RemoteMessage{Body: &protocol.RemoteVoiceBegin{SessionID: 42}})

	// The grant is acknowledged by echoing the begin message.
	msg = device.recv()
	begin, ok := msg.Body.(*protocol.RemoteVoiceBegin)
	require.True(t, ok, "expected a voice begin ack, got %s", msg)
	assert.Equal(t, int32(42), begin.SessionID)

	var res result
	select {
	case res = <-got:
	case <-time.After(testRecvTimeout):
		t.Fatal("startVoice never returned")
	}
	require.NoError(t, res.err)
	require.NotNil(t, res.voice)
	assert.Equal(t, int32(42), res.voice.ID())

	sendDone := make(chan error, 1)
	go func() {
		live, err := res.voice.SendChunk([]byte{1, 2, 3})
		assert.True(t, live)
		sendDone <- err
	}()
	msg = device.recv()
	payload, ok := msg.Body.(*protocol.RemoteVoicePayload)
	require.True(t, ok)
	assert.Equal(t, int32(42), payload.SessionID)
	assert.Len(t, payload.Data, voiceChunkFloor)
	require.NoError(t, <-sendDone)

	endDone := make(chan error, 1)
	go func() { endDone <- res.voice.End() }()
	msg = device.recv()
	end, ok := msg.Body.(*protocol.RemoteVoiceEnd)
	require.True(t, ok)
	assert.Equal(t, int32(42), end.SessionID)
	require.NoError(t, <-endDone)

	// Ended sessions drop audio silently and End stays idempotent.
	live, err := res.voice.SendChunk([]byte{9})
	assert.False(t, live)
	assert.NoError(t, err)
	assert.NoError(t, res.voice.End())
}

func TestVoiceRequiresActiveFeature(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)
	device.configure((protocol.DefaultFeatures.Without(protocol.FeatureVoice)).Mask())

	_, err := session.startVoice(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVoiceStartTimesOut(t *testing.T) {
	session, device := newTestSession(t, protocol.DefaultFeatures, remoteCallbacks{}, 0)
	device.configure(protocol.DefaultFeatures.Mask())

	got := make(chan error, 1)
	go func() {
		_, err := session.startVoice(context.Background(), 50*time.Millisecond)
		got <- err
	}()

	// Swallow the trigger and never grant a session.
	msg := device.recv()
	_, ok := msg.Body.(*protocol.RemoteKeyInject)
	require.True(t, ok)

	select {
	case err := <-got:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(testRecvTimeout):
		t.Fatal("startVoice never timed out")
	}

	// The slot is released after a timeout; a second start gets as far as
	// the trigger again.
	go func() {
		_, err := session.startVoice(context.Background(), 50*time.Millisecond)
		got <- err
	}()
	msg = device.recv()
	_, ok = msg.Body.(*protocol.RemoteKeyInject)
	require.True(t, ok)
	assert.ErrorIs(t, <-got, ErrTimeout)
}
