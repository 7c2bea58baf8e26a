package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atvremote/go-atvremote/protocol"
)

// Audio chunk sizing for voice payloads. Captures smaller than the floor
// are zero-padded up to it; captures larger than the ceiling are split.
const (
	voiceChunkFloor   = 8 * 1024
	voiceChunkCeiling = 20 * 1024
)

// defaultVoiceWait bounds how long startVoice waits for the device to grant
// a session.
const defaultVoiceWait = 2 * time.Second

// VoiceSession streams microphone audio to the device. At most one voice
// session is live per connection; End releases the slot. Audio is expected
// as 16-bit signed little-endian PCM, mono, 8 kHz.
type VoiceSession struct {
	session *remoteSession
	id      int32

	mu     sync.Mutex
	closed bool
}

// startVoice triggers the assistant with a search key press and waits for
// the device to open a voice session. timeout <= 0 uses the default wait.
func (s *remoteSession) startVoice(ctx context.Context, timeout time.Duration) (*VoiceSession, error) {
	if !s.ActiveFeatures().Has(protocol.FeatureVoice) {
		return nil, fmt.Errorf("%w: voice feature not active on this connection", ErrInvalidArgument)
	}
	if !s.voiceMu.TryLock() {
		return nil, fmt.Errorf("%w: a voice session is already in progress", ErrTimeout)
	}

	if timeout <= 0 {
		timeout = defaultVoiceWait
	}

	waiter := s.armVoiceWaiter()
	if err := s.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteKeyInject{
		KeyCode:   protocol.KeyCodeSearch,
		Direction: protocol.DirectionShort,
	}}, true); err != nil {
		s.disarmVoiceWaiter(waiter)
		s.voiceMu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sessionID, ok := <-waiter:
		if !ok {
			s.voiceMu.Unlock()
			return nil, s.conn.lostReason()
		}
		// Acknowledge the grant by echoing the begin message back.
		if err := s.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteVoiceBegin{SessionID: sessionID}}, true); err != nil {
			s.voiceMu.Unlock()
			return nil, err
		}
		return &VoiceSession{session: s, id: sessionID}, nil
	case <-timer.C:
		s.disarmVoiceWaiter(waiter)
		s.voiceMu.Unlock()
		return nil, fmt.Errorf("%w: device did not open a voice session", ErrTimeout)
	case <-s.conn.lost():
		s.disarmVoiceWaiter(waiter)
		s.voiceMu.Unlock()
		return nil, s.conn.lostReason()
	case <-ctx.Done():
		s.disarmVoiceWaiter(waiter)
		s.voiceMu.Unlock()
		return nil, ctx.Err()
	}
}

// ID is the device-assigned voice session identifier.
func (v *VoiceSession) ID() int32 {
	return v.id
}

// SendChunk transmits one capture of PCM audio, normalizing its size on the
// wire. It reports whether the session is still live; sending on an ended
// session is a silent no-op.
func (v *VoiceSession) SendChunk(data []byte) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, nil
	}

	for _, chunk := range splitVoiceChunk(data) {
		err := v.session.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteVoicePayload{
			SessionID: v.id,
			Data:      chunk,
		}}, false)
		if err != nil {
			return true, err
		}
	}
	return true, nil
}

// End closes the voice session and releases the per-connection slot.
// Idempotent.
func (v *VoiceSession) End() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true

	err := v.session.sendErr(&protocol.RemoteMessage{Body: &protocol.RemoteVoiceEnd{SessionID: v.id}}, true)
	v.session.voiceMu.Unlock()
	return err
}

// splitVoiceChunk normalizes a capture for the wire: short captures are
// zero-padded to the floor, oversized ones split at the ceiling. Only the
// remainder of a split is sent as-is without padding.
func splitVoiceChunk(data []byte) [][]byte {
	if len(data) <= voiceChunkFloor {
		padded := make([]byte, voiceChunkFloor)
		copy(padded, data)
		return [][]byte{padded}
	}
	if len(data) <= voiceChunkCeiling {
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > voiceChunkCeiling {
		chunks = append(chunks, data[:voiceChunkCeiling])
		data = data[voiceChunkCeiling:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}
