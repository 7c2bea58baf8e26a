package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RemoteDirection is the press duration of an injected key event.
type RemoteDirection int32

// Key press directions.
const (
	DirectionUnknown   RemoteDirection = 0
	DirectionShort     RemoteDirection = 1
	DirectionStartLong RemoteDirection = 2
	DirectionEndLong   RemoteDirection = 3
)

var directionByName = map[string]RemoteDirection{
	"SHORT":      DirectionShort,
	"START_LONG": DirectionStartLong,
	"END_LONG":   DirectionEndLong,
}

// DirectionValue resolves a direction name. The lookup is case-sensitive.
func DirectionValue(name string) (RemoteDirection, bool) {
	d, ok := directionByName[name]
	return d, ok
}

// RemoteBody is the closed set of payloads a RemoteMessage can carry.
// Exactly one body is populated per message.
type RemoteBody interface {
	remoteFieldNumber() protowire.Number
}

// RemoteDeviceInfo describes one endpoint of the control session. The device
// fills in vendor/model/app_version; the client replies with its package
// name and version.
type RemoteDeviceInfo struct {
	Model       string
	Vendor      string
	Unknown1    int32
	Unknown2    string
	PackageName string
	AppVersion  string
}

// RemoteConfigure negotiates the capability mask; code1 is the feature
// bitmask of the sending side.
type RemoteConfigure struct {
	Code1      int32
	DeviceInfo *RemoteDeviceInfo
}

// RemoteSetActive is the device's liveness probe; the client echoes its
// active feature mask.
type RemoteSetActive struct {
	Active int32
}

// RemoteError is sent by the device when it rejects a message.
type RemoteError struct {
	Value bool
}

// RemotePingRequest carries a nonce to echo back.
type RemotePingRequest struct {
	Val1 int32
}

// RemotePingResponse echoes the ping nonce.
type RemotePingResponse struct {
	Val1 int32
}

// RemoteKeyInject injects one key event.
type RemoteKeyInject struct {
	KeyCode   KeyCode
	Direction RemoteDirection
}

// RemoteAppInfo names the app in the foreground on the device.
type RemoteAppInfo struct {
	AppPackage string
}

// RemoteImeKeyInject reports the foreground app alongside IME key traffic.
type RemoteImeKeyInject struct {
	AppInfo *RemoteAppInfo
}

// RemoteImeObject is the text field content of one edit.
type RemoteImeObject struct {
	Start int32
	End   int32
	Value string
}

// RemoteEditInfo is a single edit inside a batch.
type RemoteEditInfo struct {
	Insert          int32
	TextFieldStatus *RemoteImeObject
}

// RemoteImeBatchEdit is a text-entry batch. The device publishes the running
// counters; the client must echo the latest values on every batch it sends.
type RemoteImeBatchEdit struct {
	ImeCounter   int32
	FieldCounter int32
	EditInfo     []RemoteEditInfo
}

// RemoteVoiceBegin opens (device → client) or acknowledges (client → device)
// a voice session.
type RemoteVoiceBegin struct {
	SessionID int32
}

// RemoteVoicePayload carries one chunk of PCM audio for a session.
type RemoteVoicePayload struct {
	SessionID int32
	Data      []byte
}

// RemoteVoiceEnd closes a voice session.
type RemoteVoiceEnd struct {
	SessionID int32
}

// RemoteSetVolumeLevel is the device's volume snapshot push.
type RemoteSetVolumeLevel struct {
	VolumeMax   uint32
	VolumeLevel uint32
	VolumeMuted bool
}

// RemoteStart reports whether the device is powered on; its first arrival
// marks the session ready for commands.
type RemoteStart struct {
	Started bool
}

// RemoteAppLinkLaunchRequest launches an app by deep link.
type RemoteAppLinkLaunchRequest struct {
	AppLink string
}

func (*RemoteConfigure) remoteFieldNumber() protowire.Number            { return 1 }
func (*RemoteSetActive) remoteFieldNumber() protowire.Number            { return 2 }
func (*RemoteError) remoteFieldNumber() protowire.Number                { return 3 }
func (*RemotePingRequest) remoteFieldNumber() protowire.Number          { return 8 }
func (*RemotePingResponse) remoteFieldNumber() protowire.Number         { return 9 }
func (*RemoteKeyInject) remoteFieldNumber() protowire.Number            { return 10 }
func (*RemoteImeKeyInject) remoteFieldNumber() protowire.Number         { return 20 }
func (*RemoteImeBatchEdit) remoteFieldNumber() protowire.Number         { return 21 }
func (*RemoteVoiceBegin) remoteFieldNumber() protowire.Number           { return 30 }
func (*RemoteVoicePayload) remoteFieldNumber() protowire.Number         { return 31 }
func (*RemoteVoiceEnd) remoteFieldNumber() protowire.Number             { return 32 }
func (*RemoteSetVolumeLevel) remoteFieldNumber() protowire.Number       { return 40 }
func (*RemoteStart) remoteFieldNumber() protowire.Number                { return 50 }
func (*RemoteAppLinkLaunchRequest) remoteFieldNumber() protowire.Number { return 90 }

// RemoteMessage is the outer message of the control wire protocol.
type RemoteMessage struct {
	Body RemoteBody
}

// Marshal serializes the message to protobuf wire format.
func (m *RemoteMessage) Marshal() ([]byte, error) {
	if m.Body == nil {
		return nil, fmt.Errorf("remote message has no body")
	}

	var body []byte
	switch v := m.Body.(type) {
	case *RemoteConfigure:
		body = appendInt32Field(body, 1, v.Code1)
		if v.DeviceInfo != nil {
			body = appendBytesField(body, 2, marshalDeviceInfo(v.DeviceInfo))
		}
	case *RemoteSetActive:
		body = appendInt32Field(body, 1, v.Active)
	case *RemoteError:
		body = appendBoolField(body, 1, v.Value)
	case *RemotePingRequest:
		body = appendInt32Field(body, 1, v.Val1)
	case *RemotePingResponse:
		body = appendInt32Field(body, 1, v.Val1)
	case *RemoteKeyInject:
		body = appendInt32Field(body, 1, int32(v.KeyCode))
		body = appendInt32Field(body, 2, int32(v.Direction))
	case *RemoteImeKeyInject:
		if v.AppInfo != nil {
			body = appendBytesField(body, 1, appendStringField(nil, 1, v.AppInfo.AppPackage))
		}
	case *RemoteImeBatchEdit:
		body = appendInt32Field(body, 1, v.ImeCounter)
		body = appendInt32Field(body, 2, v.FieldCounter)
		for i := range v.EditInfo {
			body = appendBytesField(body, 3, marshalEditInfo(&v.EditInfo[i]))
		}
	case *RemoteVoiceBegin:
		body = appendInt32Field(body, 1, v.SessionID)
	case *RemoteVoicePayload:
		body = appendInt32Field(body, 1, v.SessionID)
		body = appendBytesField(body, 2, v.Data)
	case *RemoteVoiceEnd:
		body = appendInt32Field(body, 1, v.SessionID)
	case *RemoteSetVolumeLevel:
		body = appendVarintField(body, 6, uint64(v.VolumeMax))
		body = appendVarintField(body, 7, uint64(v.VolumeLevel))
		body = appendBoolField(body, 8, v.VolumeMuted)
	case *RemoteStart:
		body = appendBoolField(body, 1, v.Started)
	case *RemoteAppLinkLaunchRequest:
		body = appendStringField(body, 1, v.AppLink)
	default:
		return nil, fmt.Errorf("unknown remote body %T", m.Body)
	}

	return appendBytesField(nil, m.Body.remoteFieldNumber(), body), nil
}

func marshalDeviceInfo(d *RemoteDeviceInfo) []byte {
	b := appendStringField(nil, 1, d.Model)
	b = appendStringField(b, 2, d.Vendor)
	b = appendInt32Field(b, 3, d.Unknown1)
	b = appendStringField(b, 4, d.Unknown2)
	b = appendStringField(b, 5, d.PackageName)
	return appendStringField(b, 6, d.AppVersion)
}

func marshalEditInfo(e *RemoteEditInfo) []byte {
	b := appendInt32Field(nil, 1, e.Insert)
	if e.TextFieldStatus == nil {
		return b
	}
	obj := appendInt32Field(nil, 1, e.TextFieldStatus.Start)
	obj = appendInt32Field(obj, 2, e.TextFieldStatus.End)
	obj = appendStringField(obj, 3, e.TextFieldStatus.Value)
	return appendBytesField(b, 2, obj)
}

// UnmarshalRemoteMessage parses a remote message from wire bytes. Unknown
// outer fields are skipped and leave Body nil; the session layer discards
// such messages with a diagnostic.
func UnmarshalRemoteMessage(data []byte) (*RemoteMessage, error) {
	m := &RemoteMessage{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, val []byte) error {
		body, err := unmarshalRemoteBody(num, val)
		if err != nil {
			return err
		}
		if body != nil {
			m.Body = body
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalRemoteBody(num protowire.Number, raw []byte) (RemoteBody, error) {
	switch num {
	case 1:
		v := &RemoteConfigure{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				v.Code1 = decodeInt32(val)
			case 2:
				info, err := unmarshalDeviceInfo(val)
				if err != nil {
					return err
				}
				v.DeviceInfo = info
			}
			return nil
		})
		return v, err
	case 2:
		v := &RemoteSetActive{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Active = decodeInt32(val)
			}
			return nil
		})
		return v, err
	case 3:
		v := &RemoteError{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Value = decodeBool(val)
			}
			return nil
		})
		return v, err
	case 8:
		v := &RemotePingRequest{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Val1 = decodeInt32(val)
			}
			return nil
		})
		return v, err
	case 9:
		v := &RemotePingResponse{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Val1 = decodeInt32(val)
			}
			return nil
		})
		return v, err
	case 10:
		v := &RemoteKeyInject{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				v.KeyCode = KeyCode(decodeInt32(val))
			case 2:
				v.Direction = RemoteDirection(decodeInt32(val))
			}
			return nil
		})
		return v, err
	case 20:
		v := &RemoteImeKeyInject{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				info := &RemoteAppInfo{}
				err := eachField(val, func(g protowire.Number, typ protowire.Type, inner []byte) error {
					if g == 1 {
						info.AppPackage = string(inner)
					}
					return nil
				})
				if err != nil {
					return err
				}
				v.AppInfo = info
			}
			return nil
		})
		return v, err
	case 21:
		v := &RemoteImeBatchEdit{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				v.ImeCounter = decodeInt32(val)
			case 2:
				v.FieldCounter = decodeInt32(val)
			case 3:
				edit, err := unmarshalEditInfo(val)
				if err != nil {
					return err
				}
				v.EditInfo = append(v.EditInfo, edit)
			}
			return nil
		})
		return v, err
	case 30:
		v := &RemoteVoiceBegin{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.SessionID = decodeInt32(val)
			}
			return nil
		})
		return v, err
	case 31:
		v := &RemoteVoicePayload{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				v.SessionID = decodeInt32(val)
			case 2:
				v.Data = append([]byte(nil), val...)
			}
			return nil
		})
		return v, err
	case 32:
		v := &RemoteVoiceEnd{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.SessionID = decodeInt32(val)
			}
			return nil
		})
		return v, err
	case 40:
		v := &RemoteSetVolumeLevel{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 6:
				v.VolumeMax = uint32(decodeVarint(val))
			case 7:
				v.VolumeLevel = uint32(decodeVarint(val))
			case 8:
				v.VolumeMuted = decodeBool(val)
			}
			return nil
		})
		return v, err
	case 50:
		v := &RemoteStart{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Started = decodeBool(val)
			}
			return nil
		})
		return v, err
	case 90:
		v := &RemoteAppLinkLaunchRequest{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.AppLink = string(val)
			}
			return nil
		})
		return v, err
	}
	return nil, nil
}

func unmarshalDeviceInfo(raw []byte) (*RemoteDeviceInfo, error) {
	d := &RemoteDeviceInfo{}
	err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
		switch f {
		case 1:
			d.Model = string(val)
		case 2:
			d.Vendor = string(val)
		case 3:
			d.Unknown1 = decodeInt32(val)
		case 4:
			d.Unknown2 = string(val)
		case 5:
			d.PackageName = string(val)
		case 6:
			d.AppVersion = string(val)
		}
		return nil
	})
	return d, err
}

func unmarshalEditInfo(raw []byte) (RemoteEditInfo, error) {
	var e RemoteEditInfo
	err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
		switch f {
		case 1:
			e.Insert = decodeInt32(val)
		case 2:
			obj := &RemoteImeObject{}
			err := eachField(val, func(g protowire.Number, typ protowire.Type, inner []byte) error {
				switch g {
				case 1:
					obj.Start = decodeInt32(inner)
				case 2:
					obj.End = decodeInt32(inner)
				case 3:
					obj.Value = string(inner)
				}
				return nil
			})
			if err != nil {
				return err
			}
			e.TextFieldStatus = obj
		}
		return nil
	})
	return e, err
}

// String renders the message for debug logs without dumping payload bytes.
func (m *RemoteMessage) String() string {
	switch v := m.Body.(type) {
	case nil:
		return "RemoteMessage{body: none}"
	case *RemoteVoicePayload:
		return fmt.Sprintf("RemoteMessage{body: *protocol.RemoteVoicePayload, session: %d, bytes: %d}", v.SessionID, len(v.Data))
	default:
		return fmt.Sprintf("RemoteMessage{body: %T}", m.Body)
	}
}
