package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PairingProtocolVersion is the only protocol version the pairing service
// speaks.
const PairingProtocolVersion = 2

// PairingStatus is the status field carried by every pairing message.
type PairingStatus uint32

// Pairing status codes.
const (
	PairingStatusOK               PairingStatus = 200
	PairingStatusError            PairingStatus = 400
	PairingStatusBadConfiguration PairingStatus = 401
	PairingStatusBadSecret        PairingStatus = 402
)

func (s PairingStatus) String() string {
	switch s {
	case PairingStatusOK:
		return "OK"
	case PairingStatusError:
		return "ERROR"
	case PairingStatusBadConfiguration:
		return "BAD_CONFIGURATION"
	case PairingStatusBadSecret:
		return "BAD_SECRET"
	default:
		return fmt.Sprintf("STATUS(%d)", uint32(s))
	}
}

// EncodingType identifies how the pairing code is presented to the user.
type EncodingType uint32

// Encoding types. This client only ever negotiates hexadecimal.
const (
	EncodingTypeUnknown      EncodingType = 0
	EncodingTypeAlphanumeric EncodingType = 1
	EncodingTypeNumeric      EncodingType = 2
	EncodingTypeHexadecimal  EncodingType = 3
	EncodingTypeQRCode       EncodingType = 4
)

// RoleType identifies which side displays the code and which side types it.
type RoleType uint32

// Role types. This client always takes the input role.
const (
	RoleTypeUnknown RoleType = 0
	RoleTypeInput   RoleType = 1
	RoleTypeOutput  RoleType = 2
)

// PairingBody is the closed set of payloads a PairingMessage can carry.
// Exactly one body is populated per message.
type PairingBody interface {
	pairingFieldNumber() protowire.Number
}

// PairingRequest opens the handshake and names the client on the TV screen.
type PairingRequest struct {
	ServiceName string
	ClientName  string
}

// PairingRequestAck acknowledges a PairingRequest.
type PairingRequestAck struct {
	ServerName string
}

// PairingEncoding is one supported code encoding.
type PairingEncoding struct {
	Type         EncodingType
	SymbolLength uint32
}

// PairingOptions advertises supported encodings and the preferred role.
type PairingOptions struct {
	InputEncodings  []PairingEncoding
	OutputEncodings []PairingEncoding
	PreferredRole   RoleType
}

// PairingConfiguration selects the encoding and role for this session.
type PairingConfiguration struct {
	Encoding   PairingEncoding
	ClientRole RoleType
}

// PairingConfigurationAck acknowledges a PairingConfiguration.
type PairingConfigurationAck struct{}

// PairingSecret carries the pairing-code digest.
type PairingSecret struct {
	Secret []byte
}

// PairingSecretAck completes the handshake.
type PairingSecretAck struct {
	Secret []byte
}

func (*PairingRequest) pairingFieldNumber() protowire.Number          { return 10 }
func (*PairingRequestAck) pairingFieldNumber() protowire.Number       { return 11 }
func (*PairingOptions) pairingFieldNumber() protowire.Number          { return 20 }
func (*PairingConfiguration) pairingFieldNumber() protowire.Number    { return 30 }
func (*PairingConfigurationAck) pairingFieldNumber() protowire.Number { return 31 }
func (*PairingSecret) pairingFieldNumber() protowire.Number           { return 40 }
func (*PairingSecretAck) pairingFieldNumber() protowire.Number        { return 41 }

// PairingMessage is the outer message of the pairing wire protocol.
type PairingMessage struct {
	ProtocolVersion uint32
	Status          PairingStatus
	Body            PairingBody
}

// NewPairingMessage returns a message with version and OK status filled in.
func NewPairingMessage(body PairingBody) *PairingMessage {
	return &PairingMessage{
		ProtocolVersion: PairingProtocolVersion,
		Status:          PairingStatusOK,
		Body:            body,
	}
}

// Marshal serializes the message to protobuf wire format.
func (m *PairingMessage) Marshal() ([]byte, error) {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Status))

	if m.Body == nil {
		return b, nil
	}

	var body []byte
	switch v := m.Body.(type) {
	case *PairingRequest:
		body = appendStringField(body, 1, v.ServiceName)
		body = appendStringField(body, 2, v.ClientName)
	case *PairingRequestAck:
		body = appendStringField(body, 1, v.ServerName)
	case *PairingOptions:
		for i := range v.InputEncodings {
			body = appendBytesField(body, 1, marshalEncoding(&v.InputEncodings[i]))
		}
		for i := range v.OutputEncodings {
			body = appendBytesField(body, 2, marshalEncoding(&v.OutputEncodings[i]))
		}
		body = appendVarintField(body, 3, uint64(v.PreferredRole))
	case *PairingConfiguration:
		body = appendBytesField(body, 1, marshalEncoding(&v.Encoding))
		body = appendVarintField(body, 2, uint64(v.ClientRole))
	case *PairingConfigurationAck:
		// empty message
	case *PairingSecret:
		body = appendBytesField(body, 1, v.Secret)
	case *PairingSecretAck:
		body = appendBytesField(body, 1, v.Secret)
	default:
		return nil, fmt.Errorf("unknown pairing body %T", m.Body)
	}

	return appendBytesField(b, m.Body.pairingFieldNumber(), body), nil
}

func marshalEncoding(e *PairingEncoding) []byte {
	b := appendVarintField(nil, 1, uint64(e.Type))
	return protowire.AppendVarint(protowire.AppendTag(b, 2, protowire.VarintType), uint64(e.SymbolLength))
}

// UnmarshalPairingMessage parses a pairing message from wire bytes. Unknown
// fields are skipped; a message whose body field is unrecognized comes back
// with a nil Body for the session layer to reject.
func UnmarshalPairingMessage(data []byte) (*PairingMessage, error) {
	m := &PairingMessage{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pairing message tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("protocol_version: %w", protowire.ParseError(n))
			}
			m.ProtocolVersion = uint32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("status: %w", protowire.ParseError(n))
			}
			m.Status = PairingStatus(v)
			data = data[n:]
		case 10, 11, 20, 30, 31, 40, 41:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("pairing body: %w", protowire.ParseError(n))
			}
			data = data[n:]
			body, err := unmarshalPairingBody(num, raw)
			if err != nil {
				return nil, err
			}
			m.Body = body
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pairing field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return m, nil
}

func unmarshalPairingBody(num protowire.Number, raw []byte) (PairingBody, error) {
	switch num {
	case 10:
		v := &PairingRequest{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				v.ServiceName = string(val)
			case 2:
				v.ClientName = string(val)
			}
			return nil
		})
		return v, err
	case 11:
		v := &PairingRequestAck{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.ServerName = string(val)
			}
			return nil
		})
		return v, err
	case 20:
		v := &PairingOptions{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1, 2:
				enc, err := unmarshalEncoding(val)
				if err != nil {
					return err
				}
				if f == 1 {
					v.InputEncodings = append(v.InputEncodings, enc)
				} else {
					v.OutputEncodings = append(v.OutputEncodings, enc)
				}
			case 3:
				v.PreferredRole = RoleType(decodeVarint(val))
			}
			return nil
		})
		return v, err
	case 30:
		v := &PairingConfiguration{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			switch f {
			case 1:
				enc, err := unmarshalEncoding(val)
				if err != nil {
					return err
				}
				v.Encoding = enc
			case 2:
				v.ClientRole = RoleType(decodeVarint(val))
			}
			return nil
		})
		return v, err
	case 31:
		return &PairingConfigurationAck{}, nil
	case 40:
		v := &PairingSecret{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Secret = append([]byte(nil), val...)
			}
			return nil
		})
		return v, err
	case 41:
		v := &PairingSecretAck{}
		err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
			if f == 1 {
				v.Secret = append([]byte(nil), val...)
			}
			return nil
		})
		return v, err
	}
	return nil, nil
}

func unmarshalEncoding(raw []byte) (PairingEncoding, error) {
	var enc PairingEncoding
	err := eachField(raw, func(f protowire.Number, typ protowire.Type, val []byte) error {
		switch f {
		case 1:
			enc.Type = EncodingType(decodeVarint(val))
		case 2:
			enc.SymbolLength = uint32(decodeVarint(val))
		}
		return nil
	})
	return enc, err
}

// String renders the message for debug logs.
func (m *PairingMessage) String() string {
	body := "none"
	if m.Body != nil {
		body = fmt.Sprintf("%T", m.Body)
	}
	return fmt.Sprintf("PairingMessage{version: %d, status: %s, body: %s}", m.ProtocolVersion, m.Status, body)
}
