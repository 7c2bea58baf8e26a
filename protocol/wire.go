package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Low-level helpers shared by the two hand-rolled message codecs. The
// protocol only uses varint and length-delimited fields, so this is all the
// wire surface the codecs need.

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendInt32Field sign-extends negatives the way protobuf int32 requires.
func appendInt32Field(b []byte, num protowire.Number, v int32) []byte {
	return appendVarintField(b, num, uint64(int64(v)))
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	u := uint64(0)
	if v {
		u = 1
	}
	return appendVarintField(b, num, u)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// eachField walks a serialized message, invoking fn once per field. For
// length-delimited fields val holds the unwrapped content; for varint fields
// it holds the raw varint, decodable with decodeVarint. Unknown fields are
// the caller's to ignore.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, val []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		size := protowire.ConsumeFieldValue(num, typ, data)
		if size < 0 {
			return protowire.ParseError(size)
		}
		val := data[:size]
		if typ == protowire.BytesType {
			unwrapped, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return protowire.ParseError(m)
			}
			val = unwrapped
		}
		if err := fn(num, typ, val); err != nil {
			return err
		}
		data = data[size:]
	}
	return nil
}

func decodeVarint(val []byte) uint64 {
	v, n := protowire.ConsumeVarint(val)
	if n < 0 {
		return 0
	}
	return v
}

func decodeInt32(val []byte) int32 {
	return int32(decodeVarint(val))
}

func decodeBool(val []byte) bool {
	return decodeVarint(val) != 0
}
