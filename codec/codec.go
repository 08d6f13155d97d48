// Package codec encodes and decodes message frames in the protobuf wire format
// of the service's wcf.proto, using protowire directly.
//
// Oneof members are always written so the receiver can tell which variant is
// set, even when its value is zero. Plain proto3 scalars are skipped when zero.
// Unknown fields are ignored on decode.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for input that is not valid protobuf.
var ErrMalformed = errors.New("malformed frame")

// field is one decoded (tag, value) pair.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64 // varint and fixed values
	b   []byte // length-delimited values
}

func (f field) str() string   { return string(f.b) }
func (f field) i32() int32    { return int32(f.u) }
func (f field) u32() uint32   { return uint32(f.u) }
func (f field) flag() bool    { return f.u != 0 }
func (f field) isBytes() bool { return f.typ == protowire.BytesType }

// walk calls fn for every field in b, in wire order.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// The opt* helpers implement proto3 implicit presence: zero values are omitted.

func optString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	return appendString(b, num, v)
}

func optBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return appendBytes(b, num, v)
}

func optInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	// int32 is sign-extended to 64 bits on the wire.
	return appendVarint(b, num, uint64(int64(v)))
}

func optUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendVarint(b, num, v)
}

func optBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func wantBytes(f field, what string) error {
	if !f.isBytes() {
		return fmt.Errorf("%w: %s field %d has wire type %d", ErrMalformed, what, f.num, f.typ)
	}
	return nil
}
