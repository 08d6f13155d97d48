// Package protocol implements the nanomsg SP-over-TCP framing spoken by the
// WCF automation service (Pair1 protocol).
//
// A connection starts with an 8-byte handshake sent by both peers:
//
//	0    1    2    3    4         6    8
//	┌────┬────┬────┬────┬─────────┬────┐
//	│ 00 │ 'S'│ 'P'│ 00 │ proto   │ 00 │
//	│    │    │    │    │ uint16  │ 00 │
//	└────┴────┴────┴────┴─────────┴────┘
//
// After that every message is a length-prefixed frame. The Pair1 protocol
// adds a 4-byte hop count in front of the body:
//
//	0                 8         12
//	┌─────────────────┬─────────┬───────────────┐
//	│      size       │  hops   │   body ...    │
//	│     uint64      │ uint32  │ size-4 bytes  │
//	└─────────────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// ProtoPair1 is the SP protocol number of nng's pair v1 (1<<4 | 1).
	ProtoPair1 uint16 = 0x11

	HandshakeSize = 8
	SizeLen       = 8 // uint64 frame size
	HopsLen       = 4 // Pair1 hop count header

	// MaxFrameSize bounds the size field of an inbound frame.
	MaxFrameSize = 64 << 20
)

var (
	ErrBadHandshake = errors.New("invalid SP handshake")
	ErrFrameSize    = errors.New("invalid frame size")
)

// Header is the per-frame metadata.
type Header struct {
	Hops    uint32 // Pair1 hop count, 1 for a directly connected peer
	BodyLen uint64 // Body length in bytes, excluding the hop header
}

// Handshake exchanges SP headers over rw and checks that the peer speaks proto.
// Both peers write before reading, so neither side waits on the other.
func Handshake(rw io.ReadWriter, proto uint16) error {
	out := [HandshakeSize]byte{0x00, 'S', 'P', 0x00}
	binary.BigEndian.PutUint16(out[4:6], proto)
	if _, err := rw.Write(out[:]); err != nil {
		return err
	}

	var in [HandshakeSize]byte
	if _, err := io.ReadFull(rw, in[:]); err != nil {
		return err
	}
	if in[0] != 0x00 || in[1] != 'S' || in[2] != 'P' || in[3] != 0x00 {
		return fmt.Errorf("%w: signature %x", ErrBadHandshake, in[0:4])
	}
	if peer := binary.BigEndian.Uint16(in[4:6]); peer != proto {
		return fmt.Errorf("%w: peer protocol %#x, want %#x", ErrBadHandshake, peer, proto)
	}
	return nil
}

// Encode writes a complete frame (size + hops + body) to w in a single Write.
// Callers sharing w between goroutines must serialize calls themselves.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, SizeLen+HopsLen+len(body))
	binary.BigEndian.PutUint64(buf[0:8], uint64(HopsLen+len(body)))
	binary.BigEndian.PutUint32(buf[8:12], h.Hops)
	copy(buf[12:], body)

	_, err := w.Write(buf)
	return err
}

// Decode reads one complete frame from r.
func Decode(r io.Reader) (*Header, []byte, error) {
	var sizeBuf [SizeLen]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, nil, err
	}

	size := binary.BigEndian.Uint64(sizeBuf[:])
	if size < HopsLen || size > MaxFrameSize {
		return nil, nil, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}

	return &Header{
		Hops:    binary.BigEndian.Uint32(frame[:HopsLen]),
		BodyLen: size - HopsLen,
	}, frame[HopsLen:], nil
}
