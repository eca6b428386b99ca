// Package wsframe implements the RFC 6455 wire framing used by the bridge's
// WebSocket endpoint. Parsing is tolerant of partial input: callers accumulate
// bytes, hand the whole buffer to Parse, and drop the consumed prefix.
package wsframe

import (
	"encoding/binary"
)

// Opcode is the frame type carried in the header's low nibble.
type Opcode byte

// Opcodes used by the bridge.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

const (
	_finBit  = 0x80
	_maskBit = 0x80

	_len16 = 126
	_len64 = 127

	// Payloads this large never occur on a loopback IDE connection. Anything
	// beyond is treated as an incomplete frame rather than allocated.
	_maxPayload = 1 << 27
)

// Frame is a single decoded unit. Payload is an unmasked copy of the wire bytes.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Parse extracts every complete frame from buf and reports how many bytes were
// consumed. A trailing incomplete frame, a truncated header, or a malformed
// length encoding simply ends the scan; no error is ever returned. The peer on
// the other end is a single well-behaved CLI, so garbage input is not a case
// worth distinguishing from "more bytes needed".
func Parse(buf []byte) ([]Frame, int) {
	var frames []Frame
	offset := 0

	for {
		if len(buf)-offset < 2 {
			return frames, offset
		}

		opcode := Opcode(buf[offset] & 0x0F)
		masked := buf[offset+1]&_maskBit != 0
		length := uint64(buf[offset+1] & 0x7F)
		headerLen := 2

		switch length {
		case _len16:
			if len(buf)-offset < 4 {
				return frames, offset
			}
			length = uint64(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
			headerLen = 4
		case _len64:
			if len(buf)-offset < 10 {
				return frames, offset
			}
			length = binary.BigEndian.Uint64(buf[offset+2 : offset+10])
			headerLen = 10
		}

		if length > _maxPayload {
			return frames, offset
		}

		var maskKey []byte
		if masked {
			if len(buf)-offset < headerLen+4 {
				return frames, offset
			}
			maskKey = buf[offset+headerLen : offset+headerLen+4]
			headerLen += 4
		}

		total := headerLen + int(length)
		if len(buf)-offset < total {
			return frames, offset
		}

		payload := make([]byte, length)
		copy(payload, buf[offset+headerLen:offset+total])
		if masked {
			for i := range payload {
				payload[i] ^= maskKey[i%4]
			}
		}

		frames = append(frames, Frame{Opcode: opcode, Payload: payload})
		offset += total
	}
}

// Build produces a single unmasked frame with the FIN bit set, choosing the
// shortest header encoding for the payload length. Server-originated frames
// are never masked.
func Build(opcode Opcode, payload []byte) []byte {
	var header []byte

	switch {
	case len(payload) < _len16:
		header = []byte{_finBit | byte(opcode), byte(len(payload))}
	case len(payload) <= 0xFFFF:
		header = make([]byte, 4)
		header[0] = _finBit | byte(opcode)
		header[1] = _len16
		binary.BigEndian.PutUint16(header[2:], uint16(len(payload)))
	default:
		header = make([]byte, 10)
		header[0] = _finBit | byte(opcode)
		header[1] = _len64
		binary.BigEndian.PutUint64(header[2:], uint64(len(payload)))
	}

	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// BuildClose packs a close frame carrying the status code and a UTF-8 reason.
func BuildClose(status uint16, reason string) []byte {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, status)
	copy(payload[2:], reason)
	return Build(OpcodeClose, payload)
}
