// Package ant decodes the framed binary sensor protocol and routes broadcast
// data pages to per-device measurement dispatches.
//
// Wire layout of a frame:
//
//	[0xA4][length][messageId][length payload bytes][checksum]
//
// The checksum is the XOR of every preceding frame byte, so a complete frame
// occupies length+4 bytes.
package ant

import "fmt"

// SyncByte starts every frame.
const SyncByte byte = 0xA4

const (
	headerSize   = 3 // sync, length, message id
	overheadSize = 4 // header plus trailing checksum
)

// Message identifiers the engine cares about.
const (
	MsgChannelEvent     byte = 0x40
	MsgBroadcastData    byte = 0x4E
	MsgAcknowledgedData byte = 0x4F
	MsgBurstData        byte = 0x50
)

// Frame is one decoded protocol message. Payload excludes the header and checksum.
type Frame struct {
	ID       byte
	Payload  []byte
	Tunneled bool // true when the frame was carried inside an outer tunnel frame
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{id=0x%02X len=%d tunneled=%v payload=% X}", f.ID, len(f.Payload), f.Tunneled, f.Payload)
}

// Checksum returns the XOR of all bytes in b.
func Checksum(b []byte) byte {
	var cs byte
	for _, v := range b {
		cs ^= v
	}
	return cs
}

// Encode serialises a message into a complete wire frame.
func Encode(id byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+overheadSize)
	out = append(out, SyncByte, byte(len(payload)), id)
	out = append(out, payload...)
	return append(out, Checksum(out))
}

// EncodeTunnel wraps an already encoded inner frame in an outer tunnel frame
// addressed to channel.
func EncodeTunnel(id byte, channel byte, inner []byte) []byte {
	payload := make([]byte, 0, len(inner)+1)
	payload = append(payload, channel)
	payload = append(payload, inner...)
	return Encode(id, payload)
}
