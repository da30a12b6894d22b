// Package hid implements the link framing used to move APDUs over
// fixed-size HID reports. A frame is the logical payload prefixed with its
// big-endian 16-bit length, padded to whole packets; every packet carries a
// channel id, the APDU tag and a running sequence number.
package hid

import (
	"encoding/binary"
)

// TagAPDU is the only tag this framing scheme uses.
const TagAPDU = 0x05

// headerLen is channel(2) + tag(1) + sequence(2).
const headerLen = 5

// A FramingError aborts the reassembly of the current exchange. It is never
// retried at this layer.
type FramingError string

func (e FramingError) Error() string { return "hid: " + string(e) }

const (
	ErrInvalidChannel  FramingError = "invalid channel"
	ErrInvalidTag      FramingError = "invalid tag"
	ErrInvalidSequence FramingError = "invalid sequence"
	ErrPacketTooShort  FramingError = "packet too short"
)

// MakeFrames splits payload into packets of exactly packetSize bytes. The
// first packet carries the total payload length right after the header.
// packetSize must leave room for the header plus the length prefix.
func MakeFrames(channelID uint16, packetSize int, payload []byte) [][]byte {
	blockSize := packetSize - headerLen

	// Length prefix first, then pad the frame to a whole number of blocks.
	frame := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)
	for len(frame)%blockSize != 0 {
		frame = append(frame, 0x00)
	}

	packets := make([][]byte, 0, len(frame)/blockSize)
	for seq := 0; len(frame) > 0; seq++ {
		packet := make([]byte, headerLen, packetSize)
		binary.BigEndian.PutUint16(packet[0:2], channelID)
		packet[2] = TagAPDU
		binary.BigEndian.PutUint16(packet[3:5], uint16(seq))
		packet = append(packet, frame[:blockSize]...)
		frame = frame[blockSize:]
		packets = append(packets, packet)
	}
	return packets
}

// ReassemblyState accumulates one in-flight frame. It is replaced, not
// mutated, on every packet and discarded once Complete reports true.
type ReassemblyState struct {
	Data     []byte
	Declared int
	NextSeq  uint16
}

// Complete reports whether the declared payload has been fully accumulated.
func (s *ReassemblyState) Complete() bool {
	return s != nil && len(s.Data) == s.Declared
}

// Reassemble folds one received packet into the running state. Pass a nil
// state for the first packet of a frame. The first validation failure aborts
// the whole reassembly.
func Reassemble(channelID uint16, prev *ReassemblyState, packet []byte) (*ReassemblyState, error) {
	if len(packet) < headerLen {
		return nil, ErrPacketTooShort
	}
	if binary.BigEndian.Uint16(packet[0:2]) != channelID {
		return nil, ErrInvalidChannel
	}
	if packet[2] != TagAPDU {
		return nil, ErrInvalidTag
	}

	seq := binary.BigEndian.Uint16(packet[3:5])

	if prev == nil {
		if seq != 0 {
			return nil, ErrInvalidSequence
		}
		if len(packet) < headerLen+2 {
			return nil, ErrPacketTooShort
		}
		next := &ReassemblyState{
			Declared: int(binary.BigEndian.Uint16(packet[5:7])),
			NextSeq:  1,
		}
		next.Data = appendCapped(nil, packet[7:], next.Declared)
		return next, nil
	}

	if seq != prev.NextSeq {
		return nil, ErrInvalidSequence
	}
	next := &ReassemblyState{
		Declared: prev.Declared,
		NextSeq:  prev.NextSeq + 1,
	}
	next.Data = appendCapped(prev.Data, packet[headerLen:], prev.Declared)
	return next, nil
}

// appendCapped appends slice to data, truncating at the declared length when
// the final packet overshoots.
func appendCapped(data, slice []byte, declared int) []byte {
	if left := declared - len(data); len(slice) > left {
		slice = slice[:left]
	}
	out := make([]byte, 0, len(data)+len(slice))
	out = append(out, data...)
	return append(out, slice...)
}
