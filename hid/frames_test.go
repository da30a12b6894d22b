package hid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func reassembleAll(t *testing.T, channelID uint16, packets [][]byte) []byte {
	t.Helper()

	var state *ReassemblyState
	var err error
	for i, p := range packets {
		state, err = Reassemble(channelID, state, p)
		if err != nil {
			t.Fatalf("Reassemble packet %d failed: %v", i, err)
		}
	}
	if !state.Complete() {
		t.Fatalf("state not complete after %d packets: %d/%d bytes", len(packets), len(state.Data), state.Declared)
	}
	return state.Data
}

func TestFramingRoundTrip(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	for _, packetSize := range []int{8, 19, 64, 128} {
		for length := 0; length <= len(payload); length++ {
			packets := MakeFrames(0x0101, packetSize, payload[:length])
			got := reassembleAll(t, 0x0101, packets)
			if !bytes.Equal(got, payload[:length]) {
				t.Fatalf("round trip failed: size=%d len=%d got %x want %x", packetSize, length, got, payload[:length])
			}
		}
	}
}

func TestFramingPacketShape(t *testing.T) {
	packets := MakeFrames(0x0101, 64, make([]byte, 100))

	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p) != 64 {
			t.Errorf("packet %d has size %d, want 64", i, len(p))
		}
		if binary.BigEndian.Uint16(p[0:2]) != 0x0101 {
			t.Errorf("packet %d has channel %x", i, p[0:2])
		}
		if p[2] != TagAPDU {
			t.Errorf("packet %d has tag %x", i, p[2])
		}
		if binary.BigEndian.Uint16(p[3:5]) != uint16(i) {
			t.Errorf("packet %d has sequence %x", i, p[3:5])
		}
	}
	if binary.BigEndian.Uint16(packets[0][5:7]) != 100 {
		t.Errorf("declared length = %x, want 100", packets[0][5:7])
	}
}

func TestReassembleRejects(t *testing.T) {
	packets := MakeFrames(0x0101, 64, make([]byte, 200))
	if len(packets) < 4 {
		t.Fatalf("need at least 4 packets, got %d", len(packets))
	}

	t.Run("wrong channel", func(t *testing.T) {
		_, err := Reassemble(0x0202, nil, packets[0])
		if !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("err = %v, want ErrInvalidChannel", err)
		}
	})

	t.Run("wrong tag", func(t *testing.T) {
		bad := append([]byte(nil), packets[0]...)
		bad[2] = 0x06
		_, err := Reassemble(0x0101, nil, bad)
		if !errors.Is(err, ErrInvalidTag) {
			t.Fatalf("err = %v, want ErrInvalidTag", err)
		}
	})

	t.Run("skipped sequence", func(t *testing.T) {
		state, err := Reassemble(0x0101, nil, packets[0])
		if err != nil {
			t.Fatalf("first packet failed: %v", err)
		}
		_, err = Reassemble(0x0101, state, packets[2])
		if !errors.Is(err, ErrInvalidSequence) {
			t.Fatalf("err = %v, want ErrInvalidSequence", err)
		}
	})

	t.Run("continuation as first", func(t *testing.T) {
		_, err := Reassemble(0x0101, nil, packets[1])
		if !errors.Is(err, ErrInvalidSequence) {
			t.Fatalf("err = %v, want ErrInvalidSequence", err)
		}
	})

	t.Run("short packet", func(t *testing.T) {
		_, err := Reassemble(0x0101, nil, packets[0][:3])
		if !errors.Is(err, ErrPacketTooShort) {
			t.Fatalf("err = %v, want ErrPacketTooShort", err)
		}
	})
}

func TestReassembleTruncatesOvershoot(t *testing.T) {
	// 10 bytes of payload in a 64-byte packet: the padding must not leak.
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	packets := MakeFrames(0x0101, 64, payload)

	state, err := Reassemble(0x0101, nil, packets[0])
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !state.Complete() {
		t.Fatal("expected completed state")
	}
	if !bytes.Equal(state.Data, payload) {
		t.Fatalf("data = %x, want %x", state.Data, payload)
	}
}
