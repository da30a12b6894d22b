package apdu

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusNames(t *testing.T) {
	tests := []struct {
		status Status
		name   string
	}{
		{0x9000, "OK"},
		{0x6982, "SECURITY_STATUS_NOT_SATISFIED"},
		{0x5515, "LOCKED_DEVICE"},
		{0x6a80, "INCORRECT_DATA"},
		{0x6985, "CONDITIONS_OF_USE_NOT_SATISFIED"},
		{0x1234, "UNKNOWN_ERROR"},
		{0xffff, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		if got := tt.status.Name(); got != tt.name {
			t.Errorf("Status(0x%04x).Name() = %q, want %q", uint16(tt.status), got, tt.name)
		}
	}
}

func TestStatusHints(t *testing.T) {
	if hint := Status(0x6982).Hint(); !strings.HasPrefix(hint, "Security not satisfied") {
		t.Errorf("0x6982 hint = %q", hint)
	}
	// The whole 0x6f00-0x6fff range is an internal device error.
	for _, s := range []Status{0x6f00, 0x6f42, 0x6faa, 0x6fff} {
		if hint := s.Hint(); hint != "Internal error, please report" {
			t.Errorf("0x%04x hint = %q", uint16(s), hint)
		}
	}
	if hint := Status(0x9000).Hint(); hint != "" {
		t.Errorf("OK hint = %q, want empty", hint)
	}
}

func TestLockedDeviceSpecialization(t *testing.T) {
	err := NewStatusError(0x5515)
	if !errors.Is(err, ErrLockedDevice) {
		t.Fatalf("0x5515 error does not match ErrLockedDevice: %v", err)
	}
	if errors.Is(NewStatusError(0x6982), ErrLockedDevice) {
		t.Fatal("0x6982 must not match ErrLockedDevice")
	}
}

func TestCommandBytes(t *testing.T) {
	cmd := Command{Cla: 0xe0, Ins: 0x04, P1: 0x00, P2: 0x01, Data: []byte{0xde, 0xad}}
	raw, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	want := []byte{0xe0, 0x04, 0x00, 0x01, 0x02, 0xde, 0xad}
	if len(raw) != len(want) {
		t.Fatalf("raw = %x, want %x", raw, want)
	}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("raw = %x, want %x", raw, want)
		}
	}
}

func TestCommandBytesTooLarge(t *testing.T) {
	cmd := Command{Cla: 0xe0, Ins: 0x04, Data: make([]byte, 256)}
	if _, err := cmd.Bytes(); !errors.Is(err, ErrDataTooLarge) {
		t.Fatalf("err = %v, want ErrDataTooLarge", err)
	}
}
