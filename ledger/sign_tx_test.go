package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestRecoveryV(t *testing.T) {
	tests := []struct {
		name     string
		recovery byte
		chainID  int64
		typed    bool
		want     string
	}{
		{"legacy chain 1", 0x1c, 1, false, "1c"},
		{"legacy chain 1 even recovery", 0x1b, 1, false, "1b"},
		// chainId 300: 2*300+35 = 635, one byte = 123. Recovery 124 gives
		// parity 1, so v = 636 = 0x27c, padded to even length.
		{"legacy oversized chain", 124, 300, false, "027c"},
		{"legacy oversized chain parity 0", 123, 300, false, "027b"},
		{"typed oversized chain parity 1", 124, 300, true, "01"},
		{"typed oversized chain parity 0", 123, 300, true, "00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recoveryV(tt.recovery, big.NewInt(tt.chainID), tt.typed)
			if got != tt.want {
				t.Errorf("recoveryV(%#x, %d, %v) = %q, want %q", tt.recovery, tt.chainID, tt.typed, got, tt.want)
			}
			if len(got)%2 != 0 {
				t.Errorf("v %q has odd length", got)
			}
		})
	}
}

func TestSerializeTxLegacyMarker(t *testing.T) {
	to := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    9,
		GasPrice: big.NewInt(20000000000),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1000000000000000000),
		Data:     nil,
	})

	payload, marker, err := serializeTx(tx, big.NewInt(1))
	if err != nil {
		t.Fatalf("serializeTx failed: %v", err)
	}
	if marker <= 0 || marker >= len(payload) {
		t.Fatalf("marker = %d out of range (payload %d bytes)", marker, len(payload))
	}
	// The replay-protection trailer is chainId(1) followed by two empty
	// elements.
	if want := []byte{0x01, 0x80, 0x80}; !bytes.Equal(payload[marker:], want) {
		t.Fatalf("trailer = %x, want %x", payload[marker:], want)
	}
}

func TestSerializeTxTypedPrefix(t *testing.T) {
	to := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     1,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(3),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(4),
	})

	payload, marker, err := serializeTx(tx, big.NewInt(1))
	if err != nil {
		t.Fatalf("serializeTx failed: %v", err)
	}
	if payload[0] != types.DynamicFeeTxType {
		t.Fatalf("payload[0] = %#x, want type prefix %#x", payload[0], types.DynamicFeeTxType)
	}
	if marker != 0 {
		t.Fatalf("marker = %d, want 0 for typed transactions", marker)
	}
}

func TestSignTransaction(t *testing.T) {
	reply := make([]byte, 65)
	reply[0] = 0x1c // recovery byte
	for i := 1; i < 65; i++ {
		reply[i] = byte(i)
	}

	tr := &recordingTransport{replies: [][]byte{append(reply, 0x90, 0x00)}}
	d := newTestDevice(tr)

	to := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	})

	sig, err := d.SignTransaction(context.Background(), "m/44'/60'/0'/0/0", tx, big.NewInt(1))
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if sig.V != "1c" {
		t.Errorf("V = %q, want 1c", sig.V)
	}
	if !bytes.Equal(sig.R, reply[1:33]) || !bytes.Equal(sig.S, reply[33:65]) {
		t.Errorf("R/S mismatch: r=%x s=%x", sig.R, sig.S)
	}
	if len(tr.sent) != 1 {
		t.Errorf("exchanges = %d, want 1 for a small transaction", len(tr.sent))
	}
	// Header must start with the 5-index derivation path.
	if data := dataOf(t, tr.sent[0]); data[0] != 5 {
		t.Errorf("path count = %d, want 5", data[0])
	}
}

func TestSignTransactionRemapsIncorrectData(t *testing.T) {
	tr := &recordingTransport{replies: [][]byte{{0x6a, 0x80}}}
	d := newTestDevice(tr)

	to := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	})

	_, err := d.SignTransaction(context.Background(), "m/44'/60'/0'/0/0", tx, big.NewInt(1))
	if !errors.Is(err, ErrBlindSigningDisabled) {
		t.Fatalf("err = %v, want ErrBlindSigningDisabled", err)
	}
}

func TestSignPersonalMessageHeader(t *testing.T) {
	reply := make([]byte, 65)
	reply[0] = 0x01
	tr := &recordingTransport{replies: [][]byte{append(reply, 0x90, 0x00)}}
	d := newTestDevice(tr)

	msg := []byte("hello hardware")
	sig, err := d.SignPersonalMessage(context.Background(), "m/0", msg)
	if err != nil {
		t.Fatalf("SignPersonalMessage failed: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("sig = %d bytes, want 65", len(sig))
	}
	if sig[64] != 28 {
		t.Errorf("v = %d, want 28", sig[64])
	}

	data := dataOf(t, tr.sent[0])
	// path count(1) + index(4) + message length(4) + message
	if data[0] != 1 {
		t.Errorf("path count = %d, want 1", data[0])
	}
	wantLen := []byte{0, 0, 0, byte(len(msg))}
	if !bytes.Equal(data[5:9], wantLen) {
		t.Errorf("length header = %x, want %x", data[5:9], wantLen)
	}
	if !bytes.Equal(data[9:], msg) {
		t.Errorf("message = %q", data[9:])
	}
}

func TestParseAppInfo(t *testing.T) {
	data := []byte{0x01, 0x08}
	data = append(data, []byte("Ethereum")...)
	data = append(data, 0x05)
	data = append(data, []byte("1.9.2")...)

	name, version, err := parseAppInfo(data)
	if err != nil {
		t.Fatalf("parseAppInfo failed: %v", err)
	}
	if name != "Ethereum" || version != "1.9.2" {
		t.Fatalf("got %q %q", name, version)
	}

	if _, _, err := parseAppInfo([]byte{0x01}); err == nil {
		t.Fatal("expected error for truncated response")
	}
}

func TestParseAddressReply(t *testing.T) {
	pub := make([]byte, 65)
	pub[0] = 0x04
	addr := "00112233445566778899aabbccddeeff00112233"
	chainCode := make([]byte, 32)
	for i := range chainCode {
		chainCode[i] = byte(i)
	}

	var reply []byte
	reply = append(reply, byte(len(pub)))
	reply = append(reply, pub...)
	reply = append(reply, byte(len(addr)))
	reply = append(reply, addr...)
	reply = append(reply, chainCode...)

	got, err := parseAddressReply(reply)
	if err != nil {
		t.Fatalf("parseAddressReply failed: %v", err)
	}
	if !bytes.Equal(got.PublicKey, pub) {
		t.Errorf("public key mismatch")
	}
	if got.Address != common.HexToAddress(addr) {
		t.Errorf("address = %s", got.Address)
	}
	if !bytes.Equal(got.ChainCode, chainCode) {
		t.Errorf("chain code mismatch")
	}
}
