package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog/log"
)

// SignPersonalMessage streams a personal-sign message to the device: the
// first chunk carries the derivation path and the 4-byte big-endian message
// length. The returned signature is r||s||v, v normalized to 27/28.
func (d *Device) SignPersonalMessage(ctx context.Context, path string, message []byte) ([]byte, error) {
	header, err := parsePath(path)
	if err != nil {
		log.Error().Err(err).Msgf("ledger: SignPersonalMessage: bad path %s", path)
		return nil, err
	}

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(message)))
	header = append(header, lengthBytes...)

	var reply []byte
	err = d.ch.Atomic(ctx, func(ctx context.Context) error {
		reply, err = d.sendChunked(ctx, chunkSpec{
			apdu:    SIGN_PERSONAL_APDU,
			header:  header,
			payload: message,
			budget:  messageChunkSize,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return vrsToSignature(reply)
}

// SignEIP712Hashed signs the legacy EIP-712 form: the caller supplies the
// already-computed domain separator and message hashes.
func (d *Device) SignEIP712Hashed(ctx context.Context, path string, domainHash, messageHash []byte) ([]byte, error) {
	if len(domainHash) != 32 || len(messageHash) != 32 {
		return nil, fmt.Errorf("ledger: SignEIP712Hashed: hashes must be 32 bytes")
	}

	header, err := parsePath(path)
	if err != nil {
		log.Error().Err(err).Msgf("ledger: SignEIP712Hashed: bad path %s", path)
		return nil, err
	}

	payload := make([]byte, 0, 64)
	payload = append(payload, domainHash...)
	payload = append(payload, messageHash...)

	var reply []byte
	err = d.ch.Atomic(ctx, func(ctx context.Context) error {
		reply, err = d.sendChunked(ctx, chunkSpec{
			apdu:    SIGN_EIP712_APDU,
			header:  header,
			payload: payload,
			budget:  messageChunkSize,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return vrsToSignature(reply)
}

// SignTypedData hashes the typed data host-side and delegates to
// SignEIP712Hashed. Devices without full structured-data support render only
// the two hashes.
func (d *Device) SignTypedData(ctx context.Context, path string, td apitypes.TypedData) ([]byte, error) {
	_, raw, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		log.Error().Err(err).Msg("ledger: SignTypedData: failed to hash typed data")
		return nil, err
	}
	// raw is "\x19\x01" | domainHash | messageHash.
	return d.SignEIP712Hashed(ctx, path, []byte(raw[2:34]), []byte(raw[34:66]))
}

// SignGenericMessage streams an arbitrary message (e.g. a PSBT) at the large
// 255-byte budget with a 4-byte length header. The reply is returned as-is.
func (d *Device) SignGenericMessage(ctx context.Context, path string, message []byte) ([]byte, error) {
	header, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(message)))
	header = append(header, lengthBytes...)

	var reply []byte
	err = d.ch.Atomic(ctx, func(ctx context.Context) error {
		reply, err = d.sendChunked(ctx, chunkSpec{
			apdu:    SIGN_GENERIC_APDU,
			header:  header,
			payload: message,
			budget:  genericChunkSize,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// vrsToSignature converts the device's v(1)|r(32)|s(32) reply into the
// conventional r||s||v layout.
func vrsToSignature(reply []byte) ([]byte, error) {
	if len(reply) < 65 {
		return nil, fmt.Errorf("ledger: signature reply too short: %d bytes", len(reply))
	}

	var sig []byte
	sig = append(sig, reply[1:65]...) // R + S
	sig = append(sig, reply[0])       // V

	if sig[64] == 0 || sig[64] == 1 {
		sig[64] += 27
	}
	return sig, nil
}
