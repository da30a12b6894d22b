package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/keycard-tech/hwlink/apdu"
	"github.com/rs/zerolog/log"
)

// ErrBlindSigningDisabled is the incorrect-data rejection remapped for
// transaction-related exchanges: the usual cause is blind signing being
// disabled in the device app settings.
var ErrBlindSigningDisabled = errors.New("ledger: invalid transaction data (blind signing disabled on the device?)")

// Signature is the device's answer to a signing command. V is hex without a
// 0x prefix, always an even number of digits.
type Signature struct {
	V string
	R []byte
	S []byte
}

// SignTransaction streams the serialized transaction to the device in
// 150-byte chunks and post-processes the returned recovery byte into v.
func (d *Device) SignTransaction(ctx context.Context, path string, tx *types.Transaction, chainID *big.Int) (*Signature, error) {
	header, err := parsePath(path)
	if err != nil {
		log.Error().Err(err).Msgf("ledger: SignTransaction: bad path %s", path)
		return nil, err
	}

	payload, markerOffset, err := serializeTx(tx, chainID)
	if err != nil {
		log.Error().Err(err).Msg("ledger: SignTransaction: failed to serialize transaction")
		return nil, err
	}

	var reply []byte
	err = d.ch.Atomic(ctx, func(ctx context.Context) error {
		reply, err = d.sendChunked(ctx, chunkSpec{
			apdu:    SIGN_TX_APDU,
			header:  header,
			payload: payload,
			budget:  txChunkSize,
			avoid:   markerOffset,
		})
		return err
	})
	if err != nil {
		return nil, remapTxStatus(err)
	}

	if len(reply) < 65 {
		return nil, fmt.Errorf("ledger: signature reply too short: %d bytes", len(reply))
	}

	return &Signature{
		V: recoveryV(reply[0], chainID, tx.Type() != types.LegacyTxType),
		R: append([]byte(nil), reply[1:33]...),
		S: append([]byte(nil), reply[33:65]...),
	}, nil
}

// serializeTx produces the byte stream the device parses, plus the offset of
// the legacy replay-protection marker (0 when there is none). Legacy
// transactions carry the chainId,0,0 trailer; typed transactions are
// prefixed with their type byte.
func serializeTx(tx *types.Transaction, chainID *big.Int) ([]byte, int, error) {
	switch tx.Type() {
	case types.LegacyTxType:
		payload, err := rlp.EncodeToBytes([]interface{}{
			tx.Nonce(),
			tx.GasPrice(),
			tx.Gas(),
			tx.To(),
			tx.Value(),
			tx.Data(),
			chainID, uint(0), uint(0),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to RLP encode transaction: %v", err)
		}
		encodedChainID, err := rlp.EncodeToBytes(chainID)
		if err != nil {
			return nil, 0, err
		}
		// Marker = the chainId element of the trailer, followed by the two
		// single-byte zero elements.
		return payload, len(payload) - len(encodedChainID) - 2, nil

	case types.AccessListTxType:
		payload, err := rlp.EncodeToBytes([]interface{}{
			chainID,
			tx.Nonce(),
			tx.GasPrice(),
			tx.Gas(),
			tx.To(),
			tx.Value(),
			tx.Data(),
			tx.AccessList(),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to RLP encode transaction: %v", err)
		}
		return append([]byte{types.AccessListTxType}, payload...), 0, nil

	case types.DynamicFeeTxType:
		payload, err := rlp.EncodeToBytes([]interface{}{
			chainID,
			tx.Nonce(),
			tx.GasTipCap(),
			tx.GasFeeCap(),
			tx.Gas(),
			tx.To(),
			tx.Value(),
			tx.Data(),
			tx.AccessList(),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to RLP encode transaction: %v", err)
		}
		return append([]byte{types.DynamicFeeTxType}, payload...), 0, nil

	default:
		return nil, 0, fmt.Errorf("unsupported transaction type: %d", tx.Type())
	}
}

// recoveryV derives the hex v value from the device's single recovery byte.
// When 2*chainId+35+1 does not fit a byte, the recovery byte is reduced to
// its parity against the truncated one-byte chain-id computation.
func recoveryV(recovery byte, chainID *big.Int, typed bool) string {
	var v string

	if chainID == nil {
		chainID = new(big.Int)
	}
	limit := new(big.Int).Lsh(chainID, 1) // 2*chainId + 35 + 1
	limit.Add(limit, big.NewInt(36))

	if limit.Cmp(big.NewInt(255)) > 0 {
		oneByteChainID := byte((chainIDTruncated(chainID)*2 + 35) % 256)
		parity := int(recovery) - int(oneByteChainID)
		if parity < 0 {
			parity = -parity
		}
		parity %= 2

		if typed {
			v = strconv.FormatInt(int64(parity), 16)
		} else {
			full := new(big.Int).Lsh(chainID, 1)
			full.Add(full, big.NewInt(35+int64(parity)))
			v = full.Text(16)
		}
	} else {
		v = strconv.FormatUint(uint64(recovery), 16)
	}

	if len(v)%2 == 1 {
		v = "0" + v
	}
	return v
}

// chainIDTruncated keeps the 4 most significant bytes of the chain id, the
// same truncation the device applies.
func chainIDTruncated(chainID *big.Int) uint32 {
	b := chainID.Bytes()
	if len(b) > 4 {
		b = b[:4]
	}
	var out uint32
	for _, x := range b {
		out = out<<8 | uint32(x)
	}
	return out
}

// remapTxStatus specializes the incorrect-data status for transaction
// exchanges.
func remapTxStatus(err error) error {
	var se *apdu.StatusError
	if errors.As(err, &se) && se.Status == apdu.StatusIncorrectData {
		return fmt.Errorf("%w: %v", ErrBlindSigningDisabled, err)
	}
	return err
}
