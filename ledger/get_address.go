package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Address is the device's answer to an address retrieval.
type Address struct {
	PublicKey []byte
	Address   common.Address
	ChainCode []byte
}

// GetAddress retrieves the public key and address for a derivation path in
// one unchunked exchange. With confirm set, the device displays the address
// and waits for the user before answering.
func (d *Device) GetAddress(ctx context.Context, path string, confirm bool) (*Address, error) {
	data, err := parsePath(path)
	if err != nil {
		log.Error().Err(err).Msgf("ledger: GetAddress: bad path %s", path)
		return nil, err
	}

	p1 := byte(0x00)
	if confirm {
		p1 = 0x01
	}

	var reply []byte
	err = d.ch.Atomic(ctx, func(ctx context.Context) error {
		reply, err = d.ch.Send(ctx, GET_ADDRESS_APDU.cla, GET_ADDRESS_APDU.ins, p1, GET_ADDRESS_APDU.p2, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return parseAddressReply(reply)
}

// parseAddressReply decodes keyLen(1) | key | addrLen(1) | addr(ascii hex)
// | chainCode(32, optional).
func parseAddressReply(reply []byte) (*Address, error) {
	if len(reply) < 1 {
		return nil, fmt.Errorf("ledger: empty address reply")
	}
	keyLen := int(reply[0])
	if len(reply) < 1+keyLen+1 {
		return nil, fmt.Errorf("ledger: address reply too short for public key")
	}
	out := &Address{PublicKey: append([]byte(nil), reply[1:1+keyLen]...)}

	addrStart := 1 + keyLen
	addrLen := int(reply[addrStart])
	if len(reply) < addrStart+1+addrLen {
		return nil, fmt.Errorf("ledger: address reply too short for address")
	}
	hexAddr := string(reply[addrStart+1 : addrStart+1+addrLen])
	if !common.IsHexAddress(hexAddr) {
		return nil, fmt.Errorf("ledger: malformed address in reply: %q", hexAddr)
	}
	out.Address = common.HexToAddress(hexAddr)

	rest := reply[addrStart+1+addrLen:]
	if len(rest) >= 32 {
		out.ChainCode = append([]byte(nil), rest[:32]...)
	}
	return out, nil
}
