package ledger

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts"
)

// SerializePath encodes a derivation path as count(1) | index(4)*count, the
// header format every chunked command starts with.
func SerializePath(path accounts.DerivationPath) []byte {
	out := make([]byte, 1+4*len(path))
	out[0] = byte(len(path))
	for i, index := range path {
		binary.BigEndian.PutUint32(out[1+4*i:], index)
	}
	return out
}

// parsePath parses a path string like "m/44'/60'/0'/0/0" and serializes it.
func parsePath(path string) ([]byte, error) {
	dp, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}
	return SerializePath(dp), nil
}
