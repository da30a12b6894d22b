package eip712

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// encodeValue encodes one primitive leaf per its kind and declared width.
// The switch is exhaustive over Kind; composite kinds never reach it.
func encodeValue(typ FieldType, value interface{}) ([]byte, error) {
	switch typ.Kind {
	case KindInt, KindUint:
		return encodeInteger(typ, value)

	case KindAddress:
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("eip712: bad address value %v", value)
		}
		return common.HexToAddress(s).Bytes(), nil

	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("eip712: bad bool value %v", value)
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil

	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("eip712: bad string value %v", value)
		}
		return []byte(s), nil

	case KindBytes:
		raw, err := coerceBytes(value)
		if err != nil {
			return nil, err
		}
		if typ.HasSize && len(raw) != typ.Size {
			return nil, fmt.Errorf("eip712: bytes%d value has %d bytes", typ.Size, len(raw))
		}
		return raw, nil

	case KindCustom:
		return nil, fmt.Errorf("eip712: custom type %q is not a primitive", typ.Custom)
	}
	return nil, fmt.Errorf("eip712: unsupported kind %d", typ.Kind)
}

// encodeInteger writes the value big-endian into exactly the declared width,
// two's complement for negative signed values.
func encodeInteger(typ FieldType, value interface{}) ([]byte, error) {
	n, err := coerceBig(value)
	if err != nil {
		return nil, err
	}

	size := typ.Size
	if size == 0 {
		size = 32
	}

	if n.Sign() < 0 {
		if typ.Kind == KindUint {
			return nil, fmt.Errorf("eip712: negative value for unsigned field")
		}
		// Two's complement within the declared width.
		mod := new(big.Int).Lsh(big.NewInt(1), uint(size*8))
		n = new(big.Int).Add(mod, n)
	}
	if n.BitLen() > size*8 {
		return nil, fmt.Errorf("eip712: value does not fit in %d bytes", size)
	}

	out := make([]byte, size)
	n.FillBytes(out)
	return out, nil
}

func coerceBig(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return v, nil
	case *math.HexOrDecimal256:
		return (*big.Int)(v), nil
	case string:
		s, radix := v, 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, radix = s[2:], 16
		}
		n, ok := new(big.Int).SetString(s, radix)
		if !ok {
			return nil, fmt.Errorf("eip712: bad integer value %q", v)
		}
		return n, nil
	case float64:
		return big.NewInt(int64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	}
	return nil, fmt.Errorf("eip712: bad integer value %v", value)
}

func coerceBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case string:
		raw, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("eip712: bad bytes value %q: %v", v, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("eip712: bad bytes value %v", value)
}
