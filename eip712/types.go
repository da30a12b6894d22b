// Package eip712 implements the structured-data sub-protocol: the device is
// taught the type graph of an EIP-712 message, then fed every field value in
// declaration order so it can render and sign the exact structure. Messages
// are go-ethereum apitypes.TypedData values.
package eip712

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Kind is the closed enumeration of primitive kinds a field can have.
// Unknown type names are custom types and must resolve in the type map.
type Kind int

const (
	KindCustom Kind = iota
	KindInt
	KindUint
	KindAddress
	KindBool
	KindString
	KindBytes
)

// key is the wire value of the kind inside a struct-definition record.
func (k Kind) key() byte {
	switch k {
	case KindCustom:
		return 0
	case KindInt:
		return 1
	case KindUint:
		return 2
	case KindAddress:
		return 3
	case KindBool:
		return 4
	case KindString:
		return 5
	case KindBytes:
		return 6
	}
	return 0
}

// ErrUnresolvedType means a field references a custom type the supplied type
// map does not define.
var ErrUnresolvedType = errors.New("eip712: unresolved custom type")

// ArraySize is one array marker of a field type descriptor.
type ArraySize struct {
	Fixed bool
	Size  int
}

// FieldType is a decomposed field type descriptor: base kind, optional size
// and zero or more array markers, outermost first.
type FieldType struct {
	Kind    Kind
	Custom  string // type name when Kind == KindCustom
	HasSize bool
	Size    int // bytes: intN/uintN bit width / 8, bytesN length
	Arrays  []ArraySize
}

// parseFieldType decomposes a declared type like "uint256", "bytes32",
// "Person[]" or "uint8[4][]".
func parseFieldType(desc string) (FieldType, error) {
	var out FieldType

	base := desc
	var arrays []ArraySize
	for len(base) > 0 && base[len(base)-1] == ']' {
		start := strings.LastIndexByte(base, '[')
		if start < 0 {
			return out, fmt.Errorf("eip712: malformed type %q", desc)
		}
		inner := base[start+1 : len(base)-1]
		if inner == "" {
			arrays = append([]ArraySize{{Fixed: false}}, arrays...)
		} else {
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 || n > 255 {
				return out, fmt.Errorf("eip712: bad array size in %q", desc)
			}
			arrays = append([]ArraySize{{Fixed: true, Size: n}}, arrays...)
		}
		base = base[:start]
	}
	out.Arrays = arrays

	switch {
	case base == "address":
		out.Kind = KindAddress
	case base == "bool":
		out.Kind = KindBool
	case base == "string":
		out.Kind = KindString
	case base == "bytes":
		out.Kind = KindBytes
	case len(base) > 5 && base[:5] == "bytes":
		n, err := strconv.Atoi(base[5:])
		if err != nil || n < 1 || n > 32 {
			return out, fmt.Errorf("eip712: bad bytes width in %q", desc)
		}
		out.Kind = KindBytes
		out.HasSize = true
		out.Size = n
	case base == "int" || base == "uint":
		out.Kind = KindInt
		if base == "uint" {
			out.Kind = KindUint
		}
		out.HasSize = true
		out.Size = 32
	case len(base) > 3 && base[:3] == "int":
		n, err := strconv.Atoi(base[3:])
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return out, fmt.Errorf("eip712: bad int width in %q", desc)
		}
		out.Kind = KindInt
		out.HasSize = true
		out.Size = n / 8
	case len(base) > 4 && base[:4] == "uint":
		n, err := strconv.Atoi(base[4:])
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return out, fmt.Errorf("eip712: bad uint width in %q", desc)
		}
		out.Kind = KindUint
		out.HasSize = true
		out.Size = n / 8
	default:
		if base == "" {
			return out, fmt.Errorf("eip712: empty type in %q", desc)
		}
		out.Kind = KindCustom
		out.Custom = base
	}
	return out, nil
}

// resolvedField is one declared field with its parsed type.
type resolvedField struct {
	name string
	typ  FieldType
}

// resolvedType is one named type with fields in declaration order.
type resolvedType struct {
	name   string
	fields []resolvedField
}

// resolveTypes parses every declared type and verifies custom references.
func resolveTypes(types apitypes.Types) (map[string]*resolvedType, error) {
	out := make(map[string]*resolvedType, len(types))
	for name, fields := range types {
		rt := &resolvedType{name: name}
		for _, f := range fields {
			ft, err := parseFieldType(f.Type)
			if err != nil {
				return nil, err
			}
			rt.fields = append(rt.fields, resolvedField{name: f.Name, typ: ft})
		}
		out[name] = rt
	}
	for _, rt := range out {
		for _, f := range rt.fields {
			if f.typ.Kind == KindCustom {
				if _, ok := out[f.typ.Custom]; !ok {
					return nil, fmt.Errorf("%w: %q in %s.%s", ErrUnresolvedType, f.typ.Custom, rt.name, f.name)
				}
			}
		}
	}
	return out, nil
}

// definitionOrder returns the depth-first preorder of custom types reachable
// from root, deduplicated, root first.
func definitionOrder(types map[string]*resolvedType, root string) ([]string, error) {
	var order []string
	seen := make(map[string]bool)

	var walk func(name string) error
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		rt, ok := types[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnresolvedType, name)
		}
		seen[name] = true
		order = append(order, name)
		for _, f := range rt.fields {
			if f.typ.Kind == KindCustom {
				if err := walk(f.typ.Custom); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return order, nil
}
