package eip712

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		desc string
		want FieldType
	}{
		{"address", FieldType{Kind: KindAddress}},
		{"bool", FieldType{Kind: KindBool}},
		{"string", FieldType{Kind: KindString}},
		{"bytes", FieldType{Kind: KindBytes}},
		{"bytes32", FieldType{Kind: KindBytes, HasSize: true, Size: 32}},
		{"uint256", FieldType{Kind: KindUint, HasSize: true, Size: 32}},
		{"uint8", FieldType{Kind: KindUint, HasSize: true, Size: 1}},
		{"int64", FieldType{Kind: KindInt, HasSize: true, Size: 8}},
		{"uint", FieldType{Kind: KindUint, HasSize: true, Size: 32}},
		{"Person", FieldType{Kind: KindCustom, Custom: "Person"}},
		{"Person[]", FieldType{Kind: KindCustom, Custom: "Person", Arrays: []ArraySize{{Fixed: false}}}},
		{"uint8[4]", FieldType{Kind: KindUint, HasSize: true, Size: 1, Arrays: []ArraySize{{Fixed: true, Size: 4}}}},
		{"uint8[4][]", FieldType{Kind: KindUint, HasSize: true, Size: 1, Arrays: []ArraySize{{Fixed: true, Size: 4}, {Fixed: false}}}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := parseFieldType(tt.desc)
			if err != nil {
				t.Fatalf("parseFieldType(%q) failed: %v", tt.desc, err)
			}
			if got.Kind != tt.want.Kind || got.Custom != tt.want.Custom ||
				got.HasSize != tt.want.HasSize || got.Size != tt.want.Size ||
				len(got.Arrays) != len(tt.want.Arrays) {
				t.Fatalf("parseFieldType(%q) = %+v, want %+v", tt.desc, got, tt.want)
			}
			for i := range got.Arrays {
				if got.Arrays[i] != tt.want.Arrays[i] {
					t.Fatalf("parseFieldType(%q) arrays = %+v, want %+v", tt.desc, got.Arrays, tt.want.Arrays)
				}
			}
		})
	}
}

func TestParseFieldTypeRejects(t *testing.T) {
	for _, desc := range []string{"uint7", "uint0", "int257", "bytes33", "bytes0", "[]", "uint8[-1]"} {
		if _, err := parseFieldType(desc); err == nil {
			t.Errorf("parseFieldType(%q) succeeded, want error", desc)
		}
	}
}

func TestResolveTypesUnresolved(t *testing.T) {
	types := apitypes.Types{
		"Mail": []apitypes.Type{
			{Name: "from", Type: "Person"},
		},
	}
	_, err := resolveTypes(types)
	if !errors.Is(err, ErrUnresolvedType) {
		t.Fatalf("err = %v, want ErrUnresolvedType", err)
	}
}

func TestDefinitionOrder(t *testing.T) {
	types := apitypes.Types{
		"Mail": []apitypes.Type{
			{Name: "from", Type: "Person"},
			{Name: "to", Type: "Person"},
			{Name: "attachments", Type: "Attachment[]"},
		},
		"Person": []apitypes.Type{
			{Name: "wallet", Type: "address"},
		},
		"Attachment": []apitypes.Type{
			{Name: "data", Type: "bytes"},
		},
	}
	resolved, err := resolveTypes(types)
	if err != nil {
		t.Fatalf("resolveTypes failed: %v", err)
	}

	order, err := definitionOrder(resolved, "Mail")
	if err != nil {
		t.Fatalf("definitionOrder failed: %v", err)
	}
	want := []string{"Mail", "Person", "Attachment"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEncodeInteger(t *testing.T) {
	tests := []struct {
		name  string
		typ   FieldType
		value interface{}
		want  []byte
	}{
		{"uint8", FieldType{Kind: KindUint, HasSize: true, Size: 1}, "255", []byte{0xff}},
		{"uint16 padded", FieldType{Kind: KindUint, HasSize: true, Size: 2}, "5", []byte{0x00, 0x05}},
		{"hex input", FieldType{Kind: KindUint, HasSize: true, Size: 2}, "0x0102", []byte{0x01, 0x02}},
		{"float64 input", FieldType{Kind: KindUint, HasSize: true, Size: 1}, float64(7), []byte{0x07}},
		{"negative int8", FieldType{Kind: KindInt, HasSize: true, Size: 1}, "-1", []byte{0xff}},
		{"negative int16", FieldType{Kind: KindInt, HasSize: true, Size: 2}, "-2", []byte{0xff, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeValue(tt.typ, tt.value)
			if err != nil {
				t.Fatalf("encodeValue failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %x, want %x", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %x, want %x", got, tt.want)
				}
			}
		})
	}

	if _, err := encodeValue(FieldType{Kind: KindUint, HasSize: true, Size: 1}, "256"); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := encodeValue(FieldType{Kind: KindUint, HasSize: true, Size: 1}, "-1"); err == nil {
		t.Error("expected negative-unsigned error")
	}
}
