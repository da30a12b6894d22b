package eip712

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/keycard-tech/hwlink/apdu"
	"github.com/keycard-tech/hwlink/channel"
	"github.com/rs/zerolog/log"
)

const (
	cla = 0xe0

	insStructDef  = 0x1a
	insStructImpl = 0x1c
	insFiltering  = 0x1e

	p2Name  = 0x00 // struct definition: type name
	p2Field = 0xff // struct definition and implementation: field
	p2Root  = 0x00 // struct implementation: root struct
	p2Array = 0x0f // struct implementation: array record

	p2FilterActivate     = 0x00
	p2FilterContractName = 0x0f
	p2FilterShowField    = 0xff

	p1Complete = 0x00
	p1Partial  = 0x01
)

const domainTypeName = "EIP712Domain"

// ErrNotImplemented marks the one-shot legacy definition entry point. The
// flow it belonged to was never finished device-side; callers must use the
// incremental definition phase instead.
var ErrNotImplemented = errors.New("eip712: one-shot definition is not supported, use the incremental flow")

// Filter annotates one field path with a display label and its signature.
type Filter struct {
	Path      string
	Label     string
	Signature []byte
}

// Transmitter drives the two-phase structured-data protocol over one
// channel.
type Transmitter struct {
	ch           *channel.Channel
	filters      map[string]Filter
	contractName *Filter
}

func NewTransmitter(ch *channel.Channel) *Transmitter {
	return &Transmitter{ch: ch, filters: make(map[string]Filter)}
}

// RegisterFilter adds a per-field display filter. At most one filter matches
// a field: a second filter for the same path replaces the first.
func (t *Transmitter) RegisterFilter(f Filter) {
	t.filters[f.Path] = f
}

// SetContractName sets the one-shot contract-name preamble record.
func (t *Transmitter) SetContractName(label string, signature []byte) {
	t.contractName = &Filter{Label: label, Signature: signature}
}

// SendDefinitionsOneShot is the legacy single-message definition entry
// point. It is intentionally unsupported and fails immediately instead of
// hanging.
func (t *Transmitter) SendDefinitionsOneShot(ctx context.Context, td apitypes.TypedData) error {
	return ErrNotImplemented
}

// Send teaches the device the full message: the type graph of the domain
// and of the primary type, then the domain and message values depth-first.
// The whole sequence is one atomic operation on the channel.
func (t *Transmitter) Send(ctx context.Context, td apitypes.TypedData) error {
	types, err := resolveTypes(td.Types)
	if err != nil {
		return err
	}

	domainTree, err := buildTree(types, domainTypeName, map[string]interface{}(td.Domain.Map()), "")
	if err != nil {
		return fmt.Errorf("eip712: domain: %w", err)
	}
	messageTree, err := buildTree(types, td.PrimaryType, map[string]interface{}(td.Message), "")
	if err != nil {
		return fmt.Errorf("eip712: message: %w", err)
	}

	return t.ch.Atomic(ctx, func(ctx context.Context) error {
		if err := t.sendDefinitions(ctx, types, domainTypeName); err != nil {
			return err
		}
		if err := t.sendDefinitions(ctx, types, td.PrimaryType); err != nil {
			return err
		}
		if err := t.sendPreamble(ctx); err != nil {
			return err
		}
		if err := t.sendImplementation(ctx, domainTypeName, domainTree); err != nil {
			return err
		}
		return t.sendImplementation(ctx, td.PrimaryType, messageTree)
	})
}

// sendDefinitions streams the struct definitions reachable from root in
// depth-first preorder: for each type its name, then its fields in
// declaration order.
func (t *Transmitter) sendDefinitions(ctx context.Context, types map[string]*resolvedType, root string) error {
	order, err := definitionOrder(types, root)
	if err != nil {
		return err
	}
	for _, name := range order {
		if _, err := t.ch.Send(ctx, cla, insStructDef, p1Complete, p2Name, []byte(name)); err != nil {
			log.Error().Err(err).Msgf("eip712: struct definition rejected for %s", name)
			return err
		}
		for _, f := range types[name].fields {
			record, err := encodeFieldDef(f)
			if err != nil {
				return err
			}
			if _, err := t.ch.Send(ctx, cla, insStructDef, p1Complete, p2Field, record); err != nil {
				log.Error().Err(err).Msgf("eip712: field definition rejected for %s.%s", name, f.name)
				return err
			}
		}
	}
	return nil
}

// sendPreamble emits the one-shot activation and contract-name records.
func (t *Transmitter) sendPreamble(ctx context.Context) error {
	if len(t.filters) == 0 && t.contractName == nil {
		return nil
	}
	if _, err := t.ch.Send(ctx, cla, insFiltering, p1Complete, p2FilterActivate, nil); err != nil {
		return err
	}
	if t.contractName != nil {
		if _, err := t.ch.Send(ctx, cla, insFiltering, p1Complete, p2FilterContractName, encodeFilter(*t.contractName)); err != nil {
			return err
		}
	}
	return nil
}

// sendImplementation sends the root record, then walks the value tree.
func (t *Transmitter) sendImplementation(ctx context.Context, rootType string, tree *node) error {
	if _, err := t.ch.Send(ctx, cla, insStructImpl, p1Complete, p2Root, []byte(rootType)); err != nil {
		return err
	}
	return t.walk(ctx, tree)
}

func (t *Transmitter) walk(ctx context.Context, n *node) error {
	switch {
	case n.array:
		if _, err := t.ch.Send(ctx, cla, insStructImpl, p1Complete, p2Array, []byte{byte(len(n.children))}); err != nil {
			return err
		}
		for _, child := range n.children {
			if err := t.walk(ctx, child); err != nil {
				return err
			}
		}
		return nil

	case n.composite:
		for _, child := range n.children {
			if err := t.walk(ctx, child); err != nil {
				return err
			}
		}
		return nil

	default:
		if f, ok := t.filters[n.path]; ok {
			if _, err := t.ch.Send(ctx, cla, insFiltering, p1Complete, p2FilterShowField, encodeFilter(f)); err != nil {
				return err
			}
		}
		return t.sendFieldValue(ctx, n.value)
	}
}

// sendFieldValue emits one field record: the 16-bit value length as two
// single bytes, then the value, split into partial sends when it exceeds
// one exchange.
func (t *Transmitter) sendFieldValue(ctx context.Context, value []byte) error {
	record := make([]byte, 0, 2+len(value))
	record = append(record, byte(len(value)/256), byte(len(value)%256))
	record = append(record, value...)

	for len(record) > 0 {
		take := len(record)
		p1 := byte(p1Complete)
		if take > apdu.MaxDataLen {
			take = apdu.MaxDataLen
			p1 = p1Partial
		}
		if _, err := t.ch.Send(ctx, cla, insStructImpl, p1, p2Field, record[:take]); err != nil {
			return err
		}
		record = record[take:]
	}
	return nil
}

// encodeFieldDef serializes one struct-definition field record.
func encodeFieldDef(f resolvedField) ([]byte, error) {
	desc := f.typ.Kind.key()
	if len(f.typ.Arrays) > 0 {
		desc |= 0x80
	}
	if f.typ.HasSize {
		desc |= 0x40
	}

	out := []byte{desc}
	if f.typ.Kind == KindCustom {
		if len(f.typ.Custom) > 255 {
			return nil, fmt.Errorf("eip712: type name too long: %q", f.typ.Custom)
		}
		out = append(out, byte(len(f.typ.Custom)))
		out = append(out, f.typ.Custom...)
	}
	if f.typ.HasSize {
		out = append(out, byte(f.typ.Size))
	}
	if len(f.typ.Arrays) > 0 {
		out = append(out, byte(len(f.typ.Arrays)))
		for _, a := range f.typ.Arrays {
			if a.Fixed {
				out = append(out, 0x01, byte(a.Size))
			} else {
				out = append(out, 0x00)
			}
		}
	}
	if len(f.name) > 255 {
		return nil, fmt.Errorf("eip712: field name too long: %q", f.name)
	}
	out = append(out, byte(len(f.name)))
	out = append(out, f.name...)
	return out, nil
}

// encodeFilter serializes a display-filter record: label and signature, each
// length-prefixed.
func encodeFilter(f Filter) []byte {
	out := make([]byte, 0, 2+len(f.Label)+len(f.Signature))
	out = append(out, byte(len(f.Label)))
	out = append(out, f.Label...)
	out = append(out, byte(len(f.Signature)))
	out = append(out, f.Signature...)
	return out
}
