package ledger

import (
	"context"

	"github.com/rs/zerolog/log"
)

const (
	p1First = 0x00
	p1More  = 0x80
)

// chunkSpec describes one chunked command sequence.
type chunkSpec struct {
	apdu    APDU
	header  []byte // sent once, in front of the first chunk
	payload []byte
	budget  int // per-exchange data budget, header included on the first

	// avoid is an offset in payload that no chunk boundary may land on or
	// cross into a separate chunk. When the computed boundary reaches it,
	// the chunk is extended to consume the remainder in one step. Zero
	// disables the rule.
	avoid int

	// progress, when set, is called after every exchange with the number of
	// payload bytes just transferred.
	progress func(n int)
}

// sendChunked issues the ordered exchange sequence for spec and returns the
// reply of the final exchange. It must run inside the channel's atomic
// guard: the whole sequence is one logical operation. An empty payload still
// issues exactly one header-only exchange.
func (d *Device) sendChunked(ctx context.Context, spec chunkSpec) ([]byte, error) {
	var reply []byte
	offset := 0
	first := true

	for {
		space := spec.budget
		p1 := byte(p1More)
		if first {
			space -= len(spec.header)
			p1 = spec.apdu.p1
		}

		if space < 0 {
			space = 0
		}
		take := len(spec.payload) - offset
		if take > space {
			take = space
		}
		if spec.avoid > 0 && offset+take >= spec.avoid {
			take = len(spec.payload) - offset
		}

		var data []byte
		if first {
			data = make([]byte, 0, len(spec.header)+take)
			data = append(data, spec.header...)
			data = append(data, spec.payload[offset:offset+take]...)
		} else {
			data = spec.payload[offset : offset+take]
		}

		r, err := d.ch.Send(ctx, spec.apdu.cla, spec.apdu.ins, p1, spec.apdu.p2, data)
		if err != nil {
			log.Error().Err(err).Msgf("ledger: chunked send failed at offset %d/%d", offset, len(spec.payload))
			return nil, err
		}
		reply = r
		offset += take
		first = false

		if spec.progress != nil {
			spec.progress(take)
		}
		if offset == len(spec.payload) {
			return reply, nil
		}
	}
}
