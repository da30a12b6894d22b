package ledger

import (
	"context"
	"encoding/binary"

	"github.com/keycard-tech/hwlink/channel"
	"github.com/rs/zerolog/log"
)

// LoadFirmware transfers a firmware image in 244-byte chunks. A progress
// event is emitted after every chunk with the bytes just transferred.
func (d *Device) LoadFirmware(ctx context.Context, image []byte) error {
	return d.load(ctx, LOAD_FIRMWARE_APDU, firmwareChunkSize, image)
}

// LoadDatabase transfers a database blob in 240-byte chunks, with the same
// progress reporting as LoadFirmware.
func (d *Device) LoadDatabase(ctx context.Context, blob []byte) error {
	return d.load(ctx, LOAD_DATABASE_APDU, databaseChunkSize, blob)
}

func (d *Device) load(ctx context.Context, ap APDU, budget int, blob []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(blob)))

	log.Debug().Msgf("ledger: loading %d bytes in chunks of %d", len(blob), budget)

	return d.ch.Atomic(ctx, func(ctx context.Context) error {
		_, err := d.sendChunked(ctx, chunkSpec{
			apdu:    ap,
			header:  header,
			payload: blob,
			budget:  budget,
			progress: func(n int) {
				d.ch.Notifier().Notify(channel.Event{Kind: channel.EventProgress, Bytes: n})
			},
		})
		return err
	})
}
