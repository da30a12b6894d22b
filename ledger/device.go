// Package ledger implements the device command set on top of a channel:
// address retrieval, transaction/message signing, firmware and database
// loading. Commands larger than one exchange are split by the chunked
// encoder in chunk.go.
package ledger

import (
	"github.com/keycard-tech/hwlink/channel"
)

// APDU identifies one device instruction.
type APDU struct {
	cla byte
	ins byte
	p1  byte
	p2  byte
}

var GET_ADDRESS_APDU = APDU{0xe0, 0x02, 0x00, 0x01}
var SIGN_TX_APDU = APDU{0xe0, 0x04, 0x00, 0x00}
var SIGN_PERSONAL_APDU = APDU{0xe0, 0x08, 0x00, 0x00}
var SIGN_EIP712_APDU = APDU{0xe0, 0x0c, 0x00, 0x00}
var SIGN_GENERIC_APDU = APDU{0xe0, 0x16, 0x00, 0x00}
var LOAD_FIRMWARE_APDU = APDU{0xe0, 0x3a, 0x00, 0x00}
var LOAD_DATABASE_APDU = APDU{0xe0, 0x3c, 0x00, 0x00}
var GET_INFO_APDU = APDU{0xb0, 0x01, 0x00, 0x00}
var QUIT_APP_APDU = APDU{0xb0, 0xa7, 0x00, 0x00}
var LAUNCH_APP_APDU = APDU{0xe0, 0xd8, 0x00, 0x00}
var GET_DEVICE_NAME_APDU = APDU{0xe0, 0xd2, 0x00, 0x00}

// Per-exchange payload budgets. These are device-protocol constants; a
// different value desynchronizes the device-side reconstruction.
const (
	txChunkSize       = 150
	messageChunkSize  = 150
	genericChunkSize  = 255
	firmwareChunkSize = 244
	databaseChunkSize = 240
)

// Device drives one connected device through its exchange channel.
type Device struct {
	ch *channel.Channel
}

func New(ch *channel.Channel) *Device {
	return &Device{ch: ch}
}

// Channel exposes the underlying exchange channel, e.g. for timeout
// configuration or event subscription.
func (d *Device) Channel() *channel.Channel {
	return d.ch
}
