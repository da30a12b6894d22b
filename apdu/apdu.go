// Package apdu defines the command/response encoding shared by every
// exchange with the device and the taxonomy of device status words.
package apdu

import (
	"errors"
)

// MaxDataLen is the largest payload a single command can carry: the length
// field on the wire is one byte.
const MaxDataLen = 255

// ErrDataTooLarge means a caller tried to push more than MaxDataLen bytes
// into one exchange. This is a programming error, never retried.
var ErrDataTooLarge = errors.New("apdu: command data exceeds 255 bytes")

// Command is one raw instruction for the device.
type Command struct {
	Cla  byte
	Ins  byte
	P1   byte
	P2   byte
	Data []byte
}

// Bytes serializes the command as cla|ins|p1|p2|len|data.
func (c Command) Bytes() ([]byte, error) {
	if len(c.Data) > MaxDataLen {
		return nil, ErrDataTooLarge
	}
	out := make([]byte, 0, 5+len(c.Data))
	out = append(out, c.Cla, c.Ins, c.P1, c.P2, byte(len(c.Data)))
	return append(out, c.Data...), nil
}
