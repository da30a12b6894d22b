// Package transport provides concrete byte-exchange transports for the
// channel: a local USB HID connection and a remote websocket bridge.
package transport

import (
	"fmt"
	"sync"

	"github.com/google/gousb"
	"github.com/keycard-tech/hwlink/channel"
	"github.com/keycard-tech/hwlink/hid"
	"github.com/rs/zerolog/log"
)

// Vendor ids of supported devices.
const (
	VID_Ledger uint16 = 0x2c97
)

// DefaultChannelID is the link channel id used for HID exchanges.
const DefaultChannelID uint16 = 0x0101

// hidPacketSize is the report size of the devices this package drives.
const hidPacketSize = 64

// IsSupportedDevice reports whether a vendor/product pair is a device this
// package can talk to.
func IsSupportedDevice(vid, pid uint16) bool {
	return vid == VID_Ledger
}

// DeviceInfo identifies one enumerated candidate device.
type DeviceInfo struct {
	USB_ID  string
	Vendor  uint16
	Product uint16
}

// Enumerate lists connected supported devices.
func Enumerate() ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var infos []DeviceInfo
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsSupportedDevice(uint16(desc.Vendor), uint16(desc.Product))
	})
	for _, dev := range devices {
		infos = append(infos, DeviceInfo{
			USB_ID:  dev.String(),
			Vendor:  uint16(dev.Desc.Vendor),
			Product: uint16(dev.Desc.Product),
		})
		dev.Close()
	}
	if err != nil {
		log.Error().Err(err).Msg("transport: error opening devices")
		return infos, err
	}
	return infos, nil
}

// USBHID is a channel.Transport over a local HID connection. One Exchange is
// one full framed APDU round trip.
type USBHID struct {
	ctx       *gousb.Context
	device    *gousb.Device
	config    *gousb.Config
	intf      *gousb.Interface
	epIn      *gousb.InEndpoint
	epOut     *gousb.OutEndpoint
	channelID uint16
	notifier  *channel.Notifier

	mu     sync.Mutex
	closed bool
}

// OpenUSBHID opens the first supported device matching the filter. An empty
// usbID matches any supported device.
func OpenUSBHID(usbID string, notifier *channel.Notifier) (*USBHID, error) {
	ctx := gousb.NewContext()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsSupportedDevice(uint16(desc.Vendor), uint16(desc.Product))
	})
	if err != nil && len(devices) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("transport: error opening devices: %v", err)
	}

	var dev *gousb.Device
	for _, d := range devices {
		if dev == nil && (usbID == "" || d.String() == usbID) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: no supported device found")
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: %s.Config(1): %v", dev, err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: %s.Interface(0,0): %v", dev, err)
	}
	epOut, err := intf.OutEndpoint(1)
	if err == nil {
		var epIn *gousb.InEndpoint
		epIn, err = intf.InEndpoint(1)
		if err == nil {
			log.Debug().Msgf("transport: opened %s", dev)
			return &USBHID{
				ctx:       ctx,
				device:    dev,
				config:    cfg,
				intf:      intf,
				epIn:      epIn,
				epOut:     epOut,
				channelID: DefaultChannelID,
				notifier:  notifier,
			}, nil
		}
	}

	intf.Close()
	cfg.Close()
	dev.Close()
	ctx.Close()
	return nil, fmt.Errorf("transport: endpoints: %v", err)
}

// Exchange frames the command, streams the packets out and reassembles the
// response.
func (t *USBHID) Exchange(command []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport: device closed")
	}

	for _, packet := range hid.MakeFrames(t.channelID, hidPacketSize, command) {
		if _, err := t.epOut.Write(packet); err != nil {
			log.Error().Err(err).Msg("transport: error writing to device")
			t.notifier.Notify(channel.Event{Kind: channel.EventDisconnect, Err: err})
			return nil, err
		}
	}

	var state *hid.ReassemblyState
	buf := make([]byte, t.epIn.Desc.MaxPacketSize)
	for !state.Complete() {
		n, err := t.epIn.Read(buf)
		if err != nil {
			log.Error().Err(err).Msg("transport: error reading from device")
			t.notifier.Notify(channel.Event{Kind: channel.EventDisconnect, Err: err})
			return nil, err
		}
		state, err = hid.Reassemble(t.channelID, state, buf[:n])
		if err != nil {
			return nil, err
		}
	}
	return state.Data, nil
}

// Close releases the interface, configuration, device and context.
func (t *USBHID) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.intf.Close()
	t.config.Close()
	err := t.device.Close()
	t.ctx.Close()
	return err
}
