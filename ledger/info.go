package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AppInfo describes the application currently running on the device.
type AppInfo struct {
	Name    string
	Version string
}

// GetAppInfo asks the device which application is running.
func (d *Device) GetAppInfo(ctx context.Context) (*AppInfo, error) {
	var reply []byte
	err := d.ch.Atomic(ctx, func(ctx context.Context) error {
		var err error
		reply, err = d.ch.Send(ctx, GET_INFO_APDU.cla, GET_INFO_APDU.ins, GET_INFO_APDU.p1, GET_INFO_APDU.p2, nil)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("ledger: GetAppInfo failed")
		return nil, err
	}
	name, version, err := parseAppInfo(reply)
	if err != nil {
		return nil, err
	}
	return &AppInfo{Name: name, Version: version}, nil
}

// GetDeviceName reads the user-assigned device name.
func (d *Device) GetDeviceName(ctx context.Context) (string, error) {
	var reply []byte
	err := d.ch.Atomic(ctx, func(ctx context.Context) error {
		var err error
		reply, err = d.ch.Send(ctx, GET_DEVICE_NAME_APDU.cla, GET_DEVICE_NAME_APDU.ins, GET_DEVICE_NAME_APDU.p1, GET_DEVICE_NAME_APDU.p2, nil)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("ledger: GetDeviceName failed")
		return "", err
	}
	return string(reply), nil
}

// LaunchApp asks the dashboard to start the named application. The device
// re-enumerates afterwards; the caller owns the reconnect.
func (d *Device) LaunchApp(ctx context.Context, name string) error {
	return d.ch.Atomic(ctx, func(ctx context.Context) error {
		_, err := d.ch.Send(ctx, LAUNCH_APP_APDU.cla, LAUNCH_APP_APDU.ins, LAUNCH_APP_APDU.p1, LAUNCH_APP_APDU.p2, []byte(name))
		return err
	})
}

// QuitApp returns the device to its dashboard.
func (d *Device) QuitApp(ctx context.Context) error {
	return d.ch.Atomic(ctx, func(ctx context.Context) error {
		_, err := d.ch.Send(ctx, QUIT_APP_APDU.cla, QUIT_APP_APDU.ins, QUIT_APP_APDU.p1, QUIT_APP_APDU.p2, nil)
		return err
	})
}

// parseAppInfo decodes format(1) | nameLen(1) | name | versionLen(1) | version.
func parseAppInfo(data []byte) (string, string, error) {
	if len(data) < 3 {
		return "", "", fmt.Errorf("ledger: app info response too short")
	}

	nameLength := int(data[1])
	if len(data) < 2+nameLength+1 {
		return "", "", fmt.Errorf("ledger: app info response too short for name")
	}
	name := string(data[2 : 2+nameLength])

	versionStart := 2 + nameLength
	versionLength := int(data[versionStart])
	if len(data) < versionStart+1+versionLength {
		return "", "", fmt.Errorf("ledger: app info response too short for version")
	}
	version := string(data[versionStart+1 : versionStart+1+versionLength])

	return name, version, nil
}
