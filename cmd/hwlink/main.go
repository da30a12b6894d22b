// hwlink is a small diagnostic CLI for the link stack: list connected
// devices, read the device name and retrieve addresses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/keycard-tech/hwlink/apdu"
	"github.com/keycard-tech/hwlink/channel"
	"github.com/keycard-tech/hwlink/config"
	"github.com/keycard-tech/hwlink/ledger"
	"github.com/keycard-tech/hwlink/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "hwlink.yaml", "configuration file")
	path := flag.String("path", "m/44'/60'/0'/0/0", "derivation path")
	confirm := flag.Bool("confirm", false, "display the address on the device")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.InitLogger()

	if flag.NArg() < 1 {
		usage()
	}

	switch flag.Arg(0) {
	case "list":
		listDevices()
	case "name":
		withDevice(cfg, func(ctx context.Context, d *ledger.Device) error {
			name, err := d.GetDeviceName(ctx)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		})
	case "app":
		withDevice(cfg, func(ctx context.Context, d *ledger.Device) error {
			info, err := d.GetAppInfo(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", info.Name, info.Version)
			return nil
		})
	case "addr":
		withDevice(cfg, func(ctx context.Context, d *ledger.Device) error {
			addr, err := d.GetAddress(ctx, *path, *confirm)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", *path, addr.Address.Hex())
			return nil
		})
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hwlink [flags] list|name|app|addr")
	flag.PrintDefaults()
	os.Exit(2)
}

func listDevices() {
	infos, err := transport.Enumerate()
	if err != nil {
		log.Error().Err(err).Msg("enumeration failed")
	}
	for _, info := range infos {
		fmt.Printf("%s vendor=%04x product=%04x\n", info.USB_ID, info.Vendor, info.Product)
	}
	if len(infos) == 0 {
		fmt.Println("no supported devices found")
	}
}

func withDevice(cfg *config.Config, op func(ctx context.Context, d *ledger.Device) error) {
	notifier := channel.NewNotifier()

	var tr channel.Transport
	var err error
	if cfg.BridgeURL != "" {
		tr, err = transport.DialWS(cfg.BridgeURL, notifier)
	} else {
		tr, err = transport.OpenUSBHID(cfg.USB_ID, notifier)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening device: %v\n", err)
		os.Exit(1)
	}
	defer tr.Close()

	ch := channel.New(tr, notifier)
	ch.SetExchangeTimeout(cfg.ExchangeTimeout)
	ch.SetUnresponsiveTimeout(cfg.UnresponsiveTimeout)

	id, events := notifier.Register(8)
	defer notifier.Unregister(id)
	go func() {
		for ev := range events {
			switch ev.Kind {
			case channel.EventUnresponsive:
				fmt.Fprintln(os.Stderr, "device is not responding, check its screen")
			case channel.EventResponsive:
				fmt.Fprintln(os.Stderr, "device responded")
			}
		}
	}()

	err = op(context.Background(), ledger.New(ch))
	switch {
	case err == nil:
	case errors.Is(err, apdu.ErrLockedDevice):
		fmt.Fprintln(os.Stderr, "device is locked, unlock it and retry")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
