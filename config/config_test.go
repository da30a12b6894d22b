package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ExchangeTimeout != 30*time.Second || cfg.UnresponsiveTimeout != 15*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "verbosity: debug\nexchange_timeout: 5s\nbridge_url: ws://localhost:8546/device\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Verbosity != "debug" {
		t.Errorf("verbosity = %q", cfg.Verbosity)
	}
	if cfg.ExchangeTimeout != 5*time.Second {
		t.Errorf("exchange timeout = %v", cfg.ExchangeTimeout)
	}
	if cfg.BridgeURL != "ws://localhost:8546/device" {
		t.Errorf("bridge url = %q", cfg.BridgeURL)
	}
	// Unset keys keep their defaults.
	if cfg.UnresponsiveTimeout != 15*time.Second {
		t.Errorf("unresponsive timeout = %v", cfg.UnresponsiveTimeout)
	}
}
