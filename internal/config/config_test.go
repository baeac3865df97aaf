package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults failed: %v", err)
	}

	if cfg.Market.EventKind != 38383 {
		t.Fatalf("event kind = %d, want 38383", cfg.Market.EventKind)
	}
	if cfg.Market.Currency != "BRL" || cfg.Market.Status != "pending" || cfg.Market.Source != "robosats" {
		t.Fatalf("market defaults = %+v", cfg.Market)
	}
	if cfg.Filter.MaxPremium != 2.0 {
		t.Fatalf("max premium = %v, want 2.0", cfg.Filter.MaxPremium)
	}
	if cfg.Window.Lookback != 360*time.Hour {
		t.Fatalf("lookback = %v, want 360h", cfg.Window.Lookback)
	}
	if len(cfg.Relays.Addresses) == 0 {
		t.Fatal("default relay list should not be empty")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
relays:
  addresses:
    - wss://relay.example.com
filter:
  max_premium: 3.5
window:
  lookback: 24h
notify:
  url: https://ntfy.sh/test-topic
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Relays.Addresses) != 1 || cfg.Relays.Addresses[0] != "wss://relay.example.com" {
		t.Fatalf("relays = %v", cfg.Relays.Addresses)
	}
	if cfg.Filter.MaxPremium != 3.5 {
		t.Fatalf("max premium = %v, want 3.5", cfg.Filter.MaxPremium)
	}
	if cfg.Window.Lookback != 24*time.Hour {
		t.Fatalf("lookback = %v, want 24h", cfg.Window.Lookback)
	}
	if err := cfg.RequireNotifyURL(); err != nil {
		t.Fatalf("notify url set, check should pass: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load defaults failed: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Relays.Addresses = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty relay list should fail validation")
	}

	cfg = base()
	cfg.Window.Lookback = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero lookback should fail validation")
	}

	cfg = base()
	cfg.Filter.MaxPremium = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative premium ceiling should fail validation")
	}

	cfg = base()
	if err := cfg.RequireNotifyURL(); err == nil {
		t.Fatal("missing notify url should be rejected when notifying")
	}
}
