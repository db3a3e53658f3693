package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_SOURCE", "postgresql://localhost/paygate")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHANNEL_ID", "-100123")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Payment.ExpectedAmountMinor != 25_000_000 {
		t.Errorf("ExpectedAmountMinor = %d", cfg.Payment.ExpectedAmountMinor)
	}
	if cfg.Payment.MaxAgeHours != 5 {
		t.Errorf("MaxAgeHours = %v", cfg.Payment.MaxAgeHours)
	}
	if cfg.Window.OpenDay != 30 || cfg.Window.CloseDay != 5 {
		t.Errorf("window rule = %+v", cfg.Window)
	}
	if cfg.Telegram.InviteTTL().Minutes() != 30 {
		t.Errorf("InviteTTL = %v", cfg.Telegram.InviteTTL())
	}
}

func TestLoadRequiresDBSource(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHANNEL_ID", "-100123")
	t.Setenv("DB_SOURCE", "placeholder") // register cleanup, then drop it
	os.Unsetenv("DB_SOURCE")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without DB_SOURCE")
	}
}

func TestLoadAddressFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "paygate.yaml")
	content := `addresses:
  - id: address_a
    label: Payment Address A
    address: TCRntw5B9QCUdmA6FcNZWKQPs621iH83ja
  - id: address_b
    label: Payment Address B
    address: TDFt3aHZYzzU2NBw8vvPov2AknF16gMWDH
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Payment.Addresses) != 2 {
		t.Fatalf("addresses = %d, want 2", len(cfg.Payment.Addresses))
	}
	if cfg.Payment.Addresses[0].ID != "address_a" {
		t.Errorf("first address = %+v", cfg.Payment.Addresses[0])
	}
}

func TestLoadRejectsIncompleteAddress(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "paygate.yaml")
	if err := os.WriteFile(path, []byte("addresses:\n  - label: nameless\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject an address without id and address")
	}
}
