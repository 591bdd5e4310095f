package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	os.Unsetenv("NALIXD_ENCRYPTION_KEY")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 0 || cfg.DropPolicy != "DropNewest" || cfg.CompressionThreshold != 1024 {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nalixd.yaml")
	yaml := "workers: 4\ndrop_policy: Coalesce\ncompression_threshold: 2048\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 || cfg.DropPolicy != "Coalesce" || cfg.CompressionThreshold != 2048 {
		t.Fatalf("got %+v, want overridden values", cfg)
	}
}

func TestEncryptionKeyNeverFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nalixd.yaml")
	if err := os.WriteFile(path, []byte("encryption_key_hex: deadbeef\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EncryptionKeyHex != "" {
		t.Fatalf("got %q, want empty (YAML must not set the key)", cfg.EncryptionKeyHex)
	}
}

func TestEnvOverridesListenAddr(t *testing.T) {
	os.Setenv("NALIXD_LISTEN_ADDR", ":9999")
	defer os.Unsetenv("NALIXD_LISTEN_ADDR")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("got %q, want :9999", cfg.ListenAddr)
	}
}
