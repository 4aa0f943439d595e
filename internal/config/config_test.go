package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := filepath.Join(home, ".faviconurl", "icons.db"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.StoreName != "icons" {
		t.Errorf("StoreName = %q", cfg.StoreName)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.DevicePixelRatio != 1 {
		t.Errorf("DevicePixelRatio = %v", cfg.DevicePixelRatio)
	}
	if cfg.MaxIconBytes != 10<<20 {
		t.Errorf("MaxIconBytes = %d", cfg.MaxIconBytes)
	}
	if cfg.OTelEndpoint != "" {
		t.Errorf("OTelEndpoint = %q", cfg.OTelEndpoint)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FAVICONURL_DB_PATH", "/tmp/x.db")
	t.Setenv("FAVICONURL_DEVICE_PIXEL_RATIO", "1.5")
	t.Setenv("FAVICONURL_FETCH_TIMEOUT", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.DevicePixelRatio != 1.5 || cfg.FetchTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadRatio(t *testing.T) {
	t.Setenv("FAVICONURL_DEVICE_PIXEL_RATIO", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Config
	t.Setenv("FAVICONURL_FETCH_TIMEOUT", "soon")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
