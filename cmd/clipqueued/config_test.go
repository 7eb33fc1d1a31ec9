package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipqueued.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
node = "desk-1"
admin_addr = "127.0.0.1:9300"
member_name = " Dana's Desk "
cors_origins = ["http://localhost:5173"]
log_level = "debug"
connect_timeout = "5s"
handshake_timeout = "1500ms"
dedup_capacity = 128
`)
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NodeID != "desk-1" {
		t.Fatalf("node override: %q", cfg.NodeID)
	}
	if cfg.AdminAddr != "127.0.0.1:9300" {
		t.Fatalf("admin_addr override: %q", cfg.AdminAddr)
	}
	if cfg.MemberName != "Dana's Desk" {
		t.Fatalf("member_name override: %q", cfg.MemberName)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:5173" {
		t.Fatalf("cors override: %v", cfg.CorsOrigins)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level override: %q", cfg.LogLevel)
	}
	if cfg.Queue.ConnectTimeout != 5*time.Second {
		t.Fatalf("connect_timeout override: %v", cfg.Queue.ConnectTimeout)
	}
	if cfg.Queue.HandshakeTimeout != 1500*time.Millisecond {
		t.Fatalf("handshake_timeout override: %v", cfg.Queue.HandshakeTimeout)
	}
	if cfg.Queue.DedupCapacity != 128 {
		t.Fatalf("dedup_capacity override: %d", cfg.Queue.DedupCapacity)
	}
}

func TestLoadConfigKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfig(t, `node = "desk-2"`)
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := defaultDaemonConfig()
	if cfg.AdminAddr != def.AdminAddr {
		t.Fatalf("admin_addr should keep default, got %q", cfg.AdminAddr)
	}
	if cfg.MemberName != "" {
		t.Fatalf("member_name should default empty, got %q", cfg.MemberName)
	}
	if cfg.Queue.ConnectTimeout != def.Queue.ConnectTimeout {
		t.Fatalf("connect_timeout should keep default, got %v", cfg.Queue.ConnectTimeout)
	}
	if cfg.Queue.DedupCapacity != def.Queue.DedupCapacity {
		t.Fatalf("dedup_capacity should keep default, got %d", cfg.Queue.DedupCapacity)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `connect_timeout = "soon"`)
	if _, err := loadDaemonConfig(path); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestLoadConfigRejectsNonPositiveDedupCapacity(t *testing.T) {
	path := writeConfig(t, `dedup_capacity = 0`)
	if _, err := loadDaemonConfig(path); err == nil {
		t.Fatalf("expected dedup_capacity error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadDaemonConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
