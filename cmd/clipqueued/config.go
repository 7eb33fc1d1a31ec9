package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/clipqueue/internal/queue"
)

type daemonConfig struct {
	NodeID      string
	AdminAddr   string
	MemberName  string
	CorsOrigins []string
	LogLevel    string
	Queue       queue.Config
}

type fileConfig struct {
	Node             string   `toml:"node"`
	AdminAddr        string   `toml:"admin_addr"`
	MemberName       string   `toml:"member_name"`
	CorsOrigins      []string `toml:"cors_origins"`
	LogLevel         string   `toml:"log_level"`
	ConnectTimeout   string   `toml:"connect_timeout"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	DedupCapacity    int      `toml:"dedup_capacity"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		NodeID:    "clipqueue.local",
		AdminAddr: "127.0.0.1:7220",
		Queue:     queue.DefaultConfig(),
	}
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("node") {
		if node := strings.TrimSpace(raw.Node); node != "" {
			cfg.NodeID = node
		}
	}

	if meta.IsDefined("admin_addr") {
		if addr := strings.TrimSpace(raw.AdminAddr); addr != "" {
			cfg.AdminAddr = addr
		}
	}

	if meta.IsDefined("member_name") {
		cfg.MemberName = strings.TrimSpace(raw.MemberName)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.Queue.ConnectTimeout = d
	}

	if meta.IsDefined("handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeTimeout))
		if err != nil {
			return daemonConfig{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.Queue.HandshakeTimeout = d
	}

	if meta.IsDefined("dedup_capacity") {
		if raw.DedupCapacity <= 0 {
			return daemonConfig{}, fmt.Errorf("dedup_capacity must be positive, got %d", raw.DedupCapacity)
		}
		cfg.Queue.DedupCapacity = raw.DedupCapacity
	}

	return cfg, nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
