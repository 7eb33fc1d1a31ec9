package queue

import (
	"encoding/json"
	"time"

	"github.com/danmuck/clipqueue/internal/protocol/frame"
)

// Role selects which engine, if any, is active for the session.
type Role int

const (
	RoleOff Role = iota
	RoleHost
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleClient:
		return "client"
	default:
		return "off"
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Status is a read-only projection of the session for callers and UI.
type Status struct {
	Role       Role   `json:"role"`
	Connected  bool   `json:"connected"`
	Addr       string `json:"addr,omitempty"`
	QueueName  string `json:"queue_name,omitempty"`
	MemberName string `json:"member_name,omitempty"`
	Peers      int    `json:"peers"`
}

// Config defines session transport and bookkeeping defaults.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	DedupCapacity    int
	Frame            frame.Limits
	SendQueueDepth   int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   3 * time.Second,
		HandshakeTimeout: 3 * time.Second,
		DedupCapacity:    512,
		Frame:            frame.DefaultLimits(),
		SendQueueDepth:   32,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = def.DedupCapacity
	}
	if c.Frame.MaxPayloadBytes == 0 {
		c.Frame = def.Frame
	}
	if c.SendQueueDepth <= 0 {
		c.SendQueueDepth = def.SendQueueDepth
	}
	return c
}
