package connection

import (
	"time"
)

// ConnectionConfig holds configuration for the room WebSocket connection
type ConnectionConfig struct {
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int // Outbound frames queued for the write pump before drops
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   1 << 20, // initial_state carries the whole whiteboard log
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		SendBufferSize:   256,
	}
}

// withDefaults fills zero fields from DefaultConnectionConfig
func (c ConnectionConfig) withDefaults() ConnectionConfig {
	def := DefaultConnectionConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = def.WriteBufferSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	return c
}
