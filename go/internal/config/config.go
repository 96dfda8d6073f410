// Package config loads client settings from an optional YAML file and ROOMSYNC_*
// environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/roomsync/go/internal/connection"
	"github.com/mcdev12/roomsync/go/internal/relay"
	"github.com/mcdev12/roomsync/go/internal/typing"
)

type Config struct {
	Server struct {
		URL         string        `yaml:"url"`
		HTTPTimeout time.Duration `yaml:"http_timeout"`
	} `yaml:"server"`

	User struct {
		Username  string `yaml:"username"`
		Room      string `yaml:"room"`
		TokenFile string `yaml:"token_file"`
	} `yaml:"user"`

	Typing struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"typing"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Connection struct {
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		MaxMessageSize   int           `yaml:"max_message_size"`
		SendBufferSize   int           `yaml:"send_buffer_size"`
	} `yaml:"connection"`

	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"` // Empty keeps user metadata in memory
		RedisPrefix   string        `yaml:"redis_prefix"`
		RedisDB       int           `yaml:"redis_db"`
		LookupTimeout time.Duration `yaml:"lookup_timeout"`
	} `yaml:"cache"`

	Relay struct {
		NATSURL       string `yaml:"nats_url"` // Empty disables the relay
		SubjectPrefix string `yaml:"subject_prefix"`
		Stream        string `yaml:"stream"`
	} `yaml:"relay"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	conn := connection.DefaultConnectionConfig()

	cfg.Server.URL = "http://localhost:8080"
	cfg.Server.HTTPTimeout = 30 * time.Second
	cfg.Typing.Debounce = typing.DefaultDebounce
	cfg.Log.Level = zerolog.InfoLevel.String()
	cfg.Connection.WriteTimeout = conn.WriteTimeout
	cfg.Connection.ReadTimeout = conn.ReadTimeout
	cfg.Connection.PingInterval = conn.PingInterval
	cfg.Connection.HandshakeTimeout = conn.HandshakeTimeout
	cfg.Connection.MaxMessageSize = int(conn.MaxMessageSize)
	cfg.Connection.SendBufferSize = conn.SendBufferSize
	cfg.Cache.RedisPrefix = "roomsync:user:"
	cfg.Cache.LookupTimeout = 5 * time.Second
	cfg.Relay.SubjectPrefix = relay.DefaultPublisherConfig().SubjectPrefix
	return cfg
}

// Load reads path (skipped when empty) over the defaults, then applies the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.URL = getEnv("ROOMSYNC_SERVER_URL", c.Server.URL)
	c.Server.HTTPTimeout = getEnvAsDuration("ROOMSYNC_HTTP_TIMEOUT", c.Server.HTTPTimeout)

	c.User.Username = getEnv("ROOMSYNC_USERNAME", c.User.Username)
	c.User.Room = getEnv("ROOMSYNC_ROOM", c.User.Room)
	c.User.TokenFile = getEnv("ROOMSYNC_TOKEN_FILE", c.User.TokenFile)

	c.Typing.Debounce = getEnvAsDuration("ROOMSYNC_TYPING_DEBOUNCE", c.Typing.Debounce)
	c.Log.Level = getEnv("ROOMSYNC_LOG_LEVEL", c.Log.Level)

	c.Connection.WriteTimeout = getEnvAsDuration("ROOMSYNC_WS_WRITE_TIMEOUT", c.Connection.WriteTimeout)
	c.Connection.ReadTimeout = getEnvAsDuration("ROOMSYNC_WS_READ_TIMEOUT", c.Connection.ReadTimeout)
	c.Connection.PingInterval = getEnvAsDuration("ROOMSYNC_WS_PING_INTERVAL", c.Connection.PingInterval)
	c.Connection.HandshakeTimeout = getEnvAsDuration("ROOMSYNC_WS_HANDSHAKE_TIMEOUT", c.Connection.HandshakeTimeout)
	c.Connection.MaxMessageSize = getEnvAsInt("ROOMSYNC_WS_MAX_MESSAGE_SIZE", c.Connection.MaxMessageSize)
	c.Connection.SendBufferSize = getEnvAsInt("ROOMSYNC_WS_SEND_BUFFER", c.Connection.SendBufferSize)

	c.Cache.RedisAddr = getEnv("ROOMSYNC_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPrefix = getEnv("ROOMSYNC_REDIS_PREFIX", c.Cache.RedisPrefix)
	c.Cache.RedisDB = getEnvAsInt("ROOMSYNC_REDIS_DB", c.Cache.RedisDB)
	c.Cache.LookupTimeout = getEnvAsDuration("ROOMSYNC_LOOKUP_TIMEOUT", c.Cache.LookupTimeout)

	c.Relay.NATSURL = getEnv("ROOMSYNC_NATS_URL", c.Relay.NATSURL)
	c.Relay.SubjectPrefix = getEnv("ROOMSYNC_NATS_SUBJECT_PREFIX", c.Relay.SubjectPrefix)
	c.Relay.Stream = getEnv("ROOMSYNC_NATS_STREAM", c.Relay.Stream)
}

// Validate checks the settings that have no usable fallback
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server url is required")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Typing.Debounce <= 0 {
		return fmt.Errorf("typing debounce must be positive, got %s", c.Typing.Debounce)
	}
	return nil
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ConnectionConfig returns the WebSocket settings
func (c *Config) ConnectionConfig() connection.ConnectionConfig {
	conn := connection.DefaultConnectionConfig()
	conn.WriteTimeout = c.Connection.WriteTimeout
	conn.ReadTimeout = c.Connection.ReadTimeout
	conn.PingInterval = c.Connection.PingInterval
	conn.HandshakeTimeout = c.Connection.HandshakeTimeout
	conn.MaxMessageSize = int64(c.Connection.MaxMessageSize)
	conn.SendBufferSize = c.Connection.SendBufferSize
	return conn
}

// RelayEnabled reports whether frames are mirrored to NATS
func (c *Config) RelayEnabled() bool {
	return c.Relay.NATSURL != ""
}

// RelayConfig returns the NATS relay settings
func (c *Config) RelayConfig() relay.PublisherConfig {
	pub := relay.DefaultPublisherConfig()
	pub.URL = c.Relay.NATSURL
	pub.SubjectPrefix = c.Relay.SubjectPrefix
	pub.StreamName = c.Relay.Stream
	return pub
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
