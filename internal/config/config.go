package config

import "time"

// Store drivers accepted in StoreDriver.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// WebSocket transport.
	MaxMessageBytes      int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessagesPerSecond int           `mapstructure:"max_messages_per_second" yaml:"max_messages_per_second"`
	SendBuffer           int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	PingInterval         time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	TLSCertFile          string        `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile           string        `mapstructure:"tls_key_file" yaml:"tls_key_file"`
	Proxied              bool          `mapstructure:"proxied" yaml:"proxied"`
	RealIPHeader         string        `mapstructure:"real_ip_header" yaml:"real_ip_header"`

	// Identity derivation.
	IDSalt        string `mapstructure:"id_salt" yaml:"id_salt"`
	CustomIDLimit int    `mapstructure:"custom_id_limit" yaml:"custom_id_limit"`
	RandomIDs     bool   `mapstructure:"random_ids" yaml:"random_ids"`

	// Rooms.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	FallbackRoom string        `mapstructure:"fallback_room" yaml:"fallback_room"`

	// Profile persistence.
	StoreDriver  string        `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	RedisAddr    string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB      int           `mapstructure:"redis_db" yaml:"redis_db"`
	RedisKey     string        `mapstructure:"redis_key" yaml:"redis_key"`
	SaveData     bool          `mapstructure:"save_data" yaml:"save_data"`
	SaveInterval time.Duration `mapstructure:"save_interval" yaml:"save_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		MaxMessageBytes:      16 << 10,
		MaxMessagesPerSecond: 100,
		SendBuffer:           256,
		PingInterval:         30 * time.Second,
		RealIPHeader:         "X-Forwarded-For",

		IDSalt:        "wireroom",
		CustomIDLimit: 4,

		TickInterval: 50 * time.Millisecond,
		FallbackRoom: "test/awkward",

		StoreDriver:  StoreSQLite,
		DatabasePath: "wireroom.db",
		RedisAddr:    "localhost:6379",
		RedisKey:     "wireroom:profiles",
		SaveData:     true,
		SaveInterval: 5 * time.Minute,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are only ever switched on.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MaxMessagesPerSecond != 0 {
		c.MaxMessagesPerSecond = other.MaxMessagesPerSecond
	}
	if other.SendBuffer != 0 {
		c.SendBuffer = other.SendBuffer
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.TLSCertFile != "" {
		c.TLSCertFile = other.TLSCertFile
	}
	if other.TLSKeyFile != "" {
		c.TLSKeyFile = other.TLSKeyFile
	}
	if other.Proxied {
		c.Proxied = true
	}
	if other.RealIPHeader != "" {
		c.RealIPHeader = other.RealIPHeader
	}
	if other.IDSalt != "" {
		c.IDSalt = other.IDSalt
	}
	if other.CustomIDLimit != 0 {
		c.CustomIDLimit = other.CustomIDLimit
	}
	if other.RandomIDs {
		c.RandomIDs = true
	}
	if other.TickInterval != 0 {
		c.TickInterval = other.TickInterval
	}
	if other.FallbackRoom != "" {
		c.FallbackRoom = other.FallbackRoom
	}
	if other.StoreDriver != "" {
		c.StoreDriver = other.StoreDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.RedisDB != 0 {
		c.RedisDB = other.RedisDB
	}
	if other.RedisKey != "" {
		c.RedisKey = other.RedisKey
	}
	if other.SaveData {
		c.SaveData = true
	}
	if other.SaveInterval != 0 {
		c.SaveInterval = other.SaveInterval
	}
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
