// Package server provides configuration helpers that define runtime defaults,
// sanitising, and viper-based loading for the room chat service.
package server

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Configuration keys understood by LoadConfig. Each key is also read from the
// upper-cased environment variable of the same name.
const (
	KeyPort                    = "port"
	KeyAllowedOrigins          = "allowed_origins"
	KeyMaxMessageSize          = "max_message_size"
	KeyRateLimitBurst          = "rate_limit_burst"
	KeyRateLimitRefillInterval = "rate_limit_refill_interval"
	KeyRoomLifetime            = "room_lifetime"
	KeySweepInterval           = "sweep_interval"
	KeyShutdownTimeout         = "shutdown_timeout"
)

const (
	defaultPort            = ":4000"
	defaultMaxMessageSize  = 4096
	defaultBurst           = 10
	defaultRefillInterval  = time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultSendBuffer      = 256
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	RoomLifetime    time.Duration
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
	SendBufferSize  int
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		RoomLifetime:    room.DefaultLifetime,
		SweepInterval:   room.DefaultSweepInterval,
		ShutdownTimeout: defaultShutdownTimeout,
		SendBufferSize:  defaultSendBuffer,
	}
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	cfg := NewConfig()
	v.SetDefault(KeyPort, cfg.Port)
	v.SetDefault(KeyAllowedOrigins, strings.Join(cfg.AllowedOrigins, ","))
	v.SetDefault(KeyMaxMessageSize, cfg.MaxMessageSize)
	v.SetDefault(KeyRateLimitBurst, cfg.RateLimit.Burst)
	v.SetDefault(KeyRateLimitRefillInterval, cfg.RateLimit.RefillInterval)
	v.SetDefault(KeyRoomLifetime, cfg.RoomLifetime)
	v.SetDefault(KeySweepInterval, cfg.SweepInterval)
	v.SetDefault(KeyShutdownTimeout, cfg.ShutdownTimeout)
}

// LoadConfig reads the configuration from v, binding every key to its
// environment variable. Values that are missing or invalid fall back to
// defaults.
func LoadConfig(v *viper.Viper) *Config {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString(KeyPort),
		AllowedOrigins: parseOrigins(v.GetString(KeyAllowedOrigins)),
		MaxMessageSize: v.GetInt64(KeyMaxMessageSize),
		RateLimit: RateLimitConfig{
			Burst:          v.GetInt(KeyRateLimitBurst),
			RefillInterval: v.GetDuration(KeyRateLimitRefillInterval),
		},
		RoomLifetime:    v.GetDuration(KeyRoomLifetime),
		SweepInterval:   v.GetDuration(KeySweepInterval),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}
	return cfg.Sanitize()
}

// Sanitize replaces unset or invalid values with defaults and returns cfg.
func (cfg *Config) Sanitize() *Config {
	def := NewConfig()

	cfg.Port = normalizePort(cfg.Port)
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.RoomLifetime <= 0 {
		cfg.RoomLifetime = def.RoomLifetime
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = def.AllowedOrigins
	}
	return cfg
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return defaultPort
	}
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
