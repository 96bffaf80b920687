// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Chat        ChatConfig
	RateLimit   RateLimitConfig
	SSE         SSEConfig
}

// ChatConfig controls the realtime chat core.
type ChatConfig struct {
	AllowedOrigins []string
	PersistTimeout time.Duration // bound on one durable message write
	WriteTimeout   time.Duration // bound on one frame write to a client
	PingInterval   time.Duration
	SendBuffer     int // outbound frames queued per connection before it is dropped
	HistoryLimit   int
	MaxFrameBytes  int64
	AuthorizeJoin  bool
}

// RateLimitConfig bounds how fast one participant may send messages.
type RateLimitConfig struct {
	MessagesPerWindow int
	WindowDuration    time.Duration
}

// SSEConfig controls the read-only event stream.
type SSEConfig struct {
	KeepaliveInterval time.Duration
	RetryDelay        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/quotechat.db"),
		Chat: ChatConfig{
			AllowedOrigins: getEnvList("CHAT_ALLOWED_ORIGINS", []string{"*"}),
			PersistTimeout: getEnvDuration("CHAT_PERSIST_TIMEOUT", 5*time.Second),
			WriteTimeout:   getEnvDuration("CHAT_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvDuration("CHAT_PING_INTERVAL", 30*time.Second),
			SendBuffer:     getEnvInt("CHAT_SEND_BUFFER", 64),
			HistoryLimit:   getEnvInt("CHAT_HISTORY_LIMIT", 50),
			MaxFrameBytes:  int64(getEnvInt("CHAT_MAX_FRAME_BYTES", 64<<10)),
			AuthorizeJoin:  getEnvBool("CHAT_AUTHORIZE_JOIN", false),
		},
		RateLimit: RateLimitConfig{
			MessagesPerWindow: getEnvInt("CHAT_RATE_LIMIT_MESSAGES", 30),
			WindowDuration:    getEnvDuration("CHAT_RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			KeepaliveInterval: getEnvDuration("SSE_KEEPALIVE_INTERVAL", 15*time.Second),
			RetryDelay:        getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Chat.PersistTimeout <= 0 {
		return fmt.Errorf("CHAT_PERSIST_TIMEOUT must be > 0")
	}
	if c.Chat.WriteTimeout <= 0 {
		return fmt.Errorf("CHAT_WRITE_TIMEOUT must be > 0")
	}
	if c.Chat.PingInterval <= 0 {
		return fmt.Errorf("CHAT_PING_INTERVAL must be > 0")
	}
	if c.Chat.SendBuffer <= 0 {
		return fmt.Errorf("CHAT_SEND_BUFFER must be > 0")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be > 0")
	}
	if c.Chat.MaxFrameBytes <= 0 {
		return fmt.Errorf("CHAT_MAX_FRAME_BYTES must be > 0")
	}
	if c.RateLimit.MessagesPerWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_MESSAGES must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_WINDOW must be > 0")
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
