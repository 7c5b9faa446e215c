// Package server provides configuration helpers that define runtime defaults,
// environment loading, and validation for the chat relay.
package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/gochat-relay/internal/chat"
)

// Config holds the server configuration settings including transport tuning,
// protocol edge-case switches and logging.
type Config struct {
	Host           string `env:"CHAT_HOST,default=localhost" validate:"required"`
	Port           int    `env:"CHAT_PORT,default=8765" validate:"min=1,max=65535"`
	AllowedOrigins string `env:"CHAT_ALLOWED_ORIGINS,default=*"`

	// MaxMessageSize caps a single inbound frame in bytes.
	MaxMessageSize    int           `env:"CHAT_MAX_MESSAGE_SIZE,default=4096" validate:"min=512"`
	RateLimitBurst    int           `env:"CHAT_RATE_LIMIT_BURST,default=10" validate:"min=1"`
	RateLimitInterval time.Duration `env:"CHAT_RATE_LIMIT_INTERVAL,default=1s" validate:"gt=0"`
	SendBufferSize    int           `env:"CHAT_SEND_BUFFER_SIZE,default=256" validate:"min=1"`
	PingInterval      time.Duration `env:"CHAT_PING_INTERVAL,default=20s" validate:"gt=0"`
	PongTimeout       time.Duration `env:"CHAT_PONG_TIMEOUT,default=10s" validate:"gt=0"`
	WriteTimeout      time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout   time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`

	ReportDecodeErrors bool          `env:"CHAT_REPORT_DECODE_ERRORS,default=true"`
	RollbackFailedJoin bool          `env:"CHAT_ROLLBACK_FAILED_JOIN,default=true"`
	TypingTTL          time.Duration `env:"CHAT_TYPING_TTL,default=3s" validate:"gte=0"`

	LogLevel  string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
}

var validate = validator.New()

func defaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               8765,
		AllowedOrigins:     "*",
		MaxMessageSize:     4096,
		RateLimitBurst:     10,
		RateLimitInterval:  time.Second,
		SendBufferSize:     256,
		PingInterval:       20 * time.Second,
		PongTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		ReportDecodeErrors: true,
		RollbackFailedJoin: true,
		TypingTTL:          3 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads an optional .env file, then the process environment, and
// validates the result. Unset variables fall back to their defaults.
func LoadConfig() (*Config, error) {
	// a missing .env file is the normal case
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its declared constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the host:port pair the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Origins splits AllowedOrigins into its trimmed, non-empty entries.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// DispatcherOptions maps the protocol switches onto chat.Options.
func (c *Config) DispatcherOptions() chat.Options {
	return chat.Options{
		ReportDecodeErrors: c.ReportDecodeErrors,
		RollbackFailedJoin: c.RollbackFailedJoin,
		TypingTTL:          c.TypingTTL,
	}
}

func parseOrigins(origins string) []string {
	var out []string
	for _, part := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
