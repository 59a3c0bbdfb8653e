package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTimeout          = errors.New("session: invalid timeout")
	ErrInvalidAttempts         = errors.New("session: invalid connect attempts")
	ErrTLSServerNameConflict   = errors.New("session: tls server name set while tls disabled")
	ErrTLSInsecureSkipDisabled = errors.New("session: insecure skip verify set while tls disabled")
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// TLSConfig wraps the stream in TLS when Enabled. Without CAFile the system
// roots are used.
type TLSConfig struct {
	Enabled            bool
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config holds client timing and connection settings.
type Config struct {
	ConnectTimeout     time.Duration
	ReplyTimeout       time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
	TLS                TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		ReplyTimeout:       5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxConnectAttempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = def.ReplyTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	c.TLS.CAFile = strings.TrimSpace(c.TLS.CAFile)
	c.TLS.ServerName = strings.TrimSpace(c.TLS.ServerName)
	return c
}

// Validate checks a config after WithDefaults.
func (c Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout=%s", ErrInvalidTimeout, c.ConnectTimeout)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("%w: reply_timeout=%s", ErrInvalidTimeout, c.ReplyTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write_timeout=%s", ErrInvalidTimeout, c.WriteTimeout)
	}
	if c.MaxConnectAttempts < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidAttempts, c.MaxConnectAttempts)
	}
	return c.TLS.Validate()
}

func (t TLSConfig) Validate() error {
	if t.Enabled {
		return nil
	}
	if t.ServerName != "" {
		return ErrTLSServerNameConflict
	}
	if t.InsecureSkipVerify {
		return ErrTLSInsecureSkipDisabled
	}
	return nil
}
