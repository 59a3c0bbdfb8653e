package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/protocol/session"
	"github.com/danmuck/ipkchat/internal/transport"
)

const (
	defaultPort       = 4567
	defaultUDPTimeout = 250 * time.Millisecond
	defaultUDPRetries = 3
)

var (
	errMissingTransport = errors.New("transport (-t) is required")
	errMissingServer    = errors.New("server (-s) is required")
)

type fileConfig struct {
	Transport       string         `toml:"transport"`
	Server          string         `toml:"server"`
	Port            int            `toml:"port"`
	ReplyTimeout    string         `toml:"reply_timeout"`
	ConnectTimeout  string         `toml:"connect_timeout"`
	WriteTimeout    string         `toml:"write_timeout"`
	ConnectAttempts int            `toml:"connect_attempts"`
	UDPTimeoutMS    int            `toml:"udp_timeout_ms"`
	UDPRetries      int            `toml:"udp_retries"`
	MetricsListen   string         `toml:"metrics_listen"`
	TLS             tlsFileConfig  `toml:"tls"`
	Log             logsFileConfig `toml:"log"`
}

type tlsFileConfig struct {
	Enabled            bool   `toml:"enabled"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type logsFileConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// appConfig is the merged result of defaults, the optional file, and flags.
type appConfig struct {
	Transport string
	Server    string
	Port      uint16
	// UDP settings are accepted for command-line compatibility only.
	UDPTimeout time.Duration
	UDPRetries int
	// MetricsListen enables the /metrics listener when non-empty.
	MetricsListen string
	Session       session.Config
	Log           logs.Config
}

func defaultAppConfig() appConfig {
	return appConfig{
		Port:       defaultPort,
		UDPTimeout: defaultUDPTimeout,
		UDPRetries: defaultUDPRetries,
		Session:    session.DefaultConfig(),
		Log:        logs.DefaultConfig(logs.ProfileRuntime),
	}
}

func loadAppConfig(path string, cfg appConfig) (appConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load ipkchat config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logs.Warnf("ipkchat.config unknown keys=%v path=%q", undecoded, path)
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("server") {
		cfg.Server = strings.TrimSpace(raw.Server)
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return appConfig{}, fmt.Errorf("parse port: %d out of range", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"reply_timeout", raw.ReplyTimeout, &cfg.Session.ReplyTimeout},
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("connect_attempts") {
		cfg.Session.MaxConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("udp_timeout_ms") {
		cfg.UDPTimeout = time.Duration(raw.UDPTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("udp_retries") {
		cfg.UDPRetries = raw.UDPRetries
	}
	if meta.IsDefined("metrics_listen") {
		cfg.MetricsListen = strings.TrimSpace(raw.MetricsListen)
	}

	if meta.IsDefined("tls", "enabled") {
		cfg.Session.TLS.Enabled = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.Session.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	if meta.IsDefined("log", "level") {
		level, ok := logs.ParseLevel(raw.Log.Level)
		if !ok {
			return appConfig{}, fmt.Errorf("parse log.level: %q", raw.Log.Level)
		}
		cfg.Log.Level = level
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
	}
	return cfg, nil
}

// validate checks the merged config and resolves the transport kind.
func (c appConfig) validate() (transport.Kind, error) {
	if c.Transport == "" {
		return "", errMissingTransport
	}
	kind, err := transport.ParseKind(c.Transport)
	if err != nil {
		return "", err
	}
	if c.Server == "" {
		return "", errMissingServer
	}
	if c.Port == 0 {
		return "", fmt.Errorf("invalid port %d", c.Port)
	}
	if err := c.Session.WithDefaults().Validate(); err != nil {
		return "", err
	}
	return kind, nil
}

func msDuration(ms uint16) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
