// Package transport opens the byte stream a chat session runs over.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/protocol/session"
)

var (
	ErrUnsupportedTransport = errors.New("transport: unsupported transport")
	ErrInvalidKind          = errors.New("transport: invalid transport kind")
	ErrDial                 = errors.New("transport: connect failed")
	ErrTLSConfig            = errors.New("transport: invalid tls settings")
)

// Kind names a transport variant selectable on the command line.
type Kind string

const (
	TCP Kind = "tcp"
	UDP Kind = "udp"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case TCP:
		return TCP, nil
	case UDP:
		return UDP, nil
	default:
		return "", fmt.Errorf("%w: %q (want tcp or udp)", ErrInvalidKind, raw)
	}
}

// Dialer connects with retry and optional TLS.
type Dialer struct {
	cfg session.Config
	rng *rand.Rand
}

func NewDialer(cfg session.Config) (*Dialer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Dial connects to host:port over kind. Only the stream variant is
// implemented; UDP returns ErrUnsupportedTransport.
func (d *Dialer) Dial(ctx context.Context, kind Kind, host string, port uint16) (net.Conn, error) {
	if kind == UDP {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, kind)
	}
	if kind != TCP {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxConnectAttempts; attempt++ {
		if err := session.Sleep(ctx, d.cfg.Backoff.Delay(attempt, d.rng)); err != nil {
			return nil, err
		}
		conn, err := d.dialOnce(ctx, addr)
		if err == nil {
			logs.Debugf("transport.Dial connected addr=%q attempt=%d tls=%t", addr, attempt, d.cfg.TLS.Enabled)
			return conn, nil
		}
		lastErr = err
		logs.Warnf("transport.Dial attempt=%d/%d addr=%q err=%v", attempt, d.cfg.MaxConnectAttempts, addr, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrDial, addr, d.cfg.MaxConnectAttempts, lastErr)
}

func (d *Dialer) dialOnce(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if !d.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := d.clientTLSConfig(addr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) clientTLSConfig(addr string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.cfg.TLS.InsecureSkipVerify,
		ServerName:         d.cfg.TLS.ServerName,
	}
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		cfg.ServerName = host
	}
	if caPath := d.cfg.TLS.CAFile; caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTLSConfig, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrTLSConfig, caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Dial is NewDialer followed by Dialer.Dial.
func Dial(ctx context.Context, cfg session.Config, kind Kind, host string, port uint16) (net.Conn, error) {
	d, err := NewDialer(cfg)
	if err != nil {
		return nil, err
	}
	return d.Dial(ctx, kind, host, port)
}
