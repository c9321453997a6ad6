package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Service: a logical LOCO endpoint. Mode is fixed per service, never negotiated.
type Service struct {
	Name       string
	Addr       string
	ServerName string
	Mode       Mode
}

// BookingService answers GETCONF over TLS.
var BookingService = Service{
	Name:       "booking",
	Addr:       "booking-loco.kakao.com:443",
	ServerName: "booking-loco.kakao.com",
	Mode:       ModeTLS,
}

// TicketService answers CHECKIN over a secure session.
var TicketService = Service{
	Name: "ticket",
	Addr: "ticket-loco.kakao.com:443",
	Mode: ModeSecure,
}

const defaultDialTimeout = 10 * time.Second

// Dial connects to svc, wraps in TLS or runs the handshake per svc.Mode.
func Dial(ctx context.Context, svc Service, opts *Options) (*Conn, error) {
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", svc.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, svc.Addr, err)
	}
	conn := raw
	if svc.Mode == ModeTLS {
		tc := tls.Client(raw, tlsConfig(svc, opts))
		if err := tc.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("%w: tls %s: %w", ErrTransport, svc.Addr, err)
		}
		conn = tc
	}
	c, err := NewConn(ctx, conn, svc.Mode, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func tlsConfig(svc Service, opts *Options) *tls.Config {
	var cfg *tls.Config
	if opts.TLSConfig != nil {
		cfg = opts.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = svc.ServerName
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(svc.Addr); err == nil {
			cfg.ServerName = host
		}
	}
	return cfg
}
