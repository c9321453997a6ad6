package client

import (
	"bufio"
	"context"
	"crypto/rsa"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"dev.c0redev.loco/internal/crypto"
	"dev.c0redev.loco/internal/proto"
)

// Mode: how the byte stream under the packets is protected.
type Mode int

const (
	// ModeTLS: TLS-wrapped stream, plain packets.
	ModeTLS Mode = iota
	// ModeSecure: raw TCP, RSA handshake once, every packet in an AES envelope.
	ModeSecure
)

func (m Mode) String() string {
	switch m {
	case ModeTLS:
		return "tls"
	case ModeSecure:
		return "secure"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrTransport wraps connect, TLS and socket read/write failures.
	ErrTransport = errors.New("loco: transport error")
	// ErrBroken is returned by every call after a failed one; close and redial.
	ErrBroken = errors.New("loco: connection broken")
	// ErrPacketID: reply did not echo the request packet id.
	ErrPacketID = fmt.Errorf("%w: reply packet id mismatch", proto.ErrFraming)
)

// aLongTimeAgo unblocks pending I/O when a context is cancelled.
var aLongTimeAgo = time.Unix(1, 0)

// Options for Dial/NewConn; nil means defaults.
type Options struct {
	// PublicKey for ModeSecure; nil = embedded server key.
	PublicKey *rsa.PublicKey
	// TLSConfig for ModeTLS; ServerName filled from the service when empty.
	TLSConfig *tls.Config
	// DialTimeout bounds the TCP connect (default 10s); exchanges are bounded by ctx only.
	DialTimeout time.Duration
	// FirstPacketID defaults to 1, incremented per request.
	FirstPacketID uint32
}

// Conn: one LOCO connection, one request in flight at a time.
type Conn struct {
	conn   net.Conn
	r      *bufio.Reader
	mode   Mode
	mu     sync.Mutex
	sess   *crypto.Session
	nextID uint32
	err    error
}

// Response: typed reply body plus the raw header (status code, packet id).
type Response[T any] struct {
	Header proto.Header
	Body   *T
}

// NewConn takes over conn (already TLS-wrapped for ModeTLS). For ModeSecure it
// sends the handshake before returning; on error the caller still owns conn.
func NewConn(ctx context.Context, conn net.Conn, mode Mode, opts *Options) (*Conn, error) {
	if opts == nil {
		opts = &Options{}
	}
	c := &Conn{conn: conn, r: bufio.NewReader(conn), mode: mode, nextID: opts.FirstPacketID}
	if c.nextID == 0 {
		c.nextID = 1
	}
	switch mode {
	case ModeTLS:
	case ModeSecure:
		if err := c.handshake(ctx, opts.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}
	return c, nil
}

// handshake: Unkeyed -> Keyed, once.
func (c *Conn) handshake(ctx context.Context, pub *rsa.PublicKey) error {
	if pub == nil {
		var err error
		if pub, err = crypto.DefaultPublicKey(); err != nil {
			return err
		}
	}
	hs, err := crypto.NewHandshake(pub)
	if err != nil {
		return err
	}
	defer clear(hs.Key)
	sess, err := crypto.NewSession(hs.Key)
	if err != nil {
		return err
	}
	err = c.withContext(ctx, func() error {
		if _, err := c.conn.Write(hs.Bytes()); err != nil {
			return transportErr(err)
		}
		return nil
	})
	if err != nil {
		sess.Close()
		return err
	}
	c.sess = sess
	return nil
}

// Mode reports the transport mode.
func (c *Conn) Mode() Mode { return c.mode }

// Exchange sends one request and reads exactly one reply. Any error leaves
// the connection broken.
func (c *Conn) Exchange(ctx context.Context, method string, req any) (*proto.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBroken, c.err)
	}
	p, err := proto.NewPacket(c.nextID, method, req)
	if err != nil {
		c.err = err
		return nil, err
	}
	c.nextID++
	var res *proto.Packet
	err = c.withContext(ctx, func() error {
		var err error
		res, err = c.roundTrip(p)
		return err
	})
	if err != nil {
		c.err = err
		return nil, err
	}
	if res.Header.PacketID != p.Header.PacketID {
		c.err = fmt.Errorf("%w: sent %d, got %d", ErrPacketID, p.Header.PacketID, res.Header.PacketID)
		return nil, c.err
	}
	return res, nil
}

// Call is Exchange plus a typed decode of the reply body.
func Call[T any](ctx context.Context, c *Conn, method string, req any) (*Response[T], error) {
	p, err := c.Exchange(ctx, method, req)
	if err != nil {
		return nil, err
	}
	body, err := proto.DecodeBody[T](p)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	return &Response[T]{Header: p.Header, Body: body}, nil
}

// Close closes the socket (unblocking a pending call) and drops the session key.
func (c *Conn) Close() error {
	err := c.conn.Close()
	c.mu.Lock()
	if c.err == nil {
		c.err = net.ErrClosed
	}
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
	c.mu.Unlock()
	return err
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Conn) roundTrip(p *proto.Packet) (*proto.Packet, error) {
	b, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if c.sess != nil {
		if b, err = c.sess.Seal(b); err != nil {
			return nil, err
		}
	}
	if _, err := c.conn.Write(b); err != nil {
		return nil, transportErr(err)
	}
	if c.sess == nil {
		res, err := proto.ReadPacket(c.r)
		if err != nil {
			return nil, transportErr(err)
		}
		return res, nil
	}
	pt, err := c.sess.ReadEnvelope(c.r)
	if err != nil {
		return nil, transportErr(err)
	}
	return proto.ParsePacket(pt)
}

// withContext maps ctx deadline/cancel onto the socket for the duration of fn.
func (c *Conn) withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(aLongTimeAgo)
	})
	err := fn()
	if !stop() {
		// the socket deadline is already in the past; the stream is unusable
		return fmt.Errorf("%w: %w", ErrTransport, context.Cause(ctx))
	}
	_ = c.conn.SetDeadline(time.Time{})
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("%w: %w", ErrTransport, context.DeadlineExceeded)
		}
	}
	return err
}

// transportErr leaves protocol-class errors alone and tags the rest.
func transportErr(err error) error {
	if errors.Is(err, proto.ErrFraming) || errors.Is(err, proto.ErrCodec) || errors.Is(err, crypto.ErrCrypto) || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
