package agent

import (
	"bufio"
	"crypto/rsa"
	"errors"
	"io"
	"log"
	"net"
	"sync"

	"dev.c0redev.loco/internal/crypto"
	"dev.c0redev.loco/internal/proto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// StatusUnknownMethod is set in the reply header for unhandled methods.
const StatusUnknownMethod uint16 = 0xffff

// HandlerFunc answers one request; the reply echoes packet id and method.
type HandlerFunc func(req *proto.Packet) (status uint16, body any, err error)

// Peer: server side of one LOCO connection. priv != nil = secure session (handshake first).
type Peer struct {
	conn     io.ReadWriteCloser
	priv     *rsa.PrivateKey
	handlers map[string]HandlerFunc
	sess     *crypto.Session
}

// NewPeer wraps conn; handlers are keyed by method name.
func NewPeer(conn io.ReadWriteCloser, priv *rsa.PrivateKey, handlers map[string]HandlerFunc) *Peer {
	return &Peer{conn: conn, priv: priv, handlers: handlers}
}

// Run reads requests until the client closes. A clean close returns nil.
func (p *Peer) Run() error {
	defer p.conn.Close()
	r := bufio.NewReader(p.conn)
	if p.priv != nil {
		key, err := crypto.ReadHandshake(r, p.priv)
		if err != nil {
			return err
		}
		p.sess, err = crypto.NewSession(key)
		clear(key)
		if err != nil {
			return err
		}
		defer p.sess.Close()
	}
	for {
		req, err := p.readPacket(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		res, err := p.handle(req)
		if err != nil {
			return err
		}
		if err := p.writePacket(res); err != nil {
			return err
		}
	}
}

func (p *Peer) handle(req *proto.Packet) (*proto.Packet, error) {
	status, body := StatusUnknownMethod, any(bson.D{})
	if h, ok := p.handlers[req.Header.Method]; ok {
		var err error
		if status, body, err = h(req); err != nil {
			return nil, err
		}
	}
	raw, err := proto.MarshalBody(body)
	if err != nil {
		return nil, err
	}
	return &proto.Packet{
		Header: proto.Header{
			PacketID:   req.Header.PacketID,
			StatusCode: status,
			Method:     req.Header.Method,
			BodyType:   proto.BodyTypeBSON,
			BodyLength: uint32(len(raw)),
		},
		Body: raw,
	}, nil
}

func (p *Peer) readPacket(r io.Reader) (*proto.Packet, error) {
	if p.sess == nil {
		return proto.ReadPacket(r)
	}
	pt, err := p.sess.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}
	return proto.ParsePacket(pt)
}

func (p *Peer) writePacket(res *proto.Packet) error {
	if p.sess == nil {
		return proto.WritePacket(p.conn, res)
	}
	b, err := res.Bytes()
	if err != nil {
		return err
	}
	return p.sess.WriteEnvelope(p.conn, b)
}

// Server accepts connections and runs one Peer each.
type Server struct {
	Handlers   map[string]HandlerFunc
	PrivateKey *rsa.PrivateKey
	wg         sync.WaitGroup
}

// Serve blocks until ln is closed; peer errors are logged, not returned.
func (s *Server) Serve(ln net.Listener) error {
	defer s.wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := NewPeer(conn, s.PrivateKey, s.Handlers).Run(); err != nil {
				log.Println("agent: peer", conn.RemoteAddr(), err)
			}
		}()
	}
}
