package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// EncodeHeader writes h as 22 LE bytes with the given body length (h.BodyLength ignored).
func EncodeHeader(h *Header, bodyLength uint32) ([]byte, error) {
	if len(h.Method) > MethodSize {
		return nil, ErrMethodTooLong
	}
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.PacketID)
	binary.LittleEndian.PutUint16(b[4:6], h.StatusCode)
	copy(b[6:17], h.Method)
	b[17] = h.BodyType
	binary.LittleEndian.PutUint32(b[18:22], bodyLength)
	return b, nil
}

// DecodeHeader parses the first HeaderSize bytes of b; method has trailing NULs stripped.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, ErrShortHeader
	}
	method := bytes.TrimRight(b[6:17], "\x00")
	if !utf8.Valid(method) {
		return nil, ErrInvalidMethod
	}
	return &Header{
		PacketID:   binary.LittleEndian.Uint32(b[0:4]),
		StatusCode: binary.LittleEndian.Uint16(b[4:6]),
		Method:     string(method),
		BodyType:   b[17],
		BodyLength: binary.LittleEndian.Uint32(b[18:22]),
	}, nil
}

// NewPacket encodes body as BSON and builds a request packet (status 0).
func NewPacket(packetID uint32, method string, body any) (*Packet, error) {
	if len(method) > MethodSize {
		return nil, ErrMethodTooLong
	}
	raw, err := MarshalBody(body)
	if err != nil {
		return nil, err
	}
	return &Packet{
		Header: Header{
			PacketID:   packetID,
			Method:     method,
			BodyType:   BodyTypeBSON,
			BodyLength: uint32(len(raw)),
		},
		Body: raw,
	}, nil
}

// Assemble encodes body and returns header || body, with body_length = len(body).
func Assemble(h *Header, body any) ([]byte, error) {
	raw, err := MarshalBody(body)
	if err != nil {
		return nil, err
	}
	hdr, err := EncodeHeader(h, uint32(len(raw)))
	if err != nil {
		return nil, err
	}
	return append(hdr, raw...), nil
}

// Bytes returns header || body; body_length always taken from len(p.Body).
func (p *Packet) Bytes() ([]byte, error) {
	if len(p.Body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	hdr, err := EncodeHeader(&p.Header, uint32(len(p.Body)))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HeaderSize+len(p.Body))
	out = append(out, hdr...)
	return append(out, p.Body...), nil
}

// ParsePacket splits a complete packet buffer; body_length must match exactly.
func ParsePacket(b []byte) (*Packet, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	if uint64(h.BodyLength) != uint64(len(b)-HeaderSize) {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrBodyLength, h.BodyLength, len(b)-HeaderSize)
	}
	return &Packet{Header: *h, Body: append([]byte(nil), b[HeaderSize:]...)}, nil
}

// ReadHeader reads exactly one header. io.EOF only if the stream closed before any byte.
func ReadHeader(r io.Reader) (*Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, readErr(err)
	}
	return DecodeHeader(b[:])
}

// ReadPacket reads a header then exactly body_length bytes.
func ReadPacket(r io.Reader) (*Packet, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if h.BodyLength > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	body := make([]byte, h.BodyLength)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, readErr(err)
	}
	return &Packet{Header: *h, Body: body}, nil
}

// WritePacket writes header || body in one Write.
func WritePacket(w io.Writer, p *Packet) error {
	b, err := p.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeHandshakeHeader: 12 LE bytes.
func EncodeHandshakeHeader(h *HandshakeHeader) []byte {
	b := make([]byte, HandshakeHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.DataLength)
	binary.LittleEndian.PutUint32(b[4:8], h.RSAEncryptType)
	binary.LittleEndian.PutUint32(b[8:12], h.AESEncryptType)
	return b
}

// DecodeHandshakeHeader parses 12 bytes; does not check the encryption types.
func DecodeHandshakeHeader(b []byte) (*HandshakeHeader, error) {
	if len(b) < HandshakeHeaderSize {
		return nil, ErrShortHeader
	}
	return &HandshakeHeader{
		DataLength:     binary.LittleEndian.Uint32(b[0:4]),
		RSAEncryptType: binary.LittleEndian.Uint32(b[4:8]),
		AESEncryptType: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// EncodeSecureHeader: 4-byte LE length then IV.
func EncodeSecureHeader(h *SecureHeader) []byte {
	b := make([]byte, SecureHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.DataLength)
	copy(b[4:], h.IV[:])
	return b
}

// DecodeSecureHeader parses 20 bytes; DataLength below IVSize is a framing error.
func DecodeSecureHeader(b []byte) (*SecureHeader, error) {
	if len(b) < SecureHeaderSize {
		return nil, ErrShortHeader
	}
	h := &SecureHeader{DataLength: binary.LittleEndian.Uint32(b[0:4])}
	if h.DataLength < IVSize {
		return nil, fmt.Errorf("%w: declared %d", ErrEnvelopeLength, h.DataLength)
	}
	if h.DataLength-IVSize > MaxBodySize+HeaderSize {
		return nil, ErrBodyTooLarge
	}
	copy(h.IV[:], b[4:SecureHeaderSize])
	return h, nil
}

// readErr maps a partial read to ErrTruncated; clean EOF and transport errors pass through.
func readErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
