package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"io"

	"dev.c0redev.loco/internal/proto"
)

// maxKeyBlob bounds the RSA blob a peer will read (16384-bit modulus).
const maxKeyBlob = 2048

// Handshake: fresh session key + its RSA-OAEP encryption.
type Handshake struct {
	Key  []byte
	Blob []byte
}

// NewHandshake generates a session key and encrypts it for pub.
func NewHandshake(pub *rsa.PublicKey) (*Handshake, error) {
	key, err := NewSessionKey()
	if err != nil {
		return nil, err
	}
	blob, err := EncryptSessionKey(pub, key)
	if err != nil {
		return nil, err
	}
	return &Handshake{Key: key, Blob: blob}, nil
}

// Bytes returns preamble || blob, the first thing sent on a secure session.
func (h *Handshake) Bytes() []byte {
	hdr := proto.EncodeHandshakeHeader(&proto.HandshakeHeader{
		DataLength:     uint32(len(h.Blob)),
		RSAEncryptType: proto.RSAEncryptType,
		AESEncryptType: proto.AESEncryptType,
	})
	return append(hdr, h.Blob...)
}

// ReadHandshake reads a preamble + blob from r and recovers the session key (peer side).
func ReadHandshake(r io.Reader, priv *rsa.PrivateKey) ([]byte, error) {
	var b [proto.HandshakeHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, truncated(err)
	}
	h, err := proto.DecodeHandshakeHeader(b[:])
	if err != nil {
		return nil, err
	}
	if h.RSAEncryptType != proto.RSAEncryptType || h.AESEncryptType != proto.AESEncryptType {
		return nil, fmt.Errorf("%w: rsa=%d aes=%d", ErrUnsupportedEncryption, h.RSAEncryptType, h.AESEncryptType)
	}
	if h.DataLength == 0 || h.DataLength > maxKeyBlob {
		return nil, fmt.Errorf("%w: key blob length %d", proto.ErrFraming, h.DataLength)
	}
	blob := make([]byte, h.DataLength)
	if _, err := io.ReadFull(r, blob); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, proto.ErrTruncated
		}
		return nil, truncated(err)
	}
	return DecryptSessionKey(priv, blob)
}

func truncated(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return proto.ErrTruncated
	}
	return err
}
