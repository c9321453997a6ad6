package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"dev.c0redev.loco/internal/proto"
)

// Session holds one connection's AES key. Not safe for concurrent use.
type Session struct {
	key   []byte
	block cipher.Block
	rand  io.Reader
}

// NewSession keys AES-128 with key (copied).
func NewSession(key []byte) (*Session, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes", ErrInvalidKey, SessionKeySize)
	}
	k := append([]byte(nil), key...)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return &Session{key: k, block: block, rand: rand.Reader}, nil
}

// Seal encrypts plaintext under a fresh random IV; returns header || ciphertext.
func (s *Session) Seal(plaintext []byte) ([]byte, error) {
	var iv [proto.IVSize]byte
	if _, err := io.ReadFull(s.rand, iv[:]); err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrCrypto, err)
	}
	return s.SealWithIV(iv, plaintext)
}

// SealWithIV is Seal with a caller-chosen IV. Never reuse an IV under one key.
func (s *Session) SealWithIV(iv [proto.IVSize]byte, plaintext []byte) ([]byte, error) {
	if s.block == nil {
		return nil, fmt.Errorf("%w: session closed", ErrCrypto)
	}
	if len(plaintext) > proto.MaxBodySize+proto.HeaderSize {
		return nil, proto.ErrBodyTooLarge
	}
	out := make([]byte, proto.SecureHeaderSize+len(plaintext))
	copy(out, proto.EncodeSecureHeader(&proto.SecureHeader{
		DataLength: uint32(len(plaintext) + proto.IVSize),
		IV:         iv,
	}))
	cipher.NewCFBEncrypter(s.block, iv[:]).XORKeyStream(out[proto.SecureHeaderSize:], plaintext)
	return out, nil
}

// Open decrypts one complete envelope; declared length must match exactly.
func (s *Session) Open(envelope []byte) ([]byte, error) {
	h, err := proto.DecodeSecureHeader(envelope)
	if err != nil {
		return nil, err
	}
	ct := envelope[proto.SecureHeaderSize:]
	if uint64(h.DataLength-proto.IVSize) != uint64(len(ct)) {
		return nil, fmt.Errorf("%w: declared %d, have %d", proto.ErrEnvelopeLength, h.DataLength-proto.IVSize, len(ct))
	}
	return s.decrypt(h, ct)
}

// ReadEnvelope reads header, then exactly DataLength-16 bytes, and decrypts.
func (s *Session) ReadEnvelope(r io.Reader) ([]byte, error) {
	var b [proto.SecureHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, truncated(err)
	}
	h, err := proto.DecodeSecureHeader(b[:])
	if err != nil {
		return nil, err
	}
	ct := make([]byte, h.DataLength-proto.IVSize)
	if _, err := io.ReadFull(r, ct); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, proto.ErrTruncated
		}
		return nil, truncated(err)
	}
	return s.decrypt(h, ct)
}

// WriteEnvelope seals plaintext and writes it in one Write.
func (s *Session) WriteEnvelope(w io.Writer, plaintext []byte) error {
	b, err := s.Seal(plaintext)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Close zeroes the key; the session is unusable afterwards.
func (s *Session) Close() {
	clear(s.key)
	s.block = nil
}

func (s *Session) decrypt(h *proto.SecureHeader, ct []byte) ([]byte, error) {
	if s.block == nil {
		return nil, fmt.Errorf("%w: session closed", ErrCrypto)
	}
	pt := make([]byte, len(ct))
	cipher.NewCFBDecrypter(s.block, h.IV[:]).XORKeyStream(pt, ct)
	return pt, nil
}
