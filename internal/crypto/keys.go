// Package crypto: LOCO session crypto. RSA-OAEP(SHA-1) key exchange + AES-128-CFB envelopes.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
)

// ErrCrypto is the class of every key/cipher failure.
var ErrCrypto = errors.New("loco: crypto error")

var (
	ErrInvalidKey            = fmt.Errorf("%w: invalid key", ErrCrypto)
	ErrUnsupportedEncryption = fmt.Errorf("%w: unsupported encryption type", ErrCrypto)
)

// SessionKeySize AES-128.
const SessionKeySize = 16

// serverPublicKeyPEM is the ticket server's RSA key (2048-bit, e=3).
const serverPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIDANBgkqhkiG9w0BAQEFAAOCAQ0AMIIBCAKCAQEA52Y1NVBfNkzCmnggwVwScdUO7enyo/RtnSsr8io+8cQrhXlsi1Msn8yGQv+JW9AZKyetYeYl/BuCFS7liJixwJ1UFkH7J0m8GRGNH4VRuRMJa97WfvVpsMr1cIaFnoCeRwvvaaqw9/ikWFWw/Cq6ieAsO80pRCcAVh1mCytDUmeqykuz6TYwldTaYbpHO8u48d3jvUXveSv5J9t40GiaMdyVRZpx7LY2M0ZsjjbQXRe8ziXtGEq/8Gk0vkV2BnRk/v6uce8k5ERCWGyVHRaRo6FJljYNvaIoBBx2WGJVbb6fXCLlkPFlH/A9tGZ0fxNDuomZWwnF+EDIDsq5R/G8+wIBAw==
-----END PUBLIC KEY-----
`

var defaultPublicKey = sync.OnceValues(func() (*rsa.PublicKey, error) {
	return ParsePublicKeyPEM([]byte(serverPublicKeyPEM))
})

// DefaultPublicKey returns the embedded server key, parsed once per process.
func DefaultPublicKey() (*rsa.PublicKey, error) {
	return defaultPublicKey()
}

// ParsePublicKeyPEM accepts PKIX ("PUBLIC KEY") or PKCS#1 ("RSA PUBLIC KEY") RSA keys.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}
}

// ParsePrivateKeyPEM accepts PKCS#1 or PKCS#8 RSA private keys (peer side).
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}
	return priv, nil
}

// NewSessionKey returns SessionKeySize random bytes.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return key, nil
}

// EncryptSessionKey RSA-OAEP with SHA-1, empty label.
func EncryptSessionKey(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: nil public key", ErrInvalidKey)
	}
	blob, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return blob, nil
}

// DecryptSessionKey inverts EncryptSessionKey; result must be SessionKeySize bytes.
func DecryptSessionKey(priv *rsa.PrivateKey, blob []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha1.New(), nil, priv, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key is %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}
