package proto

// HeaderSize: 4 + 2 + 11 + 1 + 4 bytes (packet_id, status, method, body_type, body_length).
const HeaderSize = 22

// MethodSize is the fixed, NUL-padded method field width.
const MethodSize = 11

// HandshakeHeaderSize: data_length, rsa_encrypt_type, aes_encrypt_type (u32 each).
const HandshakeHeaderSize = 12

// IVSize of the secure envelope (AES block).
const IVSize = 16

// SecureHeaderSize: 4-byte length + 16-byte IV.
const SecureHeaderSize = 4 + IVSize

// MaxBodySize 16MiB; larger declared lengths are treated as a corrupt stream.
const MaxBodySize = 1024 * 1024 * 16

// Encryption type identifiers sent in the handshake preamble.
const (
	RSAEncryptType uint32 = 14 // RSA-OAEP, SHA-1
	AESEncryptType uint32 = 2  // AES-128-CFB, 128-bit segments
)

// BodyTypeBSON is the only body encoding seen on the wire.
const BodyTypeBSON uint8 = 0

// Header: fixed 22-byte packet header.
type Header struct {
	PacketID   uint32
	StatusCode uint16
	Method     string
	BodyType   uint8
	BodyLength uint32
}

// Packet: header + raw BSON body. Treat as immutable.
type Packet struct {
	Header Header
	Body   []byte
}

// HandshakeHeader precedes the RSA-encrypted session key, once per secure session.
type HandshakeHeader struct {
	DataLength     uint32
	RSAEncryptType uint32
	AESEncryptType uint32
}

// SecureHeader precedes each AES ciphertext. DataLength = len(ciphertext) + IVSize.
type SecureHeader struct {
	DataLength uint32
	IV         [IVSize]byte
}
