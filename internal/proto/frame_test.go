package proto

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type bookingReq struct {
	Model  string `bson:"model"`
	OS     string `bson:"os"`
	MCCMNC string `bson:"MCCMNC"`
}

func TestHeaderRoundtrip(t *testing.T) {
	cases := []Header{
		{PacketID: 1, Method: "GETCONF"},
		{PacketID: 0xdeadbeef, StatusCode: 0xffff, Method: "LOGINLIST", BodyType: 0},
		{PacketID: 7, StatusCode: 65, Method: "ABCDEFGHIJK", BodyType: 3},
		{PacketID: 0, Method: ""},
	}
	for _, h := range cases {
		b, err := EncodeHeader(&h, 1234)
		if err != nil {
			t.Fatal(err)
		}
		if len(b) != HeaderSize {
			t.Fatalf("header size %d", len(b))
		}
		dec, err := DecodeHeader(b)
		if err != nil {
			t.Fatal(err)
		}
		want := h
		want.BodyLength = 1234
		if *dec != want {
			t.Fatalf("roundtrip: got %+v want %+v", *dec, want)
		}
	}
}

func TestHeaderMethodPadding(t *testing.T) {
	b, err := EncodeHeader(&Header{Method: "CHECKIN"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'C', 'H', 'E', 'C', 'K', 'I', 'N', 0, 0, 0, 0}
	if !bytes.Equal(b[6:17], want) {
		t.Fatalf("method field: % x", b[6:17])
	}
	dec, err := DecodeHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Method != "CHECKIN" {
		t.Fatalf("method %q", dec.Method)
	}
}

func TestEncodeHeaderMethodTooLong(t *testing.T) {
	_, err := EncodeHeader(&Header{Method: "TWELVECHARSX"}, 0)
	if !errors.Is(err, ErrMethodTooLong) || !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrMethodTooLong, got %v", err)
	}
	if _, err := NewPacket(1, "TWELVECHARSX", bson.D{}); !errors.Is(err, ErrMethodTooLong) {
		t.Fatalf("NewPacket: %v", err)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestDecodeHeaderInvalidUTF8(t *testing.T) {
	b, _ := EncodeHeader(&Header{Method: "PING"}, 0)
	b[6] = 0xff
	if _, err := DecodeHeader(b); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestAssembleGetConf(t *testing.T) {
	req := bookingReq{}
	got, err := Assemble(&Header{PacketID: 1, StatusCode: 0, Method: "GETCONF", BodyType: 0}, req)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := bson.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc) != 39 {
		t.Fatalf("document length %d", len(doc))
	}
	want := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x00, 0x00,
		'G', 'E', 'T', 'C', 'O', 'N', 'F', 0, 0, 0, 0,
		0x00,
		byte(len(doc)), 0x00, 0x00, 0x00,
	}
	want = append(want, doc...)
	if !bytes.Equal(got, want) {
		t.Fatalf("assembled:\n got % x\nwant % x", got, want)
	}
}

func TestReadPacketRoundtrip(t *testing.T) {
	p, err := NewPacket(9, "CHECKIN", bson.D{{Key: "status", Value: int32(0)}})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WritePacket(&buf, p); err != nil {
		t.Fatal(err)
	}
	dec, err := ReadPacket(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Header != p.Header || !bytes.Equal(dec.Body, p.Body) {
		t.Fatalf("roundtrip: got %+v", dec)
	}
	if _, err := ReadPacket(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadPacketTruncatedBody(t *testing.T) {
	p, _ := NewPacket(1, "GETCONF", bookingReq{})
	b, _ := p.Bytes()
	_, err := ReadPacket(bytes.NewReader(b[:len(b)-3]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	_, err = ReadPacket(bytes.NewReader(b[:HeaderSize]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated on missing body, got %v", err)
	}
	_, err = ReadPacket(bytes.NewReader(b[:5]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated on partial header, got %v", err)
	}
}

func TestReadPacketBodyTooLarge(t *testing.T) {
	b, _ := EncodeHeader(&Header{Method: "X"}, MaxBodySize+1)
	if _, err := ReadPacket(bytes.NewReader(b)); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestParsePacketLengthMismatch(t *testing.T) {
	p, _ := NewPacket(1, "GETCONF", bookingReq{})
	b, _ := p.Bytes()
	if _, err := ParsePacket(append(b, 0)); !errors.Is(err, ErrBodyLength) {
		t.Fatalf("expected ErrBodyLength, got %v", err)
	}
	if _, err := ParsePacket(b[:len(b)-1]); !errors.Is(err, ErrBodyLength) {
		t.Fatalf("expected ErrBodyLength, got %v", err)
	}
	dec, err := ParsePacket(b)
	if err != nil {
		t.Fatal(err)
	}
	if int(dec.Header.BodyLength) != len(dec.Body) {
		t.Fatalf("body length %d vs %d", dec.Header.BodyLength, len(dec.Body))
	}
}

func TestHandshakeHeader(t *testing.T) {
	b := EncodeHandshakeHeader(&HandshakeHeader{DataLength: 256, RSAEncryptType: RSAEncryptType, AESEncryptType: AESEncryptType})
	want := []byte{0x00, 0x01, 0, 0, 14, 0, 0, 0, 2, 0, 0, 0}
	if !bytes.Equal(b, want) {
		t.Fatalf("preamble % x", b)
	}
	h, err := DecodeHandshakeHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if h.DataLength != 256 || h.RSAEncryptType != 14 || h.AESEncryptType != 2 {
		t.Fatalf("decoded %+v", h)
	}
}

func TestSecureHeader(t *testing.T) {
	h := &SecureHeader{DataLength: 16 + 40}
	for i := range h.IV {
		h.IV[i] = byte(i)
	}
	b := EncodeSecureHeader(h)
	if len(b) != SecureHeaderSize {
		t.Fatalf("size %d", len(b))
	}
	dec, err := DecodeSecureHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if *dec != *h {
		t.Fatalf("roundtrip %+v", dec)
	}
	b[0] = 15
	if _, err := DecodeSecureHeader(b); !errors.Is(err, ErrEnvelopeLength) {
		t.Fatalf("expected ErrEnvelopeLength, got %v", err)
	}
}
