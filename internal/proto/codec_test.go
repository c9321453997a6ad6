package proto

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type hostInfo struct {
	SSL  []string `bson:"ssl"`
	LSL  []string `bson:"lsl"`
	Note string   `bson:"note,omitempty"`
}

type confRes struct {
	Revision int32    `bson:"revision"`
	Ticket   hostInfo `bson:"ticket"`
	Extra    *int32   `bson:"extra"`
}

func TestUnmarshalBody(t *testing.T) {
	raw, err := MarshalBody(bson.D{
		{Key: "revision", Value: int32(3)},
		{Key: "ticket", Value: bson.D{
			{Key: "ssl", Value: bson.A{"a.example:443"}},
			{Key: "lsl", Value: bson.A{}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var res confRes
	if err := UnmarshalBody(raw, &res); err != nil {
		t.Fatal(err)
	}
	if res.Revision != 3 || len(res.Ticket.SSL) != 1 || res.Ticket.SSL[0] != "a.example:443" {
		t.Fatalf("decoded %+v", res)
	}
	if res.Extra != nil {
		t.Fatal("absent pointer field should stay nil")
	}
}

func TestUnmarshalBodyMissingField(t *testing.T) {
	raw, _ := MarshalBody(bson.D{{Key: "revision", Value: int32(3)}})
	var res confRes
	err := UnmarshalBody(raw, &res)
	if !errors.Is(err, ErrMissingField) || !errors.Is(err, ErrCodec) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	raw, _ = MarshalBody(bson.D{
		{Key: "revision", Value: int32(3)},
		{Key: "ticket", Value: bson.D{{Key: "ssl", Value: bson.A{}}}},
	})
	err = UnmarshalBody(raw, &res)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected nested ErrMissingField, got %v", err)
	}
}

func TestUnmarshalBodyMalformed(t *testing.T) {
	var res confRes
	if err := UnmarshalBody([]byte{0x05, 0, 0}, &res); !errors.Is(err, ErrCodec) {
		t.Fatalf("expected ErrCodec, got %v", err)
	}
	if err := UnmarshalBody(nil, &res); !errors.Is(err, ErrCodec) {
		t.Fatalf("expected ErrCodec on empty body, got %v", err)
	}
}

func TestMarshalBodyUnsupported(t *testing.T) {
	_, err := MarshalBody(struct {
		C chan int `bson:"c"`
	}{C: make(chan int)})
	if !errors.Is(err, ErrCodec) {
		t.Fatalf("expected ErrCodec, got %v", err)
	}
}

func TestDecodeBody(t *testing.T) {
	p, err := NewPacket(2, "GETCONF", bookingReq{Model: "SM-G991N", OS: "android", MCCMNC: "45005"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeBody[bookingReq](p)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "SM-G991N" || got.OS != "android" || got.MCCMNC != "45005" {
		t.Fatalf("decoded %+v", got)
	}
}
