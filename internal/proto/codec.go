package proto

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MarshalBody encodes v (struct, map or bson.D) as a BSON document.
func MarshalBody(v any) ([]byte, error) {
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return b, nil
}

// UnmarshalBody decodes a BSON document into v. Struct fields without omitempty
// (and not pointers) must be present, nested documents included.
func UnmarshalBody(b []byte, v any) error {
	raw := bson.Raw(b)
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if v != nil {
		if err := requireFields(raw, reflect.TypeOf(v), ""); err != nil {
			return err
		}
	}
	if err := bson.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return nil
}

// DecodeBody decodes p.Body into a fresh T; the shape is chosen by the caller.
func DecodeBody[T any](p *Packet) (*T, error) {
	var out T
	if err := UnmarshalBody(p.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Header.Method, err)
	}
	return &out, nil
}

func requireFields(doc bson.Raw, t reflect.Type, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		key, optional, skip := bsonKey(f)
		if skip {
			continue
		}
		val, err := doc.LookupErr(key)
		if err != nil {
			if optional || f.Type.Kind() == reflect.Pointer {
				continue
			}
			return fmt.Errorf("%w: %s%s", ErrMissingField, path, key)
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		// non-document values are left to bson.Unmarshal to reject
		if sub, ok := val.DocumentOK(); ok {
			if err := requireFields(sub, ft, path+key+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// bsonKey mirrors the driver's default struct tag rules.
func bsonKey(f reflect.StructField) (key string, optional, skip bool) {
	tag := f.Tag.Get("bson")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	key = parts[0]
	if key == "" {
		key = strings.ToLower(f.Name)
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "omitempty", "omitzero":
			optional = true
		case "inline":
			skip = true
		}
	}
	return key, optional, skip
}
