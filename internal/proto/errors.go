package proto

import (
	"errors"
	"fmt"
)

// Error classes; specific errors wrap one of these so callers can use errors.Is.
var (
	ErrFraming = errors.New("loco: framing error")
	ErrCodec   = errors.New("loco: codec error")
)

var (
	ErrShortHeader    = fmt.Errorf("%w: short header", ErrFraming)
	ErrMethodTooLong  = fmt.Errorf("%w: method name longer than %d bytes", ErrFraming, MethodSize)
	ErrInvalidMethod  = fmt.Errorf("%w: method name is not valid utf-8", ErrFraming)
	ErrBodyLength     = fmt.Errorf("%w: body length mismatch", ErrFraming)
	ErrBodyTooLarge   = fmt.Errorf("%w: body exceeds maximum size", ErrFraming)
	ErrTruncated      = fmt.Errorf("%w: stream ended mid-message", ErrFraming)
	ErrEnvelopeLength = fmt.Errorf("%w: envelope length mismatch", ErrFraming)
	ErrMissingField   = fmt.Errorf("%w: missing required field", ErrCodec)
)
