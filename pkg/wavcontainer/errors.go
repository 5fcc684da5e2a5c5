package wavcontainer

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedHeader   = errors.New("malformed WAV header")
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// HeaderError describes where and why a header failed validation.
//
// Kind is always one of ErrMalformedHeader or ErrUnsupportedFormat, so callers
// can match on those sentinels with errors.Is.
type HeaderError struct {
	Kind   error
	Offset int64
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Offset, e.Reason)
}

func (e *HeaderError) Unwrap() error {
	return e.Kind
}

func malformed(offset int64, format string, args ...any) error {
	return &HeaderError{Kind: ErrMalformedHeader, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(offset int64, format string, args ...any) error {
	return &HeaderError{Kind: ErrUnsupportedFormat, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
