// Package errs defines the error kinds shared by every format reader.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind. Use errors.Is to test for them.
var (
	// ErrMalformedHeader is returned when a stream starts with unexpected bytes.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedInput is returned when a length field promises more bytes
	// than the source can supply.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrChecksumMismatch is returned when a BGZF trailer disagrees with the
	// decompressed payload.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedEncoding is returned for an unknown BCF type descriptor.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrUnknownExtension is returned when no format matches a path.
	ErrUnknownExtension = errors.New("unknown extension")

	// ErrMalformedRecord is returned when a record's internal lengths are
	// inconsistent.
	ErrMalformedRecord = errors.New("malformed record")
)

// Kind identifies the class of a parsing failure.
type Kind uint8

// Failure kinds.
const (
	MalformedHeader Kind = iota + 1
	TruncatedInput
	ChecksumMismatch
	UnsupportedEncoding
	UnknownExtension
	MalformedRecord
)

var kindSentinels = map[Kind]error{
	MalformedHeader:     ErrMalformedHeader,
	TruncatedInput:      ErrTruncatedInput,
	ChecksumMismatch:    ErrChecksumMismatch,
	UnsupportedEncoding: ErrUnsupportedEncoding,
	UnknownExtension:    ErrUnknownExtension,
	MalformedRecord:     ErrMalformedRecord,
}

func (k Kind) String() string {
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a parsing failure at a known byte offset. Offset is -1 when the
// position is not meaningful (for example an unrecognized file name).
type Error struct {
	Kind   Kind
	Op     string // what was being read, e.g. "bam record"
	Offset int64
	Err    error // optional underlying cause
}

// New returns an *Error of the given kind.
func New(kind Kind, op string, offset int64, format string, args ...any) *Error {
	var cause error
	if format != "" {
		cause = fmt.Errorf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Offset: offset, Err: cause}
}

// Wrap returns an *Error of the given kind carrying err as its cause.
func Wrap(kind Kind, op string, offset int64, err error) *Error {
	return &Error{Kind: kind, Op: op, Offset: offset, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
