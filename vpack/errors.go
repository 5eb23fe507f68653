package vpack

import "fmt"

// Error is a constant error reported by the codec. Callers match it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrMalformedInput is returned when an encoded document cannot be interpreted:
	// unknown markers, lengths past the end of the buffer or broken index tables.
	ErrMalformedInput = Error("vpack: malformed input")

	// ErrUnsupportedValue is returned by the encoder for values it cannot represent.
	ErrUnsupportedValue = Error("vpack: unsupported value")

	// ErrKeyNotFound is a recoverable navigation miss on an object.
	ErrKeyNotFound = Error("vpack: key not found")

	// ErrIndexOutOfRange is a recoverable navigation miss on an array.
	ErrIndexOutOfRange = Error("vpack: index out of range")
)

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedValue, fmt.Sprintf(format, args...))
}
