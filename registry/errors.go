package registry

// Error is a constant registry error. Callers match it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrUnknownTypeTag is returned when a decoded type tag was never
	// registered for the base being decoded.
	ErrUnknownTypeTag = Error("registry: unknown type tag")

	// ErrUnregisteredVariant is returned when a value held by a polymorphic
	// base has a Go type that was not registered. It indicates a
	// configuration bug.
	ErrUnregisteredVariant = Error("registry: unregistered variant")

	// ErrTagCollision is returned by New when tags, variant types or field
	// names clash.
	ErrTagCollision = Error("registry: tag collision")

	// ErrInvalidConfig is returned by New for malformed configuration.
	ErrInvalidConfig = Error("registry: invalid config")
)
