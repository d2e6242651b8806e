package artifact

import (
	"errors"
	"fmt"
)

// ErrUnsupportedKind is wrapped by SerializationError when an artifact has
// no serializer.
var ErrUnsupportedKind = errors.New("unsupported artifact kind")

// ErrInvalidPrefix is returned for prefixes that cannot be part of a filename.
var ErrInvalidPrefix = errors.New("invalid artifact prefix")

// SerializationError reports an artifact that could not be converted to its
// on-disk format. A "<prefix>_temp" file may be left behind.
type SerializationError struct {
	Kind   Kind
	Prefix string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s artifact %q: %v", e.Kind, e.Prefix, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
