package lookup

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any backend call.
	ErrValidation = errors.New("invalid lookup input")
	// ErrNotFound marks a well-formed request that matched no document.
	ErrNotFound = errors.New("document not found")
)

// TransportError is a backend or network failure with no interpretable result.
type TransportError struct {
	Type DocumentType
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Type, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
