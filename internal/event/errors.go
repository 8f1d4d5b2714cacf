package event

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedType is returned when a type field is not SYN or ABS
	ErrUnrecognizedType = errors.New("unrecognized event type")

	// ErrUnrecognizedCode is returned when a code field is not valid for its type
	ErrUnrecognizedCode = errors.New("unrecognized event code")

	// ErrUnknownCodeName is returned when a code name does not match any known code
	ErrUnknownCodeName = errors.New("unknown event code name")
)

// TypeError carries the raw type value that failed to resolve
type TypeError struct {
	Value uint16
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%v: 0x%04x", ErrUnrecognizedType, e.Value)
}

func (e *TypeError) Unwrap() error {
	return ErrUnrecognizedType
}

// CodeError carries the raw code value and the type it was resolved against
type CodeError struct {
	Type  Type
	Value uint16
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%v: 0x%04x for type %s", ErrUnrecognizedCode, e.Value, e.Type)
}

func (e *CodeError) Unwrap() error {
	return ErrUnrecognizedCode
}
