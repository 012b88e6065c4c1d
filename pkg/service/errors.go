package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrIllegalType is returned when an attribute value does not match
	// the declared type.
	ErrIllegalType = errors.New("illegal attribute type")

	// ErrRequiredArgumentNotFound is returned when a required attribute is
	// missing from the construction map.
	ErrRequiredArgumentNotFound = errors.New("required argument not found")

	// ErrUnknownAttribute is returned when the construction map holds a key
	// the service does not declare.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrIllegalMethodDefined is returned by Define when a service type
	// declares an exported method other than Call.
	ErrIllegalMethodDefined = errors.New("illegal method defined")

	// ErrInvalidDefinition is returned by Define for malformed service types.
	ErrInvalidDefinition = errors.New("invalid service definition")

	// ErrNoResponse is returned when Call returns a nil Response.
	ErrNoResponse = errors.New("service returned no response")

	// ErrUnknownService is returned by the Registry for unregistered names.
	ErrUnknownService = errors.New("unknown service")

	// ErrServiceExists is returned by the Registry on duplicate registration.
	ErrServiceExists = errors.New("service already registered")
)

// IllegalTypeError reports an attribute value of the wrong type.
type IllegalTypeError struct {
	Service   string
	Attribute string
	Expected  reflect.Type
	Got       reflect.Type // nil for a nil value
}

func (e *IllegalTypeError) Error() string {
	got := "nil"
	if e.Got != nil {
		got = e.Got.String()
	}
	msg := fmt.Sprintf("%s should be %s but is %s", e.Attribute, e.Expected, got)
	if e.Service == "" {
		return msg
	}
	return e.Service + ": " + msg
}

func (e *IllegalTypeError) Unwrap() error { return ErrIllegalType }

// RequiredArgumentNotFoundError lists the required attributes missing from
// a construction map.
type RequiredArgumentNotFoundError struct {
	Service string
	Missing []string
}

func (e *RequiredArgumentNotFoundError) Error() string {
	return fmt.Sprintf("%s: required argument not found: %s", e.Service, strings.Join(e.Missing, ", "))
}

func (e *RequiredArgumentNotFoundError) Unwrap() error { return ErrRequiredArgumentNotFound }

// UnknownAttributeError reports a construction key with no declared attribute.
type UnknownAttributeError struct {
	Service   string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("%s: unknown attribute %q", e.Service, e.Attribute)
}

func (e *UnknownAttributeError) Unwrap() error { return ErrUnknownAttribute }

// IllegalMethodDefinedError lists the exported methods, other than Call,
// declared by a service type.
type IllegalMethodDefinedError struct {
	Service string
	Methods []string
}

func (e *IllegalMethodDefinedError) Error() string {
	return fmt.Sprintf("%s: only Call may be exported, found %s", e.Service, strings.Join(e.Methods, ", "))
}

func (e *IllegalMethodDefinedError) Unwrap() error { return ErrIllegalMethodDefined }
