// Package service defines the conventions for building service objects.
//
// A service object is a single-purpose command: a Go struct whose tagged
// fields are its whitelisted input attributes, and whose only exported
// method is Call. A Definition is built once per service type with Define,
// and turns a raw attribute map into a validated instance before running it.
//
// Results from a service are captured in a Response, which provides a
// uniform shape regardless of service: success/failure and an ordered set
// of named values.
//
// The Registry provides lookup by name, allowing services to be invoked
// from configuration or the command line at runtime.
package service

import (
	"context"
	"sync"
)

// Service is the interface that all service objects must implement.
// It is the only exported method a service type may declare.
type Service interface {
	// Call runs the business logic and returns a Response built with
	// Success or Failure. yield may be nil.
	Call(ctx context.Context, yield Continuation) *Response
}

// Continuation is an optional callback supplied by the caller of a service.
// The business logic may run it and use its result.
type Continuation func(ctx context.Context) any

// Given reports whether the caller supplied a continuation.
func (c Continuation) Given() bool {
	return c != nil
}

// Yield runs the continuation and returns its result.
// It returns nil when no continuation was given.
func (c Continuation) Yield(ctx context.Context) any {
	if c == nil {
		return nil
	}
	return c(ctx)
}

// once wraps c so that it runs at most once; later calls return the
// first result.
func (c Continuation) once() Continuation {
	if c == nil {
		return nil
	}
	var (
		o   sync.Once
		out any
	)
	return func(ctx context.Context) any {
		o.Do(func() { out = c(ctx) })
		return out
	}
}
