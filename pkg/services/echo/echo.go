// Package echo implements a service that repeats a message.
//
// When the caller supplies a continuation returning a string, its result
// replaces the message before it is repeated.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/kylerisse/bottled/pkg/service"
)

// Name is the registered name for this service.
const Name = "echo"

// MaxTimes is the largest accepted Times.
const MaxTimes = 1000

// Echo repeats Message Times times, separated by spaces.
type Echo struct {
	Message string `service:"message,required"`
	Times   int    `service:"times"`
	Upcase  bool   `service:"upcase"`
	Meta    any    `service:"meta"`
}

// Definition is the echo service definition.
var Definition = service.MustDefine[Echo](Name)

// Call repeats the message. A zero Times repeats it once; Times outside
// 0..MaxTimes fails.
func (e *Echo) Call(ctx context.Context, yield service.Continuation) *service.Response {
	if e.Times < 0 {
		return service.Failure(
			service.F("reason", fmt.Sprintf("times must not be negative, got %d", e.Times)),
		)
	}
	if e.Times > MaxTimes {
		return service.Failure(
			service.F("reason", fmt.Sprintf("times must not exceed %d, got %d", MaxTimes, e.Times)),
		)
	}

	msg := e.Message
	if s, ok := yield.Yield(ctx).(string); ok {
		msg = s
	}
	if e.Upcase {
		msg = strings.ToUpper(msg)
	}

	times := max(e.Times, 1)
	// Equivalent to slices.Repeat([]string{msg}, times), which needs Go 1.23.
	parts := make([]string, times)
	for i := range parts {
		parts[i] = msg
	}
	fields := []service.Field{
		service.F("message", strings.Join(parts, " ")),
		service.F("times", times),
	}
	if e.Meta != nil {
		fields = append(fields, service.F("meta", e.Meta))
	}
	return service.Success(fields...)
}

// Register adds the echo service to reg.
func Register(reg *service.Registry) error {
	return reg.Register(Definition)
}
