// Package dispatch invokes registered services by name and records each
// invocation in the logs and, optionally, in Prometheus metrics.
//
// A Dispatcher can be throttled with a token-bucket limiter; the wait
// honours context cancellation.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/kylerisse/bottled/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Outcome labels used in logs and metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// UnknownServiceLabel is the service label recorded for names that are not
// registered, so arbitrary input cannot create new metric series.
const UnknownServiceLabel = "unknown"

// Dispatcher invokes services from a Registry.
type Dispatcher struct {
	registry *service.Registry
	logger   *logrus.Logger
	limiter  *rate.Limiter
	metrics  *metrics
}

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher) error

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *logrus.Logger) Option {
	return func(d *Dispatcher) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		d.logger = l
		return nil
	}
}

// WithLimiter throttles invocations. Dispatch waits for a token before
// calling the service.
func WithLimiter(l *rate.Limiter) Option {
	return func(d *Dispatcher) error {
		if l == nil {
			return fmt.Errorf("limiter must not be nil")
		}
		d.limiter = l
		return nil
	}
}

// WithMetrics registers invocation collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) error {
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		d.metrics = m
		return nil
	}
}

// New creates a Dispatcher over reg.
func New(reg *service.Registry, opts ...Option) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("dispatch: registry must not be nil")
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	d := &Dispatcher{
		registry: reg,
		logger:   discard,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
	}

	return d, nil
}

// Registry returns the registry the Dispatcher invokes from.
func (d *Dispatcher) Registry() *service.Registry {
	return d.registry
}

// Dispatch invokes the named service with attrs.
//
// Every invocation gets a unique ID that is attached to its log entries.
// Unknown names fail before waiting on the limiter.
// Construction and lookup errors are returned wrapped, so errors.Is works
// with the service package sentinels. A failed Response is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, attrs map[string]any, yield service.Continuation) (*service.Response, error) {
	log := d.logger.WithFields(logrus.Fields{
		"service":    name,
		"invocation": uuid.NewString(),
	})

	svc, err := d.registry.Lookup(name)
	if err != nil {
		log.WithError(err).Error("Unknown service")
		d.metrics.observe(UnknownServiceLabel, OutcomeError, 0)
		return nil, fmt.Errorf("dispatch %s: %w", name, err)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("Invocation not admitted")
			d.metrics.observe(name, OutcomeError, 0)
			return nil, fmt.Errorf("dispatch %s: %w", name, err)
		}
	}

	start := time.Now()
	resp, err := svc.Call(ctx, attrs, yield)
	elapsed := time.Since(start)
	log = log.WithField("duration", elapsed)

	if err != nil {
		log.WithError(err).Warn("Invocation rejected")
		d.metrics.observe(name, OutcomeError, elapsed)
		return nil, fmt.Errorf("dispatch %s: %w", name, err)
	}

	if resp.Failed() {
		log.WithFields(logrus.Fields{
			"outcome": OutcomeFailure,
			"keys":    resp.Keys(),
		}).Info("Invocation failed")
		d.metrics.observe(name, OutcomeFailure, elapsed)
		return resp, nil
	}

	log.WithFields(logrus.Fields{
		"outcome": OutcomeSuccess,
		"keys":    resp.Keys(),
	}).Debug("Invocation succeeded")
	d.metrics.observe(name, OutcomeSuccess, elapsed)
	return resp, nil
}
