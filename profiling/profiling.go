// Package profiling provides named duration scopes used to bracket and
// diagnose boot phases. Scopes are backed by OpenTelemetry spans and a
// duration histogram, and always record their duration on every exit path.
package profiling

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/GoCodeAlone/bootstrap"

// Logger is the subset of the runtime logger used by profiling.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Profiler begins named timed scopes.
type Profiler interface {
	// Begin starts a scope named name, nested under any scope carried by ctx.
	// The caller must End the returned scope; use defer.
	Begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Scope)
}

// Scope is a running timed scope.
type Scope interface {
	Name() string
	// Fail marks the scope failed. The first cause wins.
	Fail(err error)
	Failed() bool
	// End records the duration. Calling End again returns the first
	// measured duration.
	End() time.Duration
}

// Option configures an OtelProfiler.
type Option func(*OtelProfiler)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *OtelProfiler) { p.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *OtelProfiler) { p.meter = mp.Meter(instrumentationName) }
}

// OtelProfiler implements Profiler on top of OpenTelemetry.
type OtelProfiler struct {
	tracer   trace.Tracer
	meter    metric.Meter
	duration metric.Float64Histogram
	logger   Logger
}

// NewOtelProfiler builds a profiler using the global OpenTelemetry providers
// unless overridden by options. Configure them with otel.SetTracerProvider
// and otel.SetMeterProvider before booting to export scopes.
func NewOtelProfiler(logger Logger, opts ...Option) *OtelProfiler {
	p := &OtelProfiler{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	histogram, err := p.meter.Float64Histogram(
		"bootstrap.scope.duration",
		metric.WithDescription("Duration of profiled boot scopes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("Failed to create scope duration histogram", "error", err)
	}
	p.duration = histogram
	return p
}

// Begin starts a span and returns the scope wrapping it.
func (p *OtelProfiler) Begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Scope) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	p.logger.Debug("Scope started", "scope", name)
	return ctx, &otelScope{
		name:     name,
		start:    time.Now(),
		span:     span,
		profiler: p,
		attrs:    attrs,
	}
}

type otelScope struct {
	name     string
	start    time.Time
	span     trace.Span
	profiler *OtelProfiler
	attrs    []attribute.KeyValue

	mu      sync.Mutex
	failure error
	failed  bool
	ended   bool
	elapsed time.Duration
}

func (s *otelScope) Name() string { return s.name }

func (s *otelScope) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return
	}
	s.failed = true
	s.failure = err
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Error, "failed")
	}
}

func (s *otelScope) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// End closes the span and records the duration histogram.
func (s *otelScope) End() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.elapsed
	}
	s.ended = true
	s.elapsed = time.Since(s.start)

	outcome := "completed"
	if s.failed {
		outcome = "failed"
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	if s.profiler.duration != nil {
		attrs := append([]attribute.KeyValue{
			attribute.String("scope", s.name),
			attribute.String("outcome", outcome),
		}, s.attrs...)
		s.profiler.duration.Record(context.Background(), s.elapsed.Seconds(), metric.WithAttributes(attrs...))
	}

	if s.failed {
		s.profiler.logger.Error("Scope failed", "scope", s.name, "duration", s.elapsed, "error", s.failure)
	} else {
		s.profiler.logger.Debug("Scope completed", "scope", s.name, "duration", s.elapsed)
	}
	return s.elapsed
}
