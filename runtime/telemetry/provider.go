// Package telemetry provides OpenTelemetry integration for the streaming core:
// TracerProvider construction and span helpers for supervised streams.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the OTel instrumentation scope name.
	InstrumentationName = "github.com/pawelserkowski-lang/Regis-AIStudio-sub000"

	// InstrumentationVersion is the OTel instrumentation scope version.
	InstrumentationVersion = "1.0.0"

	// DefaultServiceName is used when no service name is configured.
	DefaultServiceName = "regis"
)

// Span attribute keys.
const (
	AttrProvider  = attribute.Key("regis.provider")
	AttrModel     = attribute.Key("regis.model")
	AttrRequestID = attribute.Key("regis.request_id")
	AttrOutcome   = attribute.Key("regis.outcome")
	AttrChars     = attribute.Key("regis.response_chars")
	AttrTokens    = attribute.Key("regis.token_chunks")
)

// Tracer returns a named tracer from the given TracerProvider.
// If tp is nil the global provider is used.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(InstrumentationVersion))
}

// NewTracerProvider creates a TracerProvider that exports spans via OTLP/HTTP.
// The caller is responsible for calling Shutdown on the returned provider.
func NewTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	if endpoint == "" {
		return nil, errors.New("telemetry: OTLP endpoint is required")
	}
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

// Setup installs an OTLP tracer provider and the W3C propagators globally.
// The returned function flushes and shuts the provider down.
func Setup(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	tp, err := NewTracerProvider(ctx, endpoint, serviceName)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	SetupPropagation()
	return tp.Shutdown, nil
}

// SetupPropagation configures the global OTel text-map propagator to handle
// W3C TraceContext and W3C Baggage headers.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// StartStreamSpan starts the span covering one supervised stream.
func StartStreamSpan(
	ctx context.Context, tracer trace.Tracer, provider, model, requestID string,
) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stream "+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrProvider.String(provider),
			AttrModel.String(model),
			AttrRequestID.String(requestID),
		),
	)
}

// EndStreamSpan records the outcome on span and ends it.
func EndStreamSpan(span trace.Span, outcome string, chars, tokens int, err error) {
	span.SetAttributes(
		AttrOutcome.String(outcome),
		AttrChars.Int(chars),
		AttrTokens.Int(tokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
