// Package tracing provides a strata plugin that opens one
// OpenTelemetry span per store action call. The span ends when the
// call settles, which for suspending actions is promise settlement,
// and carries the store id, action name, and outcome status.
//
// Usage:
//
//	c := strata.NewContainer()
//	c.Use(tracing.Plugin())
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/strata-dev/strata/pkg/strata"
)

// defaultTracerName identifies spans produced by this plugin.
const defaultTracerName = "strata"

// Config configures the tracing plugin.
type Config struct {
	// TracerName is the name of the tracer (default: "strata").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global
	// otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// Filter decides which action calls to trace. Return false to
	// skip. If nil, every call is traced.
	Filter func(ac *strata.ActionContext) bool

	// AttributeExtractor adds custom attributes per traced call.
	AttributeExtractor func(ac *strata.ActionContext) []attribute.KeyValue
}

// Option configures the tracing plugin.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithFilter sets the call filter.
func WithFilter(filter func(ac *strata.ActionContext) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ac *strata.ActionContext) []attribute.KeyValue) Option {
	return func(c *Config) {
		c.AttributeExtractor = extractor
	}
}

// Plugin returns a container plugin that traces every action call on
// stores created after registration.
func Plugin(opts ...Option) strata.Plugin {
	config := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	tracer := config.TracerProvider.Tracer(config.TracerName)

	return func(ctx *strata.PluginContext) map[string]any {
		store := ctx.Store

		store.OnAction(func(ac *strata.ActionContext) {
			if config.Filter != nil && !config.Filter(ac) {
				return
			}

			_, span := tracer.Start(context.Background(),
				store.ID()+"."+ac.Name,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("strata.store", store.ID()),
					attribute.String("strata.action", ac.Name),
					attribute.Int("strata.args", len(ac.Args)),
				),
			)
			if config.AttributeExtractor != nil {
				span.SetAttributes(config.AttributeExtractor(ac)...)
			}

			ac.After(func(any) {
				span.SetStatus(codes.Ok, "")
				span.End()
			})
			ac.OnError(func(err error) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
			})
		}, strata.Detached())

		return nil
	}
}
