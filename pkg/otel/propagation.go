package otel

import (
	"go.opentelemetry.io/otel/propagation"
)

// NewCompositeTextMapPropagator W3C Trace Context + Baggage
func NewCompositeTextMapPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
