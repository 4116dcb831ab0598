//go:build !no_otel

// Package otel provides the tracer used for dispatch and polling
// operations. Building with the `no_otel` tag swaps in a no-op shim
// and drops the OpenTelemetry dependency.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
