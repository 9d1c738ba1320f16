// Package telemetry provides the single package-level tracer used to
// annotate the forest's collective operations (Balance, Partition,
// Checksum, and the migration step inside Partition) with spans
// carrying rank and communicator-size attributes; comm.GRPC's RPCs
// open no spans. Adapted from junjiewwang-perf-analysis's
// telemetry.go tracer-provider setup, trimmed to the one thing the
// forest engine itself needs: a tracer to start spans on. Exporter
// wiring belongs to whatever process embeds this package.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/noctilu/forest"

// Tracer returns the package-level tracer. With no provider configured
// (otel's default), every span is a no-op — collective operations can
// always call this without any setup.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartCollective opens a span named after a collective operation with
// the rank and size of the communicator driving it attached as
// attributes, and returns the derived context together with an end
// function to defer.
func StartCollective(ctx context.Context, name string, rank, size int, attrs ...attribute.KeyValue) (context.Context, func()) {
	all := append([]attribute.KeyValue{
		attribute.Int("forest.rank", rank),
		attribute.Int("forest.size", size),
	}, attrs...)
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(all...))
	return ctx, func() { span.End() }
}
