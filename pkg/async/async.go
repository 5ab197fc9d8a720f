// Package async provides context-aware reads of reactive sources.
//
// Reactive evaluation is synchronous. The functions in this package run the read on a separate
// goroutine so that the caller can give up on a slow evaluation when its context is canceled, and
// wrap every read into an OpenTelemetry span. An abandoned evaluation is not interrupted: it runs
// to completion and its result is dropped.
package async

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/l7mp/incremental/pkg/reactive"
)

const tracerName = "github.com/l7mp/incremental/pkg/async"

// ErrEvaluation is wrapped by errors reporting a panic raised while evaluating a source.
var ErrEvaluation = errors.New("evaluation failed")

// EvaluationError is returned when the evaluation of a source panics.
type EvaluationError struct {
	Node  string
	Cause any
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: node %s: %v", ErrEvaluation.Error(), e.Node, e.Cause)
}

// Unwrap returns both the sentinel and the panic value, if it was an error.
func (e *EvaluationError) Unwrap() []error {
	if err, ok := e.Cause.(error); ok {
		return []error{ErrEvaluation, err}
	}
	return []error{ErrEvaluation}
}

// Option configures a read.
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracerProvider sets the tracer provider used to create spans. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

type result[T any] struct {
	value reactive.VersionedValue[T]
	err   error
}

// Get returns the current value of src, or the context error if ctx is done before the
// evaluation finishes.
func Get[T any](ctx context.Context, src reactive.Source[T], opts ...Option) (T, error) {
	vv, err := GetVersioned(ctx, src, opts...)
	return vv.Value, err
}

// GetVersioned is like Get but returns the value with its version and side values.
func GetVersioned[T any](ctx context.Context, src reactive.Source[T], opts ...Option) (reactive.VersionedValue[T], error) {
	return getVersioned(ctx, newOptions(opts), src)
}

func getVersioned[T any](ctx context.Context, o *options, src reactive.Source[T]) (reactive.VersionedValue[T], error) {
	ctx, span := o.tracer.Start(ctx, "reactive.Get", trace.WithAttributes(
		attribute.String("reactive.node", src.Name()),
		attribute.String("reactive.kind", src.Kind()),
	))
	defer span.End()

	fail := func(err error) (reactive.VersionedValue[T], error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reactive.VersionedValue[T]{}, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	ch := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result[T]{err: &EvaluationError{Node: src.Name(), Cause: r}}
			}
		}()
		ch <- result[T]{value: src.GetVersionedValue(ctx)}
	}()

	select {
	case <-ctx.Done():
		return fail(ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fail(r.err)
		}
		span.SetAttributes(attribute.Int64("reactive.version", r.value.Version))
		span.SetStatus(codes.Ok, "")
		return r.value, nil
	}
}

// GetAll reads all sources concurrently and returns their values in argument order. The first
// failure cancels the remaining reads.
func GetAll[T any](ctx context.Context, srcs []reactive.Source[T], opts ...Option) ([]T, error) {
	o := newOptions(opts)
	ctx, span := o.tracer.Start(ctx, "reactive.GetAll", trace.WithAttributes(
		attribute.Int("reactive.sources", len(srcs)),
	))
	defer span.End()

	ret := make([]T, len(srcs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			vv, err := getVersioned(gCtx, o, src)
			if err != nil {
				return fmt.Errorf("reading %s: %w", src.Name(), err)
			}
			ret[i] = vv.Value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ret, nil
}
