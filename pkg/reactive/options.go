package reactive

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
)

var nodeID atomic.Uint64

// Recorder receives evaluation and update statistics. The metrics package provides a Prometheus
// implementation.
type Recorder interface {
	// Evaluated is called after a node recomputed its value.
	Evaluated(kind string, changed bool)
	// Updated is called when a node delivers an update to its observers.
	Updated(kind string, breaking bool, events int)
}

type nopRecorder struct{}

func (nopRecorder) Evaluated(string, bool) {}
func (nopRecorder) Updated(string, bool, int) {}

// Option configures a node.
type Option func(*options)

type options struct {
	name     string
	logger   *logr.Logger
	recorder Recorder
}

// WithName sets the name of a node. Names appear in logs, metrics and pipeline diagrams.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger of a node. Operators inherit the logger of their first input unless
// overridden.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.logger = &log }
}

// WithRecorder sets the statistics recorder of a node. Operators inherit the recorder of their
// first input unless overridden.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// environment is what a node passes down to the operators built on top of it.
type environment struct {
	log      logr.Logger
	recorder Recorder
}

type environmentCarrier interface {
	environment() environment
}

func newEnvironment(kind string, inputs []Observable, opts []Option) (string, environment) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	env := environment{log: logr.Discard(), recorder: nopRecorder{}}
	for _, in := range inputs {
		if c, ok := in.(environmentCarrier); ok {
			env = c.environment()
			break
		}
	}

	if o.logger != nil {
		env.log = *o.logger
	}
	if env.log.GetSink() == nil {
		env.log = logr.Discard()
	}
	if o.recorder != nil {
		env.recorder = o.recorder
	}

	name := o.name
	if name == "" {
		name = fmt.Sprintf("%s-%d", kind, nodeID.Add(1))
	}

	return name, env
}
