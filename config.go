// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package resttrace

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dubonzi/resttrace"

// OperationName is the name of every span created by this package.
const OperationName = "restclient.execute"

var log logrus.FieldLogger = logrus.WithField("category", "resttrace")

type config struct {
	tracer      Tracer
	tracerName  string
	provider    trace.TracerProvider
	propagators propagation.TextMapPropagator
	hideURL     bool
	propagate   bool
	log         logrus.FieldLogger
}

// Option configures the instrumentation.
type Option func(*config)

func newConfig(opts []Option) *config {
	c := &config{
		tracerName: tracerName,
		propagate:  true,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveTracer picks the Tracer spans are created with. An explicit
// WithTracer wins, then an OpenTelemetry tracer built from the provider
// and propagator options, then the global tracer.
func (c *config) resolveTracer() Tracer {
	switch {
	case c.tracer != nil:
		return c.tracer
	case c.provider != nil || c.propagators != nil:
		return newOtelTracer(c)
	default:
		return GlobalTracer()
	}
}

// WithTracer sets the Tracer used for spans and injection. It takes
// precedence over WithTracerProvider and WithPropagators.
func WithTracer(t Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithTracerName sets the instrumentation name given to the OpenTelemetry
// tracer provider.
func WithTracerName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.tracerName = name
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider. Defaults to the
// global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		c.provider = provider
	}
}

// WithPropagators sets the OpenTelemetry propagator used to inject span
// context into outbound headers. Defaults to the global propagator.
func WithPropagators(propagators propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagators = propagators
	}
}

// WithHideURL strips userinfo and query from the http.url tag.
func WithHideURL(hide bool) Option {
	return func(c *config) {
		c.hideURL = hide
	}
}

// WithPropagation toggles header injection. Spans are created either way.
func WithPropagation(propagate bool) Option {
	return func(c *config) {
		c.propagate = propagate
	}
}

// WithLogger sets the logger that receives swallowed tracer failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) {
		if logger != nil {
			c.log = logger
		}
	}
}

// Config is the one-shot instrumentation setup. A nil Tracer means the
// global tracer.
type Config struct {
	Tracer    Tracer
	Propagate bool
}

// Options converts c into the equivalent Option list.
func (c Config) Options() []Option {
	opts := []Option{WithPropagation(c.Propagate)}
	if c.Tracer != nil {
		opts = append(opts, WithTracer(c.Tracer))
	}
	return opts
}
