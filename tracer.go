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
	"context"
	"errors"
	"net/http"
	"sync/atomic"
)

// Format identifies how a SpanContext is encoded into a carrier.
type Format int

const (
	// HTTPHeaders encodes a SpanContext as HTTP request headers.
	HTTPHeaders Format = iota
)

// ErrUnsupportedFormat is returned by Tracer.Inject for unknown carrier formats.
var ErrUnsupportedFormat = errors.New("resttrace: unsupported carrier format")

// Tags holds span tags. Values are expected to be string, bool or int.
type Tags map[string]any

// SpanContext is the propagable identity of a Span.
type SpanContext interface {
	TraceID() string
	SpanID() string
	Baggage() map[string]string
}

// Span is a single traced operation.
type Span interface {
	SetTag(key string, value any)
	LogEvent(key string, value any)
	Finish()
	Context() SpanContext
}

// Tracer is the boundary to a tracing backend.
//
// StartSpan must never fail; backends that cannot record a span return
// a span that discards every call. Inject is a no-op for a nil SpanContext.
type Tracer interface {
	StartSpan(ctx context.Context, operationName string, tags Tags) (context.Context, Span)
	Inject(sc SpanContext, format Format, carrier http.Header) error
}

// NoopTracer creates spans that discard everything.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string, _ Tags) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (NoopTracer) Inject(SpanContext, Format, http.Header) error { return nil }

type noopSpan struct{}

func (noopSpan) SetTag(string, any)   {}
func (noopSpan) LogEvent(string, any) {}
func (noopSpan) Finish()              {}
func (noopSpan) Context() SpanContext { return nil }

type tracerHolder struct{ Tracer }

var globalTracer atomic.Pointer[tracerHolder]

// SetGlobalTracer sets the process-wide tracer used when no tracer is
// passed through options. Call it once at startup, before any traced request.
func SetGlobalTracer(t Tracer) {
	if t == nil {
		globalTracer.Store(nil)
		return
	}
	globalTracer.Store(&tracerHolder{t})
}

// GlobalTracer returns the process-wide tracer. Unless SetGlobalTracer was
// called, this is an OpenTelemetry tracer bound to the global otel provider
// and propagator.
func GlobalTracer() Tracer {
	if h := globalTracer.Load(); h != nil {
		return h.Tracer
	}
	return NewOtelTracer()
}
