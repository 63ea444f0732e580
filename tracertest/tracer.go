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


// Package tracertest provides an in-memory resttrace.Tracer that records
// spans for inspection in tests.
package tracertest

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dubonzi/resttrace"
)

// Header names written by Inject.
const (
	TraceIDHeader = "Test-Traceid"
	SpanIDHeader  = "Test-Spanid"
	BaggagePrefix = "Test-Baggage-"
)

// Tracer records every span it starts.
type Tracer struct {
	mu    sync.Mutex
	spans []*Span
	ids   func() (traceID, spanID string)
}

var _ resttrace.Tracer = (*Tracer)(nil)

// Option configures a Tracer.
type Option func(*Tracer)

// WithIDs makes every root span use the given identifiers.
func WithIDs(traceID, spanID string) Option {
	return func(t *Tracer) {
		t.ids = func() (string, string) { return traceID, spanID }
	}
}

// WithIDGenerator sets the function producing identifiers for new spans.
func WithIDGenerator(fn func() (traceID, spanID string)) Option {
	return func(t *Tracer) {
		t.ids = fn
	}
}

// New returns an empty Tracer. Identifiers default to random UUIDs.
func New(opts ...Option) *Tracer {
	t := &Tracer{ids: randomIDs}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func randomIDs() (string, string) {
	return uuid.NewString(), uuid.NewString()
}

type spanKey struct{}

func (t *Tracer) StartSpan(ctx context.Context, operationName string, tags resttrace.Tags) (context.Context, resttrace.Span) {
	traceID, spanID := t.ids()
	span := &Span{
		name:  operationName,
		tags:  make(map[string]any, len(tags)),
		start: now(),
	}
	for k, v := range tags {
		span.tags[k] = v
	}

	sc := SpanContext{traceID: traceID, spanID: spanID}
	if parent, ok := ctx.Value(spanKey{}).(*Span); ok {
		sc.traceID = parent.ctx.traceID
		sc.baggage = parent.ctx.baggage
		span.parentID = parent.ctx.spanID
	}
	span.ctx = sc

	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()

	return context.WithValue(ctx, spanKey{}, span), span
}

// Inject writes sc into carrier as TraceIDHeader, SpanIDHeader and one
// BaggagePrefix header per baggage item.
func (t *Tracer) Inject(sc resttrace.SpanContext, format resttrace.Format, carrier http.Header) error {
	if sc == nil {
		return nil
	}
	if format != resttrace.HTTPHeaders {
		return resttrace.ErrUnsupportedFormat
	}
	carrier.Set(TraceIDHeader, sc.TraceID())
	carrier.Set(SpanIDHeader, sc.SpanID())
	for k, v := range sc.Baggage() {
		carrier.Set(BaggagePrefix+k, v)
	}
	return nil
}

// Extract reads a SpanContext written by Inject. It returns false when the
// identifier headers are missing.
func (t *Tracer) Extract(carrier http.Header) (SpanContext, bool) {
	sc := SpanContext{
		traceID: carrier.Get(TraceIDHeader),
		spanID:  carrier.Get(SpanIDHeader),
	}
	if sc.traceID == "" || sc.spanID == "" {
		return SpanContext{}, false
	}
	for k, v := range carrier {
		if name, ok := strings.CutPrefix(k, BaggagePrefix); ok && len(v) > 0 {
			if sc.baggage == nil {
				sc.baggage = make(map[string]string)
			}
			sc.baggage[strings.ToLower(name)] = v[0]
		}
	}
	return sc, true
}

// Spans returns every span started so far, finished or not.
func (t *Tracer) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Span(nil), t.spans...)
}

// FinishedSpans returns the spans that have been finished at least once.
func (t *Tracer) FinishedSpans() []*Span {
	var finished []*Span
	for _, s := range t.Spans() {
		if s.Finished() {
			finished = append(finished, s)
		}
	}
	return finished
}

// Reset forgets all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	t.spans = nil
	t.mu.Unlock()
}

// SpanContext is the identity of a recorded span.
type SpanContext struct {
	traceID string
	spanID  string
	baggage map[string]string
}

// NewSpanContext builds a SpanContext, e.g. to feed Inject directly.
func NewSpanContext(traceID, spanID string, baggage map[string]string) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID, baggage: baggage}
}

func (c SpanContext) TraceID() string            { return c.traceID }
func (c SpanContext) SpanID() string             { return c.spanID }
func (c SpanContext) Baggage() map[string]string { return c.baggage }
