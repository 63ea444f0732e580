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
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// logEventName is the otel event name LogEvent records under.
const logEventName = "log"

type otelTracer struct {
	name        string
	provider    trace.TracerProvider
	propagators propagation.TextMapPropagator
}

// NewOtelTracer returns a Tracer backed by OpenTelemetry. Only
// WithTracerName, WithTracerProvider and WithPropagators apply; unset
// values resolve to the otel globals on every call.
func NewOtelTracer(opts ...Option) Tracer {
	return newOtelTracer(newConfig(opts))
}

func newOtelTracer(c *config) *otelTracer {
	return &otelTracer{
		name:        c.tracerName,
		provider:    c.provider,
		propagators: c.propagators,
	}
}

func (t *otelTracer) tracerProvider() trace.TracerProvider {
	if t.provider != nil {
		return t.provider
	}
	return otel.GetTracerProvider()
}

func (t *otelTracer) textMapPropagator() propagation.TextMapPropagator {
	if t.propagators != nil {
		return t.propagators
	}
	return otel.GetTextMapPropagator()
}

func (t *otelTracer) StartSpan(ctx context.Context, operationName string, tags Tags) (context.Context, Span) {
	ctx, span := t.tracerProvider().Tracer(t.name).Start(ctx, operationName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attributes(tags)...),
	)
	return ctx, &otelSpan{span: span, bag: baggage.FromContext(ctx)}
}

func (t *otelTracer) Inject(sc SpanContext, format Format, carrier http.Header) error {
	if sc == nil || carrier == nil {
		return nil
	}
	if format != HTTPHeaders {
		return ErrUnsupportedFormat
	}

	osc, err := toOtelSpanContext(sc)
	if err != nil {
		return err
	}

	ctx := trace.ContextWithSpanContext(context.Background(), osc.sc)
	if osc.bag.Len() > 0 {
		ctx = baggage.ContextWithBaggage(ctx, osc.bag)
	}
	t.textMapPropagator().Inject(ctx, propagation.HeaderCarrier(carrier))
	return nil
}

// toOtelSpanContext accepts span contexts produced by other Tracers as long
// as their IDs are otel-compatible hex strings.
func toOtelSpanContext(sc SpanContext) (otelSpanContext, error) {
	if osc, ok := sc.(otelSpanContext); ok {
		return osc, nil
	}

	traceID, err := trace.TraceIDFromHex(sc.TraceID())
	if err != nil {
		return otelSpanContext{}, fmt.Errorf("resttrace: trace id %q: %w", sc.TraceID(), err)
	}
	spanID, err := trace.SpanIDFromHex(sc.SpanID())
	if err != nil {
		return otelSpanContext{}, fmt.Errorf("resttrace: span id %q: %w", sc.SpanID(), err)
	}

	var members []baggage.Member
	for k, v := range sc.Baggage() {
		if m, err := baggage.NewMemberRaw(k, v); err == nil {
			members = append(members, m)
		}
	}
	bag, _ := baggage.New(members...)

	return otelSpanContext{
		sc: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}),
		bag: bag,
	}, nil
}

type otelSpan struct {
	span trace.Span
	bag  baggage.Baggage
}

func (s *otelSpan) SetTag(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
	if b, ok := value.(bool); ok && key == tagError && b {
		s.span.SetStatus(codes.Error, "")
	}
}

func (s *otelSpan) LogEvent(key string, value any) {
	s.span.AddEvent(logEventName, trace.WithAttributes(toAttribute(key, value)))
}

func (s *otelSpan) Finish() {
	s.span.End()
}

func (s *otelSpan) Context() SpanContext {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return otelSpanContext{sc: sc, bag: s.bag}
}

type otelSpanContext struct {
	sc  trace.SpanContext
	bag baggage.Baggage
}

func (c otelSpanContext) TraceID() string { return c.sc.TraceID().String() }
func (c otelSpanContext) SpanID() string  { return c.sc.SpanID().String() }

func (c otelSpanContext) Baggage() map[string]string {
	members := c.bag.Members()
	if len(members) == 0 {
		return nil
	}
	m := make(map[string]string, len(members))
	for _, member := range members {
		m[member.Key()] = member.Value()
	}
	return m
}

func attributes(tags Tags) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		kvs = append(kvs, toAttribute(k, v))
	}
	return kvs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.Stringer(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
