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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	tagSpanKind       = "span.kind"
	tagHTTPMethod     = "http.method"
	tagHTTPURL        = "http.url"
	tagHTTPStatusCode = "http.status_code"
	tagError          = "error"

	spanKindClient = "client"
	logKeyMessage  = "message"
)

// Request describes the outbound call a span is created for.
type Request struct {
	Method string
	URL    string
}

// instrumentation is the resolved form of the options shared by every
// integration point.
type instrumentation struct {
	tracer     Tracer
	hideURL    bool
	propagator *Propagator
	log        logrus.FieldLogger
}

func newInstrumentation(opts []Option) *instrumentation {
	c := newConfig(opts)
	return &instrumentation{
		tracer:     c.resolveTracer(),
		hideURL:    c.hideURL,
		propagator: &Propagator{enabled: c.propagate, log: c.log},
		log:        c.log,
	}
}

func (i *instrumentation) tags(req Request) Tags {
	return Tags{
		tagSpanKind:   spanKindClient,
		tagHTTPMethod: strings.ToLower(req.Method),
		tagHTTPURL:    i.url(req.URL),
	}
}

func (i *instrumentation) url(raw string) string {
	if !i.hideURL {
		return raw
	}
	raw, _, _ = strings.Cut(raw, "#")
	raw, _, _ = strings.Cut(raw, "?")
	if scheme, rest, ok := strings.Cut(raw, "://"); ok {
		if at := strings.LastIndex(rest, "@"); at >= 0 && !strings.Contains(rest[:at], "/") {
			rest = rest[at+1:]
		}
		return scheme + "://" + rest
	}
	return raw
}

// startScope starts the request's span and returns a context carrying it.
// The returned context is the only way the span reaches the propagator.
func (i *instrumentation) startScope(ctx context.Context, req Request, owner any) (context.Context, *scope) {
	var (
		span    Span
		spanCtx context.Context
	)
	guard(i.log, "start span", func() {
		spanCtx, span = i.tracer.StartSpan(ctx, OperationName, i.tags(req))
	})
	if span == nil || spanCtx == nil {
		spanCtx, span = ctx, noopSpan{}
	}

	s := &scope{span: span, tracer: i.tracer, owner: owner, log: i.log}
	return context.WithValue(spanCtx, scopeKey{}, s), s
}

type scopeKey struct{}

// scope owns one span for the lifetime of one request.
type scope struct {
	span   Span
	tracer Tracer
	owner  any
	log    logrus.FieldLogger

	once sync.Once
	done atomic.Bool
}

func scopeFromContext(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

func (s *scope) finished() bool {
	return s.done.Load()
}

func (s *scope) succeed(status int) {
	s.end(func() {
		s.span.SetTag(tagHTTPStatusCode, status)
	})
}

func (s *scope) fail(err error) {
	s.end(func() {
		if code, ok := StatusCode(err); ok {
			s.span.SetTag(tagHTTPStatusCode, code)
		}
		s.span.SetTag(tagError, true)
		s.span.LogEvent(logKeyMessage, err.Error())
	})
}

// end runs annotate and finishes the span. Only the first call has any
// effect, and Finish runs even when annotate panics.
func (s *scope) end(annotate func()) {
	s.once.Do(func() {
		defer func() {
			s.done.Store(true)
			guard(s.log, "finish span", s.span.Finish)
		}()
		guard(s.log, "tag span", annotate)
	})
}

// Execute runs call inside a span created by tracer (the global tracer
// when nil). The result and error of call are returned unchanged; status
// extracts the status code tagged on success.
func Execute[T any](ctx context.Context, tracer Tracer, req Request, call func(context.Context) (T, error), status func(T) int) (T, error) {
	return execute(ctx, newInstrumentation([]Option{WithTracer(tracer)}), req, call, status)
}

func execute[T any](ctx context.Context, i *instrumentation, req Request, call func(context.Context) (T, error), status func(T) int) (res T, err error) {
	ctx, s := i.startScope(ctx, req, nil)
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	res, err = call(ctx)
	if err != nil {
		s.fail(err)
		return res, err
	}

	s.end(func() {
		s.span.SetTag(tagHTTPStatusCode, status(res))
	})
	return res, nil
}

// guard runs fn and logs instead of propagating a panic, so tracer
// failures never change the outcome of a request.
func guard(log logrus.FieldLogger, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("op", op).Warnf("tracer failure: %v", r)
		}
	}()
	fn()
}
