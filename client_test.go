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


package resttrace_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubonzi/resttrace"
	"github.com/dubonzi/resttrace/tracertest"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.code }

func respond(code int) doerFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: code, Header: make(http.Header), Request: req}, nil
	}
}

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	return req
}

func TestClientSuccess(t *testing.T) {
	tracer := tracertest.New()
	client := resttrace.NewClient(respond(http.StatusOK), resttrace.WithTracer(tracer))

	res, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	spans := tracer.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, 1, spans[0].FinishCount())
	assert.Equal(t, map[string]any{
		"span.kind":        "client",
		"http.method":      "get",
		"http.url":         "http://example.com/",
		"http.status_code": 200,
	}, spans[0].Tags())
	assert.False(t, spans[0].FinishTime().Before(spans[0].StartTime()))
}

func TestClientFailure(t *testing.T) {
	tracer := tracertest.New()
	boom := &statusError{code: 500, msg: "boom"}
	client := resttrace.NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), resttrace.WithTracer(tracer))

	res, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	assert.Nil(t, res)
	assert.Same(t, boom, err)

	spans := tracer.Spans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, 1, span.FinishCount())
	status, _ := span.Tag("http.status_code")
	isErr, _ := span.Tag("error")
	assert.Equal(t, 500, status)
	assert.Equal(t, true, isErr)

	logs := span.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "message", logs[0].Key)
	assert.Equal(t, "boom", logs[0].Value)
}

func TestClientWrappedStatusError(t *testing.T) {
	tracer := tracertest.New()
	client := resttrace.NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("calling upstream: %w", &statusError{code: 503, msg: "unavailable"})
	}), resttrace.WithTracer(tracer))

	_, err := client.Do(newRequest(t, http.MethodDelete, "http://example.com/items/1"))
	require.Error(t, err)

	span := tracer.Spans()[0]
	status, _ := span.Tag("http.status_code")
	method, _ := span.Tag("http.method")
	assert.Equal(t, 503, status)
	assert.Equal(t, "delete", method)
	assert.Equal(t, "calling upstream: unavailable", span.Logs()[0].Value)
}

func TestClientCancelledRequest(t *testing.T) {
	tracer := tracertest.New()
	ctx, cancel := context.WithCancel(context.Background())
	client := resttrace.NewClient(doerFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		<-req.Context().Done()
		return nil, req.Context().Err()
	}), resttrace.WithTracer(tracer))

	_, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/").WithContext(ctx))
	require.ErrorIs(t, err, context.Canceled)

	span := tracer.Spans()[0]
	assert.Equal(t, 1, span.FinishCount())
	isErr, _ := span.Tag("error")
	assert.Equal(t, true, isErr)
	_, hasStatus := span.Tag("http.status_code")
	assert.False(t, hasStatus)
}

func TestClientPanicFinishesSpan(t *testing.T) {
	tracer := tracertest.New()
	client := resttrace.NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		panic("kaboom")
	}), resttrace.WithTracer(tracer))

	assert.PanicsWithValue(t, "kaboom", func() {
		client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	})

	span := tracer.Spans()[0]
	assert.Equal(t, 1, span.FinishCount())
	isErr, _ := span.Tag("error")
	assert.Equal(t, true, isErr)
	assert.Equal(t, "panic: kaboom", span.Logs()[0].Value)
}

func TestClientPropagation(t *testing.T) {
	tracer := tracertest.New(tracertest.WithIDs("t1", "s1"))
	var sent http.Header
	client := resttrace.NewClient(doerFunc(func(req *http.Request) (*http.Response, error) {
		sent = req.Header
		return respond(http.StatusOK)(req)
	}), resttrace.WithTracer(tracer))

	req := newRequest(t, http.MethodGet, "http://example.com/")
	req.Header.Set("Accept", "application/json")
	_, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, "t1", sent.Get(tracertest.TraceIDHeader))
	assert.Equal(t, "s1", sent.Get(tracertest.SpanIDHeader))
	assert.Equal(t, "application/json", sent.Get("Accept"))
	assert.Empty(t, req.Header.Get(tracertest.TraceIDHeader), "caller's headers must not change")
}

func TestClientPropagationDisabled(t *testing.T) {
	tracer := tracertest.New()
	var sent http.Header
	client := resttrace.NewClient(doerFunc(func(req *http.Request) (*http.Response, error) {
		sent = req.Header
		return respond(http.StatusOK)(req)
	}), resttrace.WithTracer(tracer), resttrace.WithPropagation(false))

	_, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	require.NoError(t, err)

	assert.Empty(t, sent.Get(tracertest.TraceIDHeader))
	assert.Len(t, tracer.FinishedSpans(), 1)
}

func TestNewClientIsIdempotent(t *testing.T) {
	tracer := tracertest.New()
	client := resttrace.NewClient(respond(http.StatusOK), resttrace.WithTracer(tracer))

	again := resttrace.NewClient(client, resttrace.WithTracer(tracer))
	assert.Same(t, client, again)

	_, err := again.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	require.NoError(t, err)
	assert.Len(t, tracer.Spans(), 1)
}

func TestClientConcurrentRequestsDoNotShareContext(t *testing.T) {
	var n atomic.Int64
	tracer := tracertest.New(tracertest.WithIDGenerator(func() (string, string) {
		id := strconv.FormatInt(n.Add(1), 10)
		return "trace-" + id, "span-" + id
	}))

	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	client := resttrace.NewClient(doerFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		seen[req.URL.String()] = req.Header.Get(tracertest.SpanIDHeader)
		mu.Unlock()
		return respond(http.StatusOK)(req)
	}), resttrace.WithTracer(tracer))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := client.Do(newRequest(t, http.MethodGet, fmt.Sprintf("http://example.com/%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	spans := tracer.Spans()
	require.Len(t, spans, 50)
	for _, span := range spans {
		url, _ := span.Tag("http.url")
		assert.Equal(t, span.Context().SpanID(), seen[url.(string)])
		assert.Equal(t, 1, span.FinishCount())
	}
}

// panicTracer fails on every call, like a misconfigured backend.
type panicTracer struct{}

func (panicTracer) StartSpan(context.Context, string, resttrace.Tags) (context.Context, resttrace.Span) {
	panic("backend down")
}

func (panicTracer) Inject(resttrace.SpanContext, resttrace.Format, http.Header) error {
	panic("backend down")
}

func TestClientSurvivesTracerFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	client := resttrace.NewClient(respond(http.StatusAccepted),
		resttrace.WithTracer(panicTracer{}),
		resttrace.WithLogger(logger),
	)

	res, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "start span", hook.LastEntry().Data["op"])
}

// brokenSpan panics while being tagged.
type brokenSpan struct {
	finished atomic.Int32
}

func (*brokenSpan) SetTag(string, any)             { panic("tag failed") }
func (*brokenSpan) LogEvent(string, any)           { panic("log failed") }
func (s *brokenSpan) Finish()                      { s.finished.Add(1) }
func (*brokenSpan) Context() resttrace.SpanContext { return nil }

type brokenTracer struct {
	span *brokenSpan
}

func (b brokenTracer) StartSpan(ctx context.Context, _ string, _ resttrace.Tags) (context.Context, resttrace.Span) {
	return ctx, b.span
}

func (brokenTracer) Inject(resttrace.SpanContext, resttrace.Format, http.Header) error { return nil }

func TestClientFinishesSpanWhenTaggingFails(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	span := &brokenSpan{}
	boom := &statusError{code: 500, msg: "boom"}
	client := resttrace.NewClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), resttrace.WithTracer(brokenTracer{span: span}), resttrace.WithLogger(logger))

	_, err := client.Do(newRequest(t, http.MethodGet, "http://example.com/"))
	assert.Same(t, boom, err)
	assert.Equal(t, int32(1), span.finished.Load())
}
