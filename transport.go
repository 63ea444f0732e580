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
	"net/http"
)

// Transport traces requests sent through an http.RoundTripper.
//
// When the request context already carries a span started by Client or
// TraceClient, Transport only injects that span's context. Otherwise it
// creates and finishes the span itself.
type Transport struct {
	base http.RoundTripper
	inst *instrumentation
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
// Wrapping a *Transport returns it unchanged.
func NewTransport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	return newTransport(base, newInstrumentation(opts))
}

func newTransport(base http.RoundTripper, inst *instrumentation) http.RoundTripper {
	if t, ok := base.(*Transport); ok {
		return t
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, inst: inst}
}

// Unwrap returns the wrapped RoundTripper.
func (t *Transport) Unwrap() http.RoundTripper {
	return t.base
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if s := scopeFromContext(req.Context()); s != nil && !s.finished() {
		return t.transmit(req)
	}

	return execute(req.Context(), t.inst, requestOf(req), func(ctx context.Context) (*http.Response, error) {
		return t.transmit(req.WithContext(ctx))
	}, responseStatus)
}

// transmit injects on a shallow copy, a RoundTripper must not modify the
// caller's request.
func (t *Transport) transmit(req *http.Request) (*http.Response, error) {
	if t.inst.propagator.Enabled() {
		r := new(http.Request)
		*r = *req
		r.Header = cloneHeader(req.Header)
		t.inst.propagator.Inject(r.Context(), r.Header)
		req = r
	}
	return t.base.RoundTrip(req)
}

// WrapHTTPClient returns a copy of c whose transport is traced. A nil c
// wraps http.DefaultClient.
func WrapHTTPClient(c *http.Client, opts ...Option) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	wc := *c
	wc.Transport = NewTransport(c.Transport, opts...)
	return &wc
}

func requestOf(req *http.Request) Request {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var url string
	if req.URL != nil {
		url = req.URL.String()
	}
	return Request{Method: method, URL: url}
}

func responseStatus(res *http.Response) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}
