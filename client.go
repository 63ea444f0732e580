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

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a Doer so every Do call runs inside a span.
type Client struct {
	next Doer
	inst *instrumentation
}

// NewClient wraps next, or http.DefaultClient when next is nil. Wrapping a
// *Client returns it unchanged.
func NewClient(next Doer, opts ...Option) *Client {
	if c, ok := next.(*Client); ok {
		return c
	}
	if next == nil {
		next = http.DefaultClient
	}
	return &Client{next: next, inst: newInstrumentation(opts)}
}

// Do sends req through the wrapped Doer. The response and error are
// returned exactly as the Doer produced them.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return execute(req.Context(), c.inst, requestOf(req), func(ctx context.Context) (*http.Response, error) {
		r := req.WithContext(ctx)
		if c.inst.propagator.Enabled() {
			r.Header = cloneHeader(req.Header)
			c.inst.propagator.Inject(ctx, r.Header)
		}
		return c.next.Do(r)
	}, responseStatus)
}
