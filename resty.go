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
	"strings"

	"github.com/go-resty/resty/v2"
)

// TraceClient instruments cli so that every request executes inside a
// span named OperationName. Retries of one request share its span.
//
// The client's transport is wrapped with a Transport, which injects the
// span context into outbound headers unless WithPropagation(false) is
// given. Calling TraceClient again on the same client does nothing.
func TraceClient(cli *resty.Client, opts ...Option) {
	inst := newInstrumentation(opts)
	if _, ok := cli.GetClient().Transport.(*Transport); ok {
		inst.log.Debug("resty client is already traced")
		return
	}

	cli.SetTransport(newTransport(cli.GetClient().Transport, inst))

	cli.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
		if ownScope(r) != nil {
			return nil
		}
		ctx, _ := inst.startScope(r.Context(), Request{Method: r.Method, URL: requestURL(c, r)}, r)
		r.SetContext(ctx)
		return nil
	})

	cli.OnSuccess(func(_ *resty.Client, res *resty.Response) {
		if s := ownScope(res.Request); s != nil {
			s.succeed(res.StatusCode())
		}
	})

	fail := func(r *resty.Request, err error) {
		if s := ownScope(r); s != nil {
			s.fail(err)
		}
	}
	cli.OnError(fail)
	cli.OnInvalid(fail)
	cli.OnPanic(fail)
}

// Instrument applies cfg to cli. It is TraceClient with the configuration
// given as a struct.
func Instrument(cli *resty.Client, cfg Config) {
	TraceClient(cli, cfg.Options()...)
}

// ownScope returns the live span scope started for r, ignoring scopes
// inherited from a parent context.
func ownScope(r *resty.Request) *scope {
	if r == nil {
		return nil
	}
	s := scopeFromContext(r.Context())
	if s == nil || s.owner != r || s.finished() {
		return nil
	}
	return s
}

// requestURL resolves r.URL against the client's base URL the same way
// resty does before the raw request exists.
func requestURL(c *resty.Client, r *resty.Request) string {
	if strings.Contains(r.URL, "://") || c.BaseURL == "" {
		return r.URL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(r.URL, "/")
}
