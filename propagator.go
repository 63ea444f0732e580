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

	"github.com/sirupsen/logrus"
)

// Propagator writes the span context of the request in ctx into outbound
// headers. It must run before the request reaches the network.
type Propagator struct {
	enabled bool
	log     logrus.FieldLogger
}

// NewPropagator returns a Propagator honoring WithPropagation and WithLogger.
func NewPropagator(opts ...Option) *Propagator {
	c := newConfig(opts)
	return &Propagator{enabled: c.propagate, log: c.log}
}

// Enabled reports whether Inject writes anything.
func (p *Propagator) Enabled() bool {
	return p != nil && p.enabled
}

// Inject encodes the active span context into header. It does nothing when
// propagation is disabled, when ctx carries no request span, or once that
// span has finished. Injecting twice overwrites the same keys.
func (p *Propagator) Inject(ctx context.Context, header http.Header) {
	if !p.Enabled() || header == nil {
		return
	}
	s := scopeFromContext(ctx)
	if s == nil || s.finished() {
		return
	}

	var sc SpanContext
	guard(p.log, "span context", func() {
		sc = s.span.Context()
	})
	if sc == nil {
		return
	}

	var err error
	guard(p.log, "inject", func() {
		err = s.tracer.Inject(sc, HTTPHeaders, header)
	})
	if err != nil {
		p.log.WithError(err).Warn("could not inject span context")
	}
}
