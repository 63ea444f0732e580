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


package tracertest

import (
	"sync"
	"time"

	"github.com/dubonzi/resttrace"
)

// now is swapped in tests that need stable timestamps.
var now = time.Now

// LogRecord is one LogEvent call.
type LogRecord struct {
	Time  time.Time
	Key   string
	Value any
}

// Span is a recorded span. It is safe for concurrent use.
type Span struct {
	mu          sync.Mutex
	name        string
	tags        map[string]any
	logs        []LogRecord
	start       time.Time
	finish      time.Time
	finishCount int
	parentID    string
	ctx         SpanContext
}

var _ resttrace.Span = (*Span)(nil)

func (s *Span) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

func (s *Span) LogEvent(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, LogRecord{Time: now(), Key: key, Value: value})
}

// Finish records the finish time on the first call and counts every call.
func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishCount == 0 {
		s.finish = now()
	}
	s.finishCount++
}

func (s *Span) Context() resttrace.SpanContext {
	return s.ctx
}

// SpanContext returns the concrete context of the span.
func (s *Span) SpanContext() SpanContext {
	return s.ctx
}

func (s *Span) OperationName() string {
	return s.name
}

func (s *Span) ParentID() string {
	return s.parentID
}

// Tag returns a single tag value.
func (s *Span) Tag(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[key]
	return v, ok
}

// Tags returns a copy of all tags.
func (s *Span) Tags() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make(map[string]any, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	return tags
}

// Logs returns a copy of the recorded log events.
func (s *Span) Logs() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.logs...)
}

func (s *Span) Finished() bool {
	return s.FinishCount() > 0
}

// FinishCount is the number of Finish calls. Anything other than 1 on a
// completed request is a bug in the instrumentation.
func (s *Span) FinishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishCount
}

func (s *Span) StartTime() time.Time {
	return s.start
}

func (s *Span) FinishTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finish
}
