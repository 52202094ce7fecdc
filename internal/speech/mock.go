package speech

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a deterministic Synthesizer for tests. It records every call and
// returns a fabricated clip derived from the input, or a scripted error.
type Mock struct {
	mu sync.Mutex

	// Err, when set, is returned by every call.
	Err error
	// FailAt, when positive, fails the Nth call (1-based).
	FailAt int

	calls []MockCall
}

// MockCall records the arguments of one Synthesize invocation.
type MockCall struct {
	Text string
	Lang string
}

// Compile-time check that Mock implements Synthesizer.
var _ Synthesizer = (*Mock)(nil)

// Synthesize records the call and returns a fake clip labelled with the
// call sequence number, so tests can assert concatenation order.
func (m *Mock) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Text: text, Lang: lang})

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailAt > 0 && len(m.calls) == m.FailAt {
		return nil, fmt.Errorf("mock synthesis failure at call %d", m.FailAt)
	}

	return []byte(fmt.Sprintf("clip-%03d:%s", len(m.calls), text)), nil
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
