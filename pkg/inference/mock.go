package inference

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/lookout/pkg/frame"
)

// Mock implements Sender for testing.
type Mock struct {
	// SendFunc is called when Send is invoked.
	SendFunc func(ctx context.Context, endpoint, instruction string, img frame.Image) string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Send invocation.
type MockCall struct {
	Endpoint    string
	Instruction string
	Image       frame.Image
	Time        time.Time
}

// NewMock creates a mock that always answers with reply.
func NewMock(reply string) *Mock {
	return &Mock{
		SendFunc: func(ctx context.Context, endpoint, instruction string, img frame.Image) string {
			return reply
		},
	}
}

// Send records the call and delegates to SendFunc.
func (m *Mock) Send(ctx context.Context, endpoint, instruction string, img frame.Image) string {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Endpoint:    endpoint,
		Instruction: instruction,
		Image:       img,
		Time:        time.Now(),
	})
	fn := m.SendFunc
	m.mu.Unlock()

	if fn == nil {
		return MsgUnknownError
	}
	return fn(ctx, endpoint, instruction, img)
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Send calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Sender at compile time.
var _ Sender = (*Mock)(nil)
