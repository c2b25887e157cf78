package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/cashbook/internal/export"
)

// MockPusher is a mock implementation of Pusher for testing.
type MockPusher struct {
	PushFunc      func(ctx context.Context, spreadsheetID string, tables []export.Table) (string, error)
	PushCalls     []PushCall
	PushCallCount int
	mu            sync.Mutex
}

// PushCall represents a single call to Push.
type PushCall struct {
	Error         error
	SpreadsheetID string
	Tables        []export.Table
}

// NewMockPusher creates a mock that echoes the given spreadsheet ID, or
// "mock-spreadsheet" when none is given.
func NewMockPusher() *MockPusher {
	return &MockPusher{
		PushCalls: make([]PushCall, 0),
	}
}

// Push implements the Pusher interface.
func (m *MockPusher) Push(ctx context.Context, spreadsheetID string, tables []export.Table) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCallCount++

	id := spreadsheetID
	if id == "" {
		id = "mock-spreadsheet"
	}
	var err error
	if m.PushFunc != nil {
		id, err = m.PushFunc(ctx, spreadsheetID, tables)
	}

	m.PushCalls = append(m.PushCalls, PushCall{
		SpreadsheetID: spreadsheetID,
		Tables:        tables,
		Error:         err,
	})

	return id, err
}

// GetPushCalls returns a copy of all push calls.
func (m *MockPusher) GetPushCalls() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]PushCall, len(m.PushCalls))
	copy(calls, m.PushCalls)
	return calls
}

// SetPushError configures the mock to fail every Push call.
func (m *MockPusher) SetPushError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushFunc = func(_ context.Context, _ string, _ []export.Table) (string, error) {
		return "", err
	}
}
