package providers

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MockResponse is one scripted answer of a MockClient.
type MockResponse struct {
	Chunks []string
	Result *Result
	Err    error
}

// MockCall records one Run invocation.
type MockCall struct {
	OperationID string
	Inputs      map[string]any
}

// MockClient is a Runner for tests. Responses are consumed in order per
// operation id; the last response repeats once the queue is drained.
type MockClient struct {
	// Handler, when set, answers every call instead of the queues.
	Handler func(operationID string, inputs map[string]any) (*Result, error)

	mu        sync.Mutex
	responses map[string][]MockResponse
	calls     []MockCall
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{responses: make(map[string][]MockResponse)}
}

// On queues responses for an operation id.
func (m *MockClient) On(operationID string, responses ...MockResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[operationID] = append(m.responses[operationID], responses...)
	return m
}

// OnText queues a text result for an operation id.
func (m *MockClient) OnText(operationID, text string) *MockClient {
	return m.On(operationID, MockResponse{Result: NewStringResult(text)})
}

// Run records the call and replays the next scripted response.
func (m *MockClient) Run(ctx context.Context, operationID string, inputs map[string]any, onChunk ChunkFunc) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{OperationID: operationID, Inputs: maps.Clone(inputs)})
	handler := m.Handler
	var resp MockResponse
	queue, ok := m.responses[operationID]
	if ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			m.responses[operationID] = queue[1:]
		}
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(operationID, inputs)
	}
	if !ok || len(queue) == 0 {
		return nil, fmt.Errorf("mock: no response for operation %q", operationID)
	}

	for _, chunk := range resp.Chunks {
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// Calls returns every recorded call in order.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded calls for one operation id.
func (m *MockClient) CallsFor(operationID string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.OperationID == operationID {
			out = append(out, c)
		}
	}
	return out
}
