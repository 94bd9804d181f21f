package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockChatServer creates a test server that mocks the chat API endpoints so
// client code can run against scripted responses.
type MockChatServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockChatServer creates a new mock chat API server
func NewMockChatServer(t *testing.T) *MockChatServer {
	t.Helper()
	m := &MockChatServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockSnapshot scripts the GET /chat/api/messages response.
func (m *MockChatServer) MockSnapshot(messages []map[string]any) {
	m.Handlers["/chat/api/messages"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messages) //nolint:errcheck // test mock response
	}
}

// MockPollBatches scripts /chat/api/poll to serve the given batches in order,
// then empty arrays.
func (m *MockChatServer) MockPollBatches(batches ...[]map[string]any) {
	i := 0
	m.Handlers["/chat/api/poll"] = func(w http.ResponseWriter, r *http.Request) {
		batch := []map[string]any{}
		if i < len(batches) {
			batch = batches[i]
			i++
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batch) //nolint:errcheck // test mock response
	}
}

// MockSendError scripts POST /chat/api/messages to fail with the given status.
func (m *MockChatServer) MockSendError(status int, msg string) {
	m.Handlers["/chat/api/messages"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck // test mock response
	}
}
