package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	ready   bool
	entries int
}

func (f fakeStatus) Ready() bool       { return f.ready }
func (f fakeStatus) CacheEntries() int { return f.entries }

var fixedTime = time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestPing(t *testing.T) {
	h := NewRouter(fakeStatus{ready: true}, nil, WithServerName("test-server"), WithClock(func() time.Time { return fixedTime }))

	rec, body := get(t, h, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-server", body["server"])
	assert.Equal(t, "2024-03-09T10:30:00Z", body["time"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status fakeStatus
		code   int
	}{
		{"ready", fakeStatus{ready: true, entries: 3}, http.StatusOK},
		{"not ready", fakeStatus{}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, NewRouter(tt.status, nil), "/health")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status.ready, body["clients_initialized"])
			assert.Equal(t, float64(tt.status.entries), body["cache_entries"])
		})
	}
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	h := NewRouter(fakeStatus{ready: true}, nil)

	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, h, "/sse")
	assert.Equal(t, http.StatusNotFound, rec.Code, "sse is only mounted when configured")

	rec, _ = get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSSEMounted(t *testing.T) {
	sse := server.NewSSEServer(server.NewMCPServer("test", "0.0.1"))
	h := NewRouter(fakeStatus{ready: true}, nil, WithSSE(sse))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{}`)))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestServer_Shutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRouter(fakeStatus{ready: true}, nil), nil)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	// Shutdown may race ahead of ListenAndServe; both orders end with a nil error.
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
