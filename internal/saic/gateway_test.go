package saic

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeGateway is a minimal in-memory gateway. Handlers write the envelope
// data; the gateway wraps it and checks the bearer token.
type fakeGateway struct {
	t *testing.T

	mu     sync.Mutex
	logins int
	token  string
	bodies []map[string]any
	routes map[string]func(r *http.Request) (code int, message string, data any)
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	g := &fakeGateway{
		t:      t,
		token:  "token-1",
		routes: make(map[string]func(r *http.Request) (int, string, any)),
	}

	g.routes["/"+loginPath] = func(r *http.Request) (int, string, any) {
		g.logins++
		return 0, "", map[string]any{
			"access_token": g.token,
			"user_id":      "user-42",
			"expires_in":   3600,
		}
	}

	server := httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(server.Close)
	return g, server
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var body map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	g.bodies = append(g.bodies, body)

	route, ok := g.routes[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.URL.Path != "/"+loginPath && r.Header.Get("Authorization") != "Bearer "+g.token {
		writeEnvelope(g.t, w, 401, "invalid session", nil)
		return
	}

	code, msg, data := route(r)
	writeEnvelope(g.t, w, code, msg, data)
}

func (g *fakeGateway) loginCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logins
}

func (g *fakeGateway) lastBody() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.bodies) == 0 {
		return nil
	}
	return g.bodies[len(g.bodies)-1]
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	env := map[string]any{"code": code, "message": msg, "data": data}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
}

func newTestClient(server *httptest.Server) *HTTPClient {
	return NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("driver@example.com", "secret", ""),
	)
}

func farFuture() time.Time {
	return time.Now().Add(24 * time.Hour)
}
