package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vexxhost/batchd/api/handlers"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/node"
	"github.com/vexxhost/batchd/peer"
	"github.com/vexxhost/batchd/resv"
	"github.com/vexxhost/batchd/sched"
	"github.com/vexxhost/batchd/worktask"
)

func newTestServer(t *testing.T, authEnabled bool, token string) *Server {
	t.Helper()
	h := handlers.NewHandlers(
		node.NewIndex(), job.NewStore(), resv.NewStore(),
		map[string]*sched.Scheduler{}, map[string]*peer.Server{},
		worktask.NewExecutor(16), &job.Rerunner{}, nil, nil, nil, nil,
	)
	s, err := NewServer(&Config{Port: 8080, AuthEnabled: authEnabled, AuthToken: token}, h, func() bool { return false })
	if err != nil {
		t.Fatalf("unexpected error constructing server: %v", err)
	}
	return s
}

func TestNewServerRejectsNilConfig(t *testing.T) {
	h := handlers.NewHandlers(node.NewIndex(), job.NewStore(), resv.NewStore(), nil, nil, worktask.NewExecutor(1), &job.Rerunner{}, nil, nil, nil, nil)
	if _, err := NewServer(nil, h, nil); err == nil {
		t.Fatal("expected error constructing a server with no config")
	}
}

func TestNewServerRejectsNilHandlers(t *testing.T) {
	if _, err := NewServer(&Config{Port: 8080}, nil, nil); err == nil {
		t.Fatal("expected error constructing a server with no handlers")
	}
}

func TestHealthRouteIsUnauthenticated(t *testing.T) {
	s := newTestServer(t, true, "secret")
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want /health reachable with no token, got %d", rec.Code)
	}
}

func TestAPIRouteRejectsMissingAuthHeader(t *testing.T) {
	s := newTestServer(t, true, "secret")
	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 with no Authorization header, got %d", rec.Code)
	}
}

func TestAPIRouteRejectsWrongToken(t *testing.T) {
	s := newTestServer(t, true, "secret")
	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 with a wrong token, got %d", rec.Code)
	}
}

func TestAPIRouteAcceptsCorrectToken(t *testing.T) {
	s := newTestServer(t, true, "secret")
	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with the correct token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAPIRoutePassesThroughWhenAuthDisabled(t *testing.T) {
	s := newTestServer(t, false, "")
	req := httptest.NewRequest("GET", "/api/v1/server", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with auth disabled and no header, got %d", rec.Code)
	}
}

func TestCorsMiddlewareSetsHeadersAndShortCircuitsOptions(t *testing.T) {
	s := newTestServer(t, false, "")
	req := httptest.NewRequest("OPTIONS", "/api/v1/server", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 for a preflight OPTIONS request, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS origin header to be set")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	s := newTestServer(t, false, "")
	req := httptest.NewRequest("GET", "/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}
