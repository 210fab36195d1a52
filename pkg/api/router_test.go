package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goclaw/dispatch/config"
	"github.com/goclaw/dispatch/pkg/api/handlers"
	"github.com/goclaw/dispatch/pkg/api/middleware"
	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/goclaw/dispatch/pkg/logger"
	"github.com/goclaw/dispatch/pkg/metrics"
)

// createTestHandlers wires a hub with one signal and a ready health handler.
func createTestHandlers(t *testing.T) (*Handlers, *dispatch.Hub) {
	t.Helper()
	log := logger.Discard()
	hub := dispatch.NewHub(dispatch.WithLogger(log), dispatch.WithDefaultWeak(false))

	echo := dispatch.Func(func(_ context.Context, ev *dispatch.Event) (any, error) {
		v, _ := ev.Arg("msg")
		return v, nil
	})
	if err := hub.Signal("user.saved").Connect(echo); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	health := handlers.NewHealthHandler(hub)
	health.SetReady(true)

	m := metrics.NewManager(metrics.DefaultConfig())
	return &Handlers{
		Signals:        handlers.NewSignalHandler(hub, log),
		Health:         health,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}, hub
}

func TestNewRouter(t *testing.T) {
	h, _ := createTestHandlers(t)
	router := NewRouter(config.DefaultConfig(), logger.Discard(), h)
	if router == nil {
		t.Fatal("NewRouter returned nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header from middleware")
	}
}

func TestRegisterRoutes(t *testing.T) {
	h, _ := createTestHandlers(t)
	router := NewRouter(config.DefaultConfig(), logger.Discard(), h)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "status", method: http.MethodGet, path: "/status", wantStatus: http.StatusOK, wantBody: `"signals":1`},
		{name: "list signals", method: http.MethodGet, path: "/api/v1/signals", wantStatus: http.StatusOK, wantBody: "user.saved"},
		{name: "get signal", method: http.MethodGet, path: "/api/v1/signals/user.saved", wantStatus: http.StatusOK, wantBody: `"registrations":1`},
		{name: "get unknown signal", method: http.MethodGet, path: "/api/v1/signals/nope", wantStatus: http.StatusNotFound},
		{name: "send", method: http.MethodPost, path: "/api/v1/signals/user.saved/send?mode=send", body: `{"args":{"msg":"hi"}}`, wantStatus: http.StatusOK, wantBody: `"value":"hi"`},
		{name: "send wrong method", method: http.MethodGet, path: "/api/v1/signals/user.saved/send", wantStatus: http.StatusMethodNotAllowed},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("%s %s status = %v, want %v: %s", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	h, _ := createTestHandlers(t)
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false
	router := NewRouter(cfg, logger.Discard(), h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("metrics status = %v, want %v", w.Code, http.StatusNotFound)
	}
}

func TestRouter_RecoversFromReceiverPanicInRobustSend(t *testing.T) {
	h, hub := createTestHandlers(t)
	bad := dispatch.Func(func(context.Context, *dispatch.Event) (any, error) { panic("bad receiver") })
	if err := hub.Signal("user.saved").Connect(bad, dispatch.WithTag("bad")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	router := NewRouter(config.DefaultConfig(), logger.Discard(), h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/user.saved/send?mode=send_robust", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"failures":1`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_Timeout(t *testing.T) {
	h, hub := createTestHandlers(t)
	release := make(chan struct{})
	defer close(release)
	slow := dispatch.AsyncFunc(func(context.Context, *dispatch.Event) (any, error) {
		<-release
		return nil, nil
	})
	if err := hub.Signal("slow").Connect(slow); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Admin.WriteTimeout = 30 * time.Millisecond
	router := NewRouter(cfg, logger.Discard(), h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/slow/send?mode=send_async", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %v, want %v", w.Code, http.StatusGatewayTimeout)
	}
}
