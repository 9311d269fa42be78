package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"edgemask/internal/client"
	"edgemask/internal/config"
	"edgemask/internal/service"
)

const (
	backendHost = "tenhopedido.com"
	publicHost  = "burgers-culture.tenhopedido.com"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{
			BackendHost:  backendHost,
			PublicHost:   publicHost,
			SameSiteNone: config.SameSiteLax,
		},
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		Metrics: config.MetricsConfig{Path: config.AdminPrefix + "/metrics"},
	}
}

func newTestProxyHandler(t *testing.T, cfg *config.Config) *ProxyHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.NewProxyService(client.NewOriginClient(cfg, logger, nil), cfg, logger, nil)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}
	return NewProxyHandler(svc, logger)
}

func serve(h *ProxyHandler, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.Handle(c)
}

func TestProxyHandler_Handle_RewrittenBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Add("Set-Cookie", "a=1; Domain=tenhopedido.com")
		w.Header().Add("Set-Cookie", "b=2; Domain=tenhopedido.com")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("visit https://tenhopedido.com/menu"))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/menu?x=1", http.NoBody)
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := "visit https://" + publicHost + "/menu"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Length"); got != fmt.Sprint(len(want)) {
		t.Errorf("Content-Length = %q, want %d", got, len(want))
	}
	cookies := rec.Header().Values("Set-Cookie")
	if len(cookies) != 2 {
		t.Fatalf("Set-Cookie count = %d, want 2", len(cookies))
	}
	for _, c := range cookies {
		if !strings.Contains(c, "Domain="+publicHost) {
			t.Errorf("Set-Cookie = %q, want public Domain", c)
		}
	}
}

func TestProxyHandler_Handle_Stream(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0xff}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	h := newTestProxyHandler(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/file.bin", http.NoBody)
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Body.String() != string(payload) {
		t.Errorf("body = %v, want %v", rec.Body.Bytes(), payload)
	}
	if got := rec.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q, want %q", got, "4")
	}
}

func TestProxyHandler_Handle_POST(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"ref":"https://tenhopedido.com/x"}` {
			t.Errorf("upstream body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	h := newTestProxyHandler(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodPost, "/api/1.1/wf/order", strings.NewReader(`{"ref":"https://`+publicHost+`/x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestProxyHandler_Handle_Preflight(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("origin contacted for preflight")
	}))
	defer upstream.Close()

	h := newTestProxyHandler(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodOptions, "/anything", http.NoBody)
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want %q", got, "86400")
	}
}

func TestProxyHandler_Handle_UpstreamUnreachable(t *testing.T) {
	h := newTestProxyHandler(t, testConfig("http://127.0.0.1:1"))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "Error accessing the server: ") {
		t.Errorf("body = %q, want upstream diagnostic", body)
	}
}

func TestProxyHandler_Handle_RewriteFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write([]byte{0x1b})
	}))
	defer upstream.Close()

	h := newTestProxyHandler(t, testConfig(upstream.URL))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "Error rewriting the response: ") {
		t.Errorf("body = %q, want rewrite diagnostic", body)
	}
	if ce := rec.Header().Get("Content-Encoding"); ce != "" {
		t.Errorf("Content-Encoding = %q, want no origin headers on error", ce)
	}
}

func TestProxyHandler_Handle_CanceledContext(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Wait until client context is done.
		<-r.Context().Done()
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.Upstream.TimeoutSeconds = 30
	h := newTestProxyHandler(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	// Create a pre-canceled context to simulate client disconnect.
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	rec, err := serve(h, req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestProxyHandler_mapError_MasksBackendHost(t *testing.T) {
	h := newTestProxyHandler(t, testConfig("https://"+backendHost))

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "dns error",
			err: &service.Error{
				Class: service.ErrUpstream,
				Err:   &net.DNSError{Err: "no such host", Name: backendHost},
			},
			want: "Error accessing the server: lookup " + publicHost + ": no such host",
		},
		{
			name: "url error",
			err: &service.Error{
				Class: service.ErrUpstream,
				Err:   &url.Error{Op: "Get", URL: "https://" + backendHost + "/api", Err: fmt.Errorf("connection refused")},
			},
			want: `Error accessing the server: Get "https://` + publicHost + `/api": connection refused`,
		},
		{
			name: "rewrite error",
			err: &service.Error{
				Class: service.ErrRewrite,
				Err:   fmt.Errorf("read body: unexpected EOF"),
			},
			want: "Error rewriting the response: read body: unexpected EOF",
		},
		{
			name: "unclassified",
			err:  fmt.Errorf("boom"),
			want: "Error accessing the server: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := h.mapError(c, tt.err); err != nil {
				t.Fatalf("mapError() returned error: %v", err)
			}

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rewrite", &service.Error{Class: service.ErrRewrite, Err: fmt.Errorf("x")}, "rewrite"},
		{"timeout", &service.Error{Class: service.ErrUpstream, Err: context.DeadlineExceeded}, "timeout"},
		{"canceled", fmt.Errorf("upstream request: %w", context.Canceled), "canceled"},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, "dns"},
		{"connect", &url.Error{Op: "Get", URL: "https://x", Err: fmt.Errorf("refused")}, "connect"},
		{"other", fmt.Errorf("boom"), "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorKind(tt.err); got != tt.want {
				t.Errorf("errorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
