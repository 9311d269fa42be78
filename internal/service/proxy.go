// Package service implements the masking pipeline: preflight, request
// transform, origin fetch, redirect rewrite, header and cookie rewrite, and
// content rewrite, run in that order for every request.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edgemask/internal/client"
	"edgemask/internal/config"
	"edgemask/internal/metrics"
	"edgemask/internal/model"
	"edgemask/internal/rewrite"
	"edgemask/internal/shim"
)

// Failure classes. They are the only errors Forward returns; everything else
// degrades to best-effort rewriting.
var (
	ErrUpstream = errors.New("error accessing the server")
	ErrRewrite  = errors.New("error rewriting the response")
)

// Error pairs a failure class with its cause.
type Error struct {
	Class error
	Err   error
}

func (e *Error) Error() string { return e.Class.Error() + ": " + e.Err.Error() }

// Unwrap exposes both the class and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error { return []error{e.Class, e.Err} }

// ProxyService runs the pipeline for one configured host pair. It holds no
// per-request state and is safe for concurrent use.
type ProxyService struct {
	client  *client.OriginClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	rw      *rewrite.Rewriter
	cookies rewrite.CookieRules
	script  string // empty when injection is disabled
	baseURL *url.URL

	dropRequest  map[string]bool
	allowHeaders string
	allowPrefix  []string
}

// NewProxyService creates a ProxyService. The compatibility script is rendered
// here once; a render failure is a startup error.
// The metrics parameter is optional; pass nil to disable rewrite metrics.
func NewProxyService(c *client.OriginClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	p := cfg.Proxy
	s := &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		rw:      rewrite.New(p.BackendHost, p.PublicHost),
		cookies: rewrite.CookieRules{
			Domain:         p.EffectiveCookieDomain(),
			KeepSecureNone: p.SameSiteNone == config.SameSiteSecure,
		},
		baseURL:      u,
		dropRequest:  requestDropSet(p.DropHeaders),
		allowHeaders: allowHeaderList(cfg.CORS.AllowHeaders),
	}
	for _, prefix := range cfg.CORS.AllowHeaderPrefixes {
		s.allowPrefix = append(s.allowPrefix, strings.ToLower(prefix))
	}

	if p.ShimEnabled() {
		s.script, err = shim.Render(shim.Params{
			PublicHost:         p.PublicHost,
			BackendHost:        p.BackendHost,
			CookieDomain:       p.CookieDomain,
			CookieSyncInterval: time.Duration(cfg.Shim.CookieSyncIntervalMs) * time.Millisecond,
			LogoutSelectors:    cfg.Shim.LogoutSelectors,
			LogoutKeywords:     cfg.Shim.LogoutKeywords,
		})
		if err != nil {
			return nil, fmt.Errorf("render shim: %w", err)
		}
	}

	return s, nil
}

// Forward runs the pipeline for pr. The caller must Close the returned
// response. Errors are *Error values classed ErrUpstream or ErrRewrite.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.FinalResponse, error) {
	if pr.Method == http.MethodOptions {
		return s.preflight(pr.Header), nil
	}

	out := s.buildOutbound(pr)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
	)

	resp, err := s.client.Do(pr.Ctx, out)
	if err != nil {
		return nil, &Error{Class: ErrUpstream, Err: err}
	}

	if final, ok := s.redirect(pr, resp); ok {
		return final, nil
	}

	header := s.responseHeaders(pr.Header, resp.Header)
	return s.content(pr.Method, resp, header)
}

// Mask hides the backend host in diagnostic text shown to clients.
func (s *ProxyService) Mask(text string) string {
	return s.rw.Mask(text)
}
