package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"edgemask/internal/model"
	"edgemask/internal/service"
)

// Client-facing prefixes of the two failure classes.
const (
	msgUpstream = "Error accessing the server"
	msgRewrite  = "Error rewriting the response"
)

// ProxyHandler serves every non-admin path through the masking pipeline.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle runs the pipeline for the request and writes the result. Rewritten
// bodies are written whole; passthrough bodies are streamed.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Close() }()

	// Add, not Set: every Set-Cookie line must survive.
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		for _, v := range vals {
			dst.Add(key, v)
		}
	}

	if resp.Stream == nil {
		if len(resp.Body) > 0 {
			dst.Set(echo.HeaderContentLength, strconv.Itoa(len(resp.Body)))
		}
		c.Response().WriteHeader(resp.StatusCode)
		if len(resp.Body) > 0 && req.Method != http.MethodHead {
			if _, err := c.Response().Write(resp.Body); err != nil {
				h.logger.Error("writing response body",
					"err", err,
					"path", req.URL.Path,
				)
			}
		}
		return nil
	}

	if resp.ContentLength >= 0 {
		dst.Set(echo.HeaderContentLength, strconv.FormatInt(resp.ContentLength, 10))
	}
	c.Response().WriteHeader(resp.StatusCode)

	// Stream the origin body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. We log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Stream); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError answers a pipeline failure with a plain-text 500. The detail is
// shown to the client with the backend host masked.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	prefix := msgUpstream
	detail := err
	var pe *service.Error
	if errors.As(err, &pe) {
		detail = pe.Err
		if errors.Is(pe.Class, service.ErrRewrite) {
			prefix = msgRewrite
		}
	}
	masked := h.service.Mask(detail.Error())

	h.logger.Error("proxy error",
		"err", masked,
		"kind", errorKind(err),
		"path", c.Request().URL.Path,
	)

	return c.String(http.StatusInternalServerError, prefix+": "+masked)
}

// errorKind classifies a failure for logs.
func errorKind(err error) string {
	if errors.Is(err, service.ErrRewrite) {
		return "rewrite"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "connect"
	}

	return "upstream"
}
