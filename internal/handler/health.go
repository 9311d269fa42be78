package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"edgemask/internal/config"
	"edgemask/internal/shim"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy settings. It is reachable on the public host, so the
// backend host is omitted.
func (h *HealthHandler) Status(c echo.Context) error {
	p := h.cfg.Proxy
	return c.JSON(http.StatusOK, map[string]string{
		"status":        "ok",
		"version":       string(h.version),
		"public_host":   p.PublicHost,
		"cookie_domain": p.EffectiveCookieDomain(),
		"samesite_none": p.SameSiteNone,
		"inject_shim":   strconv.FormatBool(p.ShimEnabled()),
		"shim_version":  shim.Version,
	})
}
