package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgemask/internal/config"
	"edgemask/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Admin
// endpoints live under config.AdminPrefix, which never reaches the origin;
// every other path and method goes to the proxy.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET(config.AdminPrefix+"/healthz", health.Healthz)
	e.GET(config.AdminPrefix+"/status", health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any(config.AdminPrefix+"/*", func(echo.Context) error {
		return echo.ErrNotFound
	})
	e.Any("/*", proxy.Handle)
}
