package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx/fxtest"

	"edgemask/internal/config"
	"edgemask/internal/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BodyMaxBytes: 1024},
		Log:    config.LogConfig{Level: "warn", Format: "text"},
	}
}

func TestNewLogger_Level(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := newLogger(lc, testConfig())

	ctx := context.Background()
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !logger.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn disabled at warn level")
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgemask.log")
	cfg := testConfig()
	cfg.Log.File = path

	lc := fxtest.NewLifecycle(t)
	newLogger(lc, cfg).Warn("hello")
	lc.RequireStart().RequireStop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

func TestNewAccessLog(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	cfg := testConfig()
	if al := newAccessLog(lc, cfg); al.Writer != nil {
		t.Error("access log enabled without a path")
	}

	cfg.Log.AccessLog = "stdout"
	if al := newAccessLog(lc, cfg); al.Writer != os.Stdout {
		t.Error("stdout access log not wired to os.Stdout")
	}
}

func TestNewEcho_RequestID(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	e := newEcho(testConfig(), logger, metrics.New(), accessLog{})
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
}
