// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// AdminPrefix is the path prefix reserved for the proxy's own endpoints.
// Everything outside it is forwarded to the backend.
const AdminPrefix = "/_edgemask"

// SameSite policies applied to backend cookies carrying SameSite=None.
const (
	SameSiteLax    = "lax"    // always downgrade None to Lax
	SameSiteSecure = "secure" // keep None when the cookie is also Secure
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/edgemask/config.toml",
	"configs/config.toml",
}

// defaultDropHeaders are edge-injected diagnostic headers never forwarded to the backend.
var defaultDropHeaders = []string{
	"Cf-Connecting-Ip",
	"Cf-Ipcountry",
	"Cf-Ray",
	"Cf-Visitor",
	"Cf-Worker",
	"Cdn-Loop",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Real-Ip",
}

var hostnamePattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendHost string `kong:"help='Backend hostname to mask (overrides config).',env='BACKEND_HOST'"`
	PublicHost  string `kong:"help='Public hostname clients see (overrides config).',env='PUBLIC_HOST'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	CORS     CORSConfig     `toml:"cors"`
	Shim     ShimConfig     `toml:"shim"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Tracing  TracingConfig  `toml:"tracing"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	Compress     bool            `toml:"compress"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ProxyConfig describes the host pair being masked. It is immutable after Load.
type ProxyConfig struct {
	BackendHost  string   `toml:"backend_host"`
	PublicHost   string   `toml:"public_host"`
	CookieDomain string   `toml:"cookie_domain"` // empty means the public host
	DropHeaders  []string `toml:"drop_headers"`
	SameSiteNone string   `toml:"samesite_none"`
	InjectShim   *bool    `toml:"inject_shim"`
}

// CORSConfig extends the fixed CORS header set.
type CORSConfig struct {
	AllowHeaders        []string `toml:"allow_headers"`
	AllowHeaderPrefixes []string `toml:"allow_header_prefixes"`
}

// ShimConfig tunes the injected client-side script.
type ShimConfig struct {
	CookieSyncIntervalMs int      `toml:"cookie_sync_interval_ms"`
	LogoutSelectors      []string `toml:"logout_selectors"`
	LogoutKeywords       []string `toml:"logout_keywords"`
}

// UpstreamConfig holds backend connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"` // empty means https://<backend_host>
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	AccessLog string `toml:"access_log"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/edgemask/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendHost != "" {
		c.Proxy.BackendHost = cli.BackendHost
	}
	if cli.PublicHost != "" {
		c.Proxy.PublicHost = cli.PublicHost
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if err := c.Proxy.validate(); err != nil {
		return err
	}

	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil {
			return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Shim.CookieSyncIntervalMs < 0 {
		return fmt.Errorf("shim.cookie_sync_interval_ms must be non-negative; got %d", c.Shim.CookieSyncIntervalMs)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics live under the admin prefix so they never shadow a backend path.
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if !strings.HasPrefix(p, AdminPrefix+"/") {
			return fmt.Errorf("metrics.path must start with %q; got %q", AdminPrefix+"/", p)
		}
		for _, reserved := range []string{AdminPrefix + "/healthz", AdminPrefix + "/status"} {
			if p == reserved {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func (p *ProxyConfig) validate() error {
	if p.BackendHost == "" {
		return fmt.Errorf("proxy.backend_host is required")
	}
	if p.PublicHost == "" {
		return fmt.Errorf("proxy.public_host is required")
	}
	if !hostnamePattern.MatchString(p.BackendHost) {
		return fmt.Errorf("proxy.backend_host is not a valid hostname: %q", p.BackendHost)
	}
	if !hostnamePattern.MatchString(p.PublicHost) {
		return fmt.Errorf("proxy.public_host is not a valid hostname: %q", p.PublicHost)
	}
	if strings.EqualFold(p.BackendHost, p.PublicHost) {
		return fmt.Errorf("proxy.backend_host and proxy.public_host must differ; both are %q", p.PublicHost)
	}

	if p.CookieDomain != "" {
		d := strings.ToLower(strings.TrimPrefix(p.CookieDomain, "."))
		pub := strings.ToLower(p.PublicHost)
		if d != pub && !strings.HasSuffix(pub, "."+d) {
			return fmt.Errorf("proxy.cookie_domain %q must be the public host or one of its parent domains", p.CookieDomain)
		}
	}

	switch strings.ToLower(p.SameSiteNone) {
	case SameSiteLax, SameSiteSecure, "":
		// valid
	default:
		return fmt.Errorf("proxy.samesite_none must be one of: lax, secure; got %q", p.SameSiteNone)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. The exception is
// shim.cookie_sync_interval_ms, where 0 disables cookie mirroring.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	c.Proxy.BackendHost = strings.ToLower(c.Proxy.BackendHost)
	c.Proxy.PublicHost = strings.ToLower(c.Proxy.PublicHost)
	c.Proxy.CookieDomain = strings.ToLower(c.Proxy.CookieDomain)
	if c.Proxy.DropHeaders == nil {
		c.Proxy.DropHeaders = defaultDropHeaders
	}
	if c.Proxy.SameSiteNone == "" {
		c.Proxy.SameSiteNone = SameSiteLax
	}
	c.Proxy.SameSiteNone = strings.ToLower(c.Proxy.SameSiteNone)
	if c.Proxy.InjectShim == nil {
		enabled := true
		c.Proxy.InjectShim = &enabled
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://" + c.Proxy.BackendHost
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 60
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = AdminPrefix + "/metrics"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "edgemask"
	}
}

// ShimEnabled reports whether HTML responses get the compatibility script.
func (p *ProxyConfig) ShimEnabled() bool {
	return p.InjectShim == nil || *p.InjectShim
}

// EffectiveCookieDomain returns the Domain attribute written into rewritten cookies.
func (p *ProxyConfig) EffectiveCookieDomain() string {
	if p.CookieDomain != "" {
		return p.CookieDomain
	}
	return p.PublicHost
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
