// Package shim renders the client-side compatibility script injected into
// proxied HTML. Server-side substitution cannot reach URLs that page scripts
// build at runtime; the shim rewrites those in the browser before any request
// leaves it.
//
// The backend host is embedded base64-encoded so the rendered script never
// contains it literally and survives the body substitution pass unchanged.
package shim

import (
	_ "embed"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Version tags the rendered script so deployed pages can be told apart.
const Version = "v1"

//go:embed shim.html.tmpl
var source string

var tmpl = template.Must(template.New("shim").Parse(source))

// Params parameterises the script.
type Params struct {
	PublicHost  string
	BackendHost string
	// CookieDomain is the root domain cookies are mirrored onto. Empty
	// disables mirroring.
	CookieDomain       string
	CookieSyncInterval time.Duration
	LogoutSelectors    []string
	LogoutKeywords     []string
}

type data struct {
	Version         string
	PublicHost      string
	BackendHostB64  string
	CookieDomain    string
	CookieSyncMs    int64
	LogoutSelectors []string
	LogoutKeywords  []string
}

// Render produces the <script> block for p.
func Render(p Params) (string, error) {
	if p.PublicHost == "" || p.BackendHost == "" {
		return "", errors.New("shim: public and backend hosts are required")
	}

	d := data{
		Version:         Version,
		PublicHost:      strings.ToLower(p.PublicHost),
		BackendHostB64:  base64.StdEncoding.EncodeToString([]byte(strings.ToLower(p.BackendHost))),
		CookieDomain:    rootDomain(p.CookieDomain),
		CookieSyncMs:    p.CookieSyncInterval.Milliseconds(),
		LogoutSelectors: nonNil(p.LogoutSelectors),
		LogoutKeywords:  lower(p.LogoutKeywords),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("shim: render: %w", err)
	}
	return buf.String(), nil
}

// rootDomain returns d in leading-dot form. The dot also keeps a root domain
// equal to the backend host from matching the quoted-host substitution.
func rootDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" || strings.HasPrefix(d, ".") {
		return d
	}
	return "." + d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func lower(s []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
