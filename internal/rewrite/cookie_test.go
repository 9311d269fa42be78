package rewrite

import (
	"slices"
	"strings"
	"testing"
)

func TestRewriteCookie(t *testing.T) {
	lax := CookieRules{Domain: public}
	keep := CookieRules{Domain: public, KeepSecureNone: true}

	tests := []struct {
		name  string
		rules CookieRules
		in    string
		want  string
	}{
		{
			name:  "dotted backend domain and SameSite=None",
			rules: lax,
			in:    "sid=abc; Domain=.tenhopedido.com; Path=/app; SameSite=None; Secure; HttpOnly",
			want:  "sid=abc; Secure; HttpOnly; Domain=burgers-culture.tenhopedido.com; Path=/app; SameSite=Lax",
		},
		{
			name:  "secure None kept when allowed",
			rules: keep,
			in:    "sid=abc; Domain=tenhopedido.com; SameSite=None; Secure",
			want:  "sid=abc; Secure; Domain=burgers-culture.tenhopedido.com; Path=/; SameSite=None",
		},
		{
			name:  "insecure None downgraded even when allowed",
			rules: keep,
			in:    "a=1; SameSite=None",
			want:  "a=1; Domain=burgers-culture.tenhopedido.com; Path=/; SameSite=Lax",
		},
		{
			name:  "no attributes",
			rules: lax,
			in:    "a=1",
			want:  "a=1; Domain=burgers-culture.tenhopedido.com; Path=/; SameSite=Lax",
		},
		{
			name:  "platform suffix domain, lowercase attributes, explicit SameSite kept",
			rules: lax,
			in:    "a=1; domain=app.bubbleapps.io; samesite=strict; expires=Wed, 21 Oct 2026 07:28:00 GMT",
			want:  "a=1; expires=Wed, 21 Oct 2026 07:28:00 GMT; Domain=burgers-culture.tenhopedido.com; Path=/; SameSite=strict",
		},
		{
			name:  "value with equals signs kept byte-for-byte",
			rules: lax,
			in:    "tok=a=b==;Path=/x;Max-Age=60",
			want:  "tok=a=b==; Max-Age=60; Domain=burgers-culture.tenhopedido.com; Path=/x; SameSite=Lax",
		},
		{
			name:  "root cookie domain",
			rules: CookieRules{Domain: ".tenhopedido.com"},
			in:    "a=1; Domain=tenhopedido.com",
			want:  "a=1; Domain=.tenhopedido.com; Path=/; SameSite=Lax",
		},
		{
			name:  "empty",
			rules: lax,
			in:    "",
			want:  "",
		},
		{
			name:  "missing pair passed through",
			rules: lax,
			in:    " ; Path=/",
			want:  "; Path=/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteCookie(tt.in, tt.rules); got != tt.want {
				t.Errorf("RewriteCookie(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewriteCookie_Invariants(t *testing.T) {
	rules := CookieRules{Domain: public}
	inputs := []string{
		"a=1; Domain=tenhopedido.com; SameSite=None",
		"b=2; Domain=.tenhopedido.com; SameSite=none; Secure",
		"c=3; DOMAIN=app.bubbleapps.io; Domain=.bubbleapps.io",
		"d=4",
	}

	for _, in := range inputs {
		c := ParseCookie(RewriteCookie(in, rules))

		if domain, ok := c.Attr("domain"); !ok || domain != public {
			t.Errorf("%q: Domain = %q (present %v), want %q", in, domain, ok, public)
		}

		var domains int
		for _, a := range c.Attrs {
			k, v := splitAttr(a)
			if strings.EqualFold(k, "domain") {
				domains++
			}
			if strings.EqualFold(k, "samesite") && strings.EqualFold(v, "none") {
				t.Errorf("%q: SameSite=None survived", in)
			}
		}
		if domains != 1 {
			t.Errorf("%q: Domain attributes = %d, want 1", in, domains)
		}
	}
}

func TestParseCookie(t *testing.T) {
	c := ParseCookie(" sid=x ; Path=/a ;; HttpOnly ")

	if c.Pair != "sid=x" {
		t.Errorf("Pair = %q, want %q", c.Pair, "sid=x")
	}
	if !slices.Equal(c.Attrs, []string{"Path=/a", "HttpOnly"}) {
		t.Errorf("Attrs = %q, want [Path=/a HttpOnly]", c.Attrs)
	}
	if got := c.String(); got != "sid=x; Path=/a; HttpOnly" {
		t.Errorf("String() = %q, want %q", got, "sid=x; Path=/a; HttpOnly")
	}
	if v, ok := c.Attr("path"); !ok || v != "/a" {
		t.Errorf("Attr(path) = %q, %v, want %q, true", v, ok, "/a")
	}
	if _, ok := c.Attr("Domain"); ok {
		t.Error("Attr(Domain) present, want absent")
	}
}
