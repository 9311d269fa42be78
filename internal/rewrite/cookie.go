package rewrite

import (
	"strings"
)

// CookieRules controls how backend Set-Cookie values are re-scoped.
type CookieRules struct {
	// Domain is written into every cookie: the public host, or a parent domain
	// of it when cookies must be shared across the public host's siblings.
	Domain string
	// KeepSecureNone keeps SameSite=None on cookies that are also Secure.
	// When false, SameSite=None is always downgraded to Lax.
	KeepSecureNone bool
}

// Cookie is a parsed Set-Cookie value: the name=value pair, kept byte-for-byte,
// and its attributes in their original order.
type Cookie struct {
	Pair  string
	Attrs []string
}

// ParseCookie splits a Set-Cookie value on ';'. It never fails; empty
// attributes are dropped.
func ParseCookie(raw string) Cookie {
	parts := strings.Split(raw, ";")
	c := Cookie{Pair: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			c.Attrs = append(c.Attrs, p)
		}
	}
	return c
}

// String joins the cookie back into a single Set-Cookie value.
func (c Cookie) String() string {
	if len(c.Attrs) == 0 {
		return c.Pair
	}
	return c.Pair + "; " + strings.Join(c.Attrs, "; ")
}

// Attr returns the value of the first attribute named name (case-insensitive).
func (c Cookie) Attr(name string) (string, bool) {
	for _, a := range c.Attrs {
		k, v := splitAttr(a)
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// RewriteCookie re-scopes one Set-Cookie value onto the public side: any
// Domain (backend host, dotted form, platform suffix) is replaced, Path is kept
// or defaulted to "/", and SameSite=None is handled per rules.
func RewriteCookie(raw string, rules CookieRules) string {
	c := ParseCookie(raw)
	if c.Pair == "" {
		return strings.TrimSpace(raw)
	}

	path := "/"
	var sameSite string
	var secure bool
	attrs := make([]string, 0, len(c.Attrs)+3)
	for _, a := range c.Attrs {
		k, v := splitAttr(a)
		switch strings.ToLower(k) {
		case "domain":
			continue
		case "path":
			if v != "" {
				path = v
			}
			continue
		case "samesite":
			sameSite = v
			continue
		case "secure":
			secure = true
		}
		attrs = append(attrs, a)
	}

	attrs = append(attrs, "Domain="+rules.Domain, "Path="+path)
	switch {
	case strings.EqualFold(sameSite, "none"):
		if rules.KeepSecureNone && secure {
			attrs = append(attrs, "SameSite=None")
		} else {
			attrs = append(attrs, "SameSite=Lax")
		}
	case sameSite != "":
		attrs = append(attrs, "SameSite="+sameSite)
	default:
		attrs = append(attrs, "SameSite=Lax")
	}

	c.Attrs = attrs
	return c.String()
}

func splitAttr(a string) (key, value string) {
	k, v, _ := strings.Cut(a, "=")
	return strings.TrimSpace(k), strings.TrimSpace(v)
}
