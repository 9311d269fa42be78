package rewrite

import (
	"net/url"
	"strings"
)

// Location rewrites a redirect target. Absolute and protocol-relative URLs that
// point at the backend host are moved to the public host over https; relative
// targets and foreign hosts are returned unchanged.
func (r *Rewriter) Location(loc string) string {
	if loc == "" {
		return loc
	}
	u, err := url.Parse(loc)
	if err != nil {
		return r.Text(loc)
	}
	if u.Host == "" || !strings.EqualFold(u.Hostname(), r.backend) {
		// Query strings often carry return URLs pointing back at the backend.
		return r.Text(loc)
	}

	// The backend's port, if any, has no meaning on the public side.
	u.Host = r.public
	if u.Scheme != "" {
		u.Scheme = "https"
	}
	u.RawQuery = r.Text(u.RawQuery)
	return u.String()
}
