// Package rewrite holds the pure transforms that swap the backend host for the
// public host (and back). Nothing here performs I/O or keeps per-request state,
// so a single Rewriter is shared by every request.
package rewrite

import (
	"strings"
)

// urlForms are the prefixes that make a backend-host mention a URL, each with
// its public replacement. Longer forms sharing a suffix come first. Plain http
// is upgraded because the public host is only served over TLS.
var urlForms = []struct{ from, to string }{
	{`https:\/\/`, `https:\/\/`},
	{`http:\/\/`, `https:\/\/`},
	{`\/\/`, `\/\/`},
	{"https://", "https://"},
	{"http://", "https://"},
	{"//", "//"},
}

// quoteForms enclose a bare host on both sides.
var quoteForms = []string{`\"`, `"`, `'`}

// Rewriter substitutes host references between a backend host and a public host.
type Rewriter struct {
	backend string
	public  string

	toBackend *strings.Replacer
}

// New builds a Rewriter for the given host pair. Hosts are compared lowercase.
func New(backendHost, publicHost string) *Rewriter {
	b := strings.ToLower(backendHost)
	p := strings.ToLower(publicHost)

	return &Rewriter{
		backend:   b,
		public:    p,
		toBackend: strings.NewReplacer(p, b),
	}
}

// BackendHost returns the masked origin hostname.
func (r *Rewriter) BackendHost() string { return r.backend }

// PublicHost returns the hostname clients see.
func (r *Rewriter) PublicHost() string { return r.public }

// Text replaces every URL and quoted form of the backend host in s with its
// public-host form. Hosts match case-insensitively and only as a whole name:
// "//backend.other.net" is a different host and stays. The pass is
// single-shot, so a public host that contains the backend host as a suffix is
// not rewritten twice.
func (r *Rewriter) Text(s string) string {
	lower := asciiLower(s)
	if !strings.Contains(lower, r.backend) {
		return s
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(lower); {
		j := strings.Index(lower[i:], r.backend)
		if j < 0 {
			break
		}
		at := i + j
		end := at + len(r.backend)
		i = at + 1
		if !hostEnds(s, end) {
			continue
		}

		if from, to, ok := urlForm(lower[last:at]); ok {
			b.WriteString(s[last : at-len(from)])
			b.WriteString(to)
			b.WriteString(r.public)
			last, i = end, end
			continue
		}
		for _, q := range quoteForms {
			if strings.HasSuffix(lower[last:at], q) && strings.HasPrefix(s[end:], q) {
				b.WriteString(s[last:at])
				b.WriteString(r.public)
				last, i = end, end
				break
			}
		}
	}

	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func urlForm(before string) (from, to string, ok bool) {
	for _, f := range urlForms {
		if strings.HasSuffix(before, f.from) {
			return f.from, f.to, true
		}
	}
	return "", "", false
}

// Value rewrites a single decoded string, such as a JSON string value. A value
// that is exactly the backend host is replaced as a whole.
func (r *Rewriter) Value(s string) string {
	if strings.EqualFold(s, r.backend) {
		return r.public
	}
	return r.Text(s)
}

// Header rewrites a response header value. On top of the URL and quoted forms,
// standalone mentions are replaced too, as in CSP source lists.
func (r *Rewriter) Header(v string) string {
	return r.Mask(r.Text(v))
}

// Request replaces every occurrence of the public host with the backend host.
// It is used on client payloads headed to the backend.
func (r *Rewriter) Request(s string) string {
	return r.toBackend.Replace(s)
}

// Mask hides every standalone mention of the backend host, such as a transport
// error quoting the dialed address. Occurrences embedded in a longer hostname
// (including the public host itself) are left alone; a "*." wildcard in front
// still counts as standalone.
func (r *Rewriter) Mask(s string) string {
	lower := asciiLower(s)

	var b strings.Builder
	last := 0
	for i := 0; i < len(lower); {
		j := strings.Index(lower[i:], r.backend)
		if j < 0 {
			break
		}
		at := i + j
		end := at + len(r.backend)
		i = at + 1
		if !hostStarts(s, at) || !hostEnds(s, end) {
			continue
		}
		b.WriteString(s[last:at])
		b.WriteString(r.public)
		last, i = end, end
	}

	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// hostStarts reports whether a host name may begin at s[at].
func hostStarts(s string, at int) bool {
	if at == 0 {
		return true
	}
	if s[at-1] == '.' && at >= 2 && s[at-2] == '*' {
		return at == 2 || !isHostByte(s[at-3])
	}
	return !isHostByte(s[at-1]) && s[at-1] != '.'
}

// hostEnds reports whether a host name may end right before s[end]. A dot ends
// it only when no label follows: "host." closes a sentence, "host.net" is
// another name.
func hostEnds(s string, end int) bool {
	if end == len(s) {
		return true
	}
	if s[end] == '.' {
		return end+1 == len(s) || !isHostByte(s[end+1])
	}
	return !isHostByte(s[end])
}

func isHostByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

// asciiLower lowercases ASCII letters only, so byte offsets in the result
// match the input.
func asciiLower(s string) string {
	i := 0
	for i < len(s) && (s[i] < 'A' || s[i] > 'Z') {
		i++
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if c := b[i]; c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// ContainsBackend reports whether s still mentions the backend host in any of
// the forms Text rewrites.
func (r *Rewriter) ContainsBackend(s string) bool {
	return r.Text(s) != s
}
