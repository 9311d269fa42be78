package rewrite

import (
	"strings"
)

// InjectScript inserts snippet immediately before the first closing head tag.
// Documents without one get it right after the opening body tag; documents
// with neither are returned unchanged. The bool reports whether it was inserted.
func InjectScript(doc, snippet string) (string, bool) {
	if i := indexTagFold(doc, "</head>"); i >= 0 {
		return doc[:i] + snippet + doc[i:], true
	}
	if i := bodyTagEnd(doc); i >= 0 {
		return doc[:i] + snippet + doc[i:], true
	}
	return doc, false
}

// bodyTagEnd returns the offset just past the opening <body ...> tag, or -1.
func bodyTagEnd(doc string) int {
	from := 0
	for {
		i := indexTagFold(doc[from:], "<body")
		if i < 0 {
			return -1
		}
		i += from
		next := i + len("<body")
		if next < len(doc) && (doc[next] == '>' || isSpace(doc[next])) {
			end := strings.IndexByte(doc[next:], '>')
			if end < 0 {
				return -1
			}
			return next + end + 1
		}
		from = next // <bodyguard> and friends
	}
}

// indexTagFold is an ASCII case-insensitive strings.Index for a substr that
// starts with '<'.
func indexTagFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if s[i] == '<' && strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
