package service

import (
	"net/http"

	"edgemask/internal/metrics"
	"edgemask/internal/rewrite"
)

// responseHeaders builds the client-facing header set from the origin's.
// Values lose every backend-host reference, each Set-Cookie is rewritten
// separately, and CORS headers are replaced with the proxy's own.
func (s *ProxyService) responseHeaders(req, src http.Header) http.Header {
	listed := connectionTokens(src)
	dst := make(http.Header, len(src)+3)

	for k, vals := range src {
		ck := http.CanonicalHeaderKey(k)
		switch {
		case ck == "Set-Cookie", ck == "Content-Length":
			continue
		case isHopByHop(ck, listed), isCORSHeader(ck):
			continue
		}
		for _, v := range vals {
			dst.Add(ck, s.rw.Header(v))
		}
	}

	setCORS(dst, req)

	for _, raw := range src.Values("Set-Cookie") {
		dst.Add("Set-Cookie", rewrite.RewriteCookie(raw, s.cookies))
		s.metrics.Rewrite(metrics.StageCookie)
	}

	return dst
}
