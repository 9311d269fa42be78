package service

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"edgemask/internal/metrics"
	"edgemask/internal/model"
)

// alwaysDropped are request headers replaced or recomputed for the origin.
// Accept-Encoding is left to the transport so bodies come back decoded.
var alwaysDropped = []string{"Host", "Origin", "Referer", "Accept-Encoding", "Content-Length"}

func requestDropSet(configured []string) map[string]bool {
	set := make(map[string]bool, len(alwaysDropped)+len(configured))
	for _, h := range alwaysDropped {
		set[h] = true
	}
	for _, h := range configured {
		set[http.CanonicalHeaderKey(strings.TrimSpace(h))] = true
	}
	return set
}

// buildOutbound turns the client request into the request sent to the origin.
func (s *ProxyService) buildOutbound(pr *model.ProxyRequest) *model.OutboundRequest {
	backend := s.rw.BackendHost()
	listed := connectionTokens(pr.Header)

	header := make(http.Header, len(pr.Header)+2)
	for k, vals := range pr.Header {
		ck := http.CanonicalHeaderKey(k)
		if s.dropRequest[ck] || isHopByHop(ck, listed) {
			continue
		}
		// Cookie lines are copied byte-for-byte, in order.
		header[ck] = append(header[ck], vals...)
	}
	header.Set("Origin", "https://"+backend)
	header.Set("Referer", "https://"+backend+pr.PathWithQuery())

	return &model.OutboundRequest{
		Method: pr.Method,
		URL:    s.upstreamURL(pr),
		Host:   backend,
		Header: header,
		Body:   s.requestBody(pr),
	}
}

// upstreamURL joins the configured base URL with the client's path and query
// as they appeared on the wire.
func (s *ProxyService) upstreamURL(pr *model.ProxyRequest) string {
	u := *s.baseURL
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/") + pr.PathWithQuery()
}

// requestBody reads the client body for methods that carry one. A read
// failure drops the payload rather than the request.
func (s *ProxyService) requestBody(pr *model.ProxyRequest) []byte {
	if pr.Body == nil || pr.Method == http.MethodGet || pr.Method == http.MethodHead {
		return nil
	}

	body, err := io.ReadAll(pr.Body)
	if err != nil {
		s.logger.Warn("reading request body; forwarding without payload",
			"err", err,
			"path", pr.Path,
		)
		return nil
	}
	if len(body) == 0 {
		return nil
	}

	if !strings.Contains(strings.ToLower(pr.Header.Get("Content-Type")), "application/json") {
		return body
	}

	out := s.rw.RequestJSON(body)
	if !bytes.Equal(out, body) {
		s.metrics.Rewrite(metrics.StageRequestJSON)
	}
	return out
}
