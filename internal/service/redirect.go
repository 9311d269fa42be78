package service

import (
	"net/http"

	"edgemask/internal/metrics"
	"edgemask/internal/model"
)

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// redirect ends the pipeline for a redirect response that carries a Location.
// The body is discarded. It reports false when the response is not a redirect,
// leaving resp untouched for the remaining stages.
func (s *ProxyService) redirect(pr *model.ProxyRequest, resp *model.UpstreamResponse) (*model.FinalResponse, bool) {
	if !redirectStatuses[resp.StatusCode] {
		return nil, false
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, false
	}
	_ = resp.Body.Close()

	header := s.responseHeaders(pr.Header, resp.Header)
	header.Set("Location", s.rw.Location(loc))
	header.Del("Content-Type")
	header.Del("Content-Encoding")
	s.metrics.Rewrite(metrics.StageRedirect)

	return &model.FinalResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
	}, true
}
