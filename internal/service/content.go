package service

import (
	"fmt"
	"io"
	"net/http"

	"edgemask/internal/metrics"
	"edgemask/internal/model"
	"edgemask/internal/rewrite"
)

// content rewrites textual bodies and streams everything else through.
// Read and decode failures are fatal for the response; a JSON body that does
// not parse keeps its text substitution.
func (s *ProxyService) content(method string, resp *model.UpstreamResponse, header http.Header) (*model.FinalResponse, error) {
	ct := resp.Header.Get("Content-Type")
	if method == http.MethodHead || !bodyAllowed(resp.StatusCode) || !rewrite.IsTextual(ct) {
		return &model.FinalResponse{
			StatusCode:    resp.StatusCode,
			Header:        header,
			Stream:        resp.Body,
			ContentLength: resp.ContentLength,
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.RewriteFailed(metrics.StageDecode)
		return nil, &Error{Class: ErrRewrite, Err: fmt.Errorf("read body: %w", err)}
	}
	decoded, err := rewrite.Decode(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		s.metrics.RewriteFailed(metrics.StageDecode)
		return nil, &Error{Class: ErrRewrite, Err: err}
	}
	header.Del("Content-Encoding")

	text := string(decoded)
	if s.script != "" && rewrite.IsHTML(ct) {
		if injected, ok := rewrite.InjectScript(text, s.script); ok {
			text = injected
			s.metrics.Rewrite(metrics.StageHTML)
		}
	}
	if s.rw.ContainsBackend(text) {
		text = s.rw.Text(text)
		s.metrics.Rewrite(metrics.StageText)
	}

	body := []byte(text)
	if rewrite.IsJSON(ct) {
		out, changed, err := s.rw.ResponseJSON(body)
		switch {
		case err != nil:
			s.metrics.RewriteFailed(metrics.StageJSON)
			s.logger.Debug("response json did not parse; keeping text substitution",
				"err", err,
				"content_type", ct,
			)
		case changed:
			body = out
			s.metrics.Rewrite(metrics.StageJSON)
		}
	}

	return &model.FinalResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// bodyAllowed reports whether a response with status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
