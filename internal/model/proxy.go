// Package model defines the request-scoped values passed between pipeline stages.
// None of them outlive the request that created them.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is the inbound client request as received at the public host.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Path     string // escaped, as received
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser
}

// PathWithQuery returns the request target as path[?query].
func (r *ProxyRequest) PathWithQuery() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// OutboundRequest is the request sent to the backend host.
type OutboundRequest struct {
	Method string
	URL    string
	Host   string
	Header http.Header
	Body   []byte
}

// UpstreamResponse is the backend's answer before any rewriting.
// Header keeps every Set-Cookie line as a separate value.
type UpstreamResponse struct {
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64 // -1 when unknown
}

// FinalResponse is what the caller receives. Exactly one of Body or Stream is
// used: Body for rewritten or synthesized content, Stream for passthrough.
type FinalResponse struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	Stream        io.ReadCloser
	ContentLength int64 // only meaningful with Stream; -1 when unknown
}

// Close releases the passthrough stream, if any.
func (r *FinalResponse) Close() error {
	if r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}
