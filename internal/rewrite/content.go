package rewrite

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding the rewriter cannot decode.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// textualTypes are the non text/* media types whose bodies are rewritten.
var textualTypes = map[string]bool{
	"application/json":         true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"application/ecmascript":   true,
}

// MediaType returns the lowercase media type of a Content-Type value without
// parameters. Unparsable values fall back to the text before the first ';'.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsTextual reports whether a body of this content type is decoded and rewritten.
// Everything else is streamed through untouched.
func IsTextual(contentType string) bool {
	mt := MediaType(contentType)
	return strings.HasPrefix(mt, "text/") || textualTypes[mt] || strings.HasSuffix(mt, "+json")
}

// IsHTML reports whether the content type is an HTML document.
func IsHTML(contentType string) bool {
	return MediaType(contentType) == "text/html"
}

// IsJSON reports whether the content type is JSON.
func IsJSON(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// Decode undoes a Content-Encoding so the body can be rewritten as text.
func Decode(body []byte, encoding string) ([]byte, error) {
	var r io.ReadCloser
	var err error

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		r, err = gzip.NewReader(bytes.NewReader(body))
	case "deflate":
		r, err = zlib.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", encoding, err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", encoding, err)
	}
	return out, nil
}
