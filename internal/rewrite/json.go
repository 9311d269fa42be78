package rewrite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var errTrailingData = errors.New("trailing data after JSON value")

// JSON rewrites every string (object keys included) inside a JSON document
// with fn. The document is re-emitted token by token, so key order and number
// text are kept. When no string changed, data is returned as-is with its
// formatting. A parse error returns data unchanged with the error.
func JSON(data []byte, fn func(string) string) ([]byte, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	w := &jsonWriter{fn: fn}
	w.enc = json.NewEncoder(&w.buf)
	w.enc.SetEscapeHTML(false)

	if err := w.value(dec); err != nil {
		return data, false, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return data, false, errTrailingData
	}

	if !w.changed {
		return data, false, nil
	}
	return w.buf.Bytes(), true, nil
}

// jsonWriter re-emits a decoded token stream in compact form.
type jsonWriter struct {
	buf     bytes.Buffer
	enc     *json.Encoder
	fn      func(string) string
	changed bool
}

func (w *jsonWriter) value(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		return w.container(dec, t)
	case string:
		return w.str(t)
	case json.Number:
		w.buf.WriteString(t.String())
	case bool:
		w.buf.WriteString(strconv.FormatBool(t))
	case nil:
		w.buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func (w *jsonWriter) container(dec *json.Decoder, open json.Delim) error {
	var closing byte
	switch open {
	case '{':
		closing = '}'
	case '[':
		closing = ']'
	default:
		return fmt.Errorf("unexpected delimiter %v", open)
	}

	w.buf.WriteByte(byte(open))
	for n := 0; dec.More(); n++ {
		if n > 0 {
			w.buf.WriteByte(',')
		}
		if open == '{' {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v", tok)
			}
			if err := w.str(key); err != nil {
				return err
			}
			w.buf.WriteByte(':')
		}
		if err := w.value(dec); err != nil {
			return err
		}
	}

	// Consumes the closing delimiter; a truncated document fails here.
	if _, err := dec.Token(); err != nil {
		return err
	}
	w.buf.WriteByte(closing)
	return nil
}

func (w *jsonWriter) str(s string) error {
	out := w.fn(s)
	if out != s {
		w.changed = true
	}
	if err := w.enc.Encode(out); err != nil {
		return err
	}
	// Encode terminates each value with a newline.
	w.buf.Truncate(w.buf.Len() - 1)
	return nil
}

// RequestJSON rewrites public-host references in a client JSON payload into
// backend-host references. Malformed JSON falls back to plain substitution.
func (r *Rewriter) RequestJSON(data []byte) []byte {
	out, _, err := JSON(data, r.Request)
	if err != nil {
		return []byte(r.Request(string(data)))
	}
	return out
}

// ResponseJSON applies the structured pass to an already text-substituted
// response body. It reports whether the structured pass changed anything; a
// parse error leaves data as-is and is returned for logging only.
func (r *Rewriter) ResponseJSON(data []byte) ([]byte, bool, error) {
	return JSON(data, r.Value)
}
