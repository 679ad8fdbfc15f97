package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response accumulates the status, headers and body a handler wants to
// send. The zero-value adjustments in newResponse make an untouched
// response a valid 200 OK.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

func newResponse() *Response {
	return &Response{
		StatusCode: 200,
		StatusText: "OK",
		Headers:    make(map[string]string),
	}
}

// SetJSON marshals v into the body and sets the JSON content type.
func (r *Response) SetJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response JSON: %w", err)
	}
	r.Body = data
	r.Headers["Content-Type"] = "application/json"
	return nil
}

// SetText sets a plain-text body.
func (r *Response) SetText(text string) {
	r.Body = []byte(text)
	r.Headers["Content-Type"] = "text/plain"
}

// SetStatus sets the status line fields.
func (r *Response) SetStatus(code int, text string) {
	r.StatusCode = code
	r.StatusText = text
}

// serialize renders the fixed HTTP/1.1 framing: status line, computed
// Content-Length, caller headers, blank line, body. The result is sent
// in a single socket write.
func (r *Response) serialize() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.StatusCode, r.StatusText)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	for name, value := range r.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}
