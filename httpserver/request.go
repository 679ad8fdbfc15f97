package httpserver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Request is one parsed HTTP request. Header names are kept
// case-sensitive with last-write-wins on duplicates; query parameter
// values are passed through verbatim, without percent-decoding.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// readRequest parses the request line and headers from r, then, for
// body-bearing verbs with a parsable Content-Length, reads exactly that
// many body bytes. Body bytes already buffered alongside the headers
// are consumed from the same reader. A missing or malformed
// Content-Length yields an empty body rather than a read error.
func readRequest(r *bufio.Reader) (*Request, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")

	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed request line: %q", line)
	}

	req := &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		Headers: make(map[string]string),
		Query:   make(map[string]string),
	}

	if path, rawQuery, ok := strings.Cut(req.Path, "?"); ok {
		req.Path = path
		req.Query = parseQuery(rawQuery)
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Headers[name] = strings.TrimLeft(value, " \t")
	}

	if req.Method == "POST" || req.Method == "PUT" {
		if n, err := strconv.Atoi(req.Headers["Content-Length"]); err == nil && n > 0 {
			body := make([]byte, n)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("error reading request body: %w", err)
			}
			req.Body = body
		}
	}

	return req, nil
}

// parseQuery splits on '&' then '='. A parameter with no '=' is kept
// with an empty value. Values are not percent-decoded.
func parseQuery(rawQuery string) map[string]string {
	params := make(map[string]string)
	for _, param := range strings.Split(rawQuery, "&") {
		if param == "" {
			continue
		}
		name, value, _ := strings.Cut(param, "=")
		params[name] = value
	}
	return params
}
