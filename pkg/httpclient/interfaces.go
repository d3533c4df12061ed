package httpclient

import (
	"context"
	"io"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Transport abstracts HTTP dispatch so callers can inject mocks or different platforms.
type Transport interface {
	Dispatch(ctx context.Context, req *Request) (Response, error)
}

// Request is the platform-neutral shape handed to a Transport.
type Request struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    any
	File    *File
	Form    map[string]string
}

// File is a multipart upload part. Open is called once per dispatch so a
// replayed request re-sends the full content.
type File struct {
	Field string
	Name  string
	Open  func() (io.ReadCloser, error)
}

// Header returns the value of key, matching case-insensitively.
func (r *Request) Header(key string) string {
	if r == nil {
		return ""
	}
	canon := http.CanonicalHeaderKey(key)
	for k, v := range r.Headers {
		if http.CanonicalHeaderKey(k) == canon {
			return v
		}
	}
	return ""
}

// setDefaultHeader sets key unless a header with the same canonical name exists.
func (r *Request) setDefaultHeader(key, value string) {
	if r.Header(key) != "" {
		return
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string, 1)
	}
	r.Headers[key] = value
}
