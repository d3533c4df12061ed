package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any StatusError carrying a 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrorKind classifies transport-level failures.
type ErrorKind string

const (
	KindAborted ErrorKind = "aborted"
	KindTimeout ErrorKind = "timeout"
	KindNetwork ErrorKind = "network"
)

// CodeConnAborted is reported for aborted and timed out requests.
const CodeConnAborted = "ECONNABORTED"

// TransportError is a failure before any HTTP response was received.
type TransportError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is returned together with the response when the status is not 2xx.
type StatusError struct {
	Response Response
}

func (e *StatusError) Error() string {
	status := e.StatusCode()
	text := http.StatusText(status)
	snippet := readBodySnippet(e.body())
	if snippet == "" {
		return fmt.Sprintf("request failed with status %d %s", status, text)
	}
	return fmt.Sprintf("request failed with status %d %s: %s", status, text, snippet)
}

// StatusCode returns the response status or 0 if there is no response.
func (e *StatusError) StatusCode() int {
	if e == nil || e.Response == nil {
		return 0
	}
	return e.Response.StatusCode()
}

func (e *StatusError) body() []byte {
	if e == nil || e.Response == nil {
		return nil
	}
	return e.Response.Body()
}

// Is reports a match for ErrUnauthorized on 401 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode() == http.StatusUnauthorized
}

// ResponseOf extracts the response attached to err, if any.
func ResponseOf(err error) (Response, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Response != nil {
		return se.Response, true
	}
	return nil, false
}

// StatusOf returns the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}

func readBodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
