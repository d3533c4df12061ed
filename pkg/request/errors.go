package request

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

var (
	// ErrNoTransport is returned by New when Config.Transport is nil.
	ErrNoTransport = errors.New("request: transport is required")
	// ErrApplication matches every *ApplicationError via errors.Is.
	ErrApplication = errors.New("request: application error")
)

// ApplicationError reports a 2xx response whose envelope was not successful.
type ApplicationError struct {
	Message  string
	Reply    *Reply
	Response httpclient.Response
}

func (e *ApplicationError) Error() string {
	status := 0
	if e.Response != nil {
		status = e.Response.StatusCode()
	}
	if e.Message == "" {
		return fmt.Sprintf("application error (status %d)", status)
	}
	return fmt.Sprintf("application error (status %d): %s", status, e.Message)
}

func (e *ApplicationError) Is(target error) bool { return target == ErrApplication }

// MessageOf returns the user facing message carried by err, if any.
func MessageOf(err error) string {
	var app *ApplicationError
	if errors.As(err, &app) {
		return app.Message
	}
	var te *httpclient.TransportError
	if errors.As(err, &te) {
		return te.Message
	}
	if resp, ok := httpclient.ResponseOf(err); ok {
		return DefaultAPIMessage(decodeReply(resp, ResponseTypeJSON))
	}
	return ""
}
