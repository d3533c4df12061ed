package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	PlatformWeb      = "web"
	PlatformWx       = "wx"
	PlatformAlipay   = "alipay"
	PlatformDingTalk = "dingtalk"
	PlatformGeneric  = "generic"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Platform adapts requests and transport failures to the conventions of the
// runtime the client is deployed in. It is selected once at startup.
type Platform interface {
	Name() string
	// Prepare returns a copy of req adjusted for the platform.
	Prepare(req *Request) (*Request, error)
	// TransportError maps a raw dispatch failure onto a TransportError.
	TransportError(err error, timeout time.Duration) *TransportError
}

// PlatformByName resolves a platform variant from its configured name.
func PlatformByName(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PlatformWeb, "xhr", "browser":
		return webPlatform{}, nil
	case PlatformWx, "wechat", "weixin":
		return wxPlatform{}, nil
	case PlatformAlipay, "my":
		return alipayPlatform{}, nil
	case PlatformDingTalk, "dd":
		return dingTalkPlatform{}, nil
	case PlatformGeneric:
		return genericPlatform{}, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", name)
	}
}

type webPlatform struct{}

func (webPlatform) Name() string { return PlatformWeb }

func (webPlatform) Prepare(req *Request) (*Request, error) { return cloneRequest(req), nil }

func (webPlatform) TransportError(err error, timeout time.Duration) *TransportError {
	return classifiedError(PlatformWeb, err, timeout)
}

// wxPlatform follows wx.request, which sends JSON bodies by default.
type wxPlatform struct{}

func (wxPlatform) Name() string { return PlatformWx }

func (wxPlatform) Prepare(req *Request) (*Request, error) {
	out := cloneRequest(req)
	if out.Body != nil && out.File == nil {
		out.setDefaultHeader("Content-Type", contentTypeJSON)
	}
	return out, nil
}

func (wxPlatform) TransportError(err error, timeout time.Duration) *TransportError {
	return classifiedError(PlatformWx, err, timeout)
}

// alipayPlatform follows my.request, which defaults to JSON like wx.
type alipayPlatform struct{}

func (alipayPlatform) Name() string { return PlatformAlipay }

func (alipayPlatform) Prepare(req *Request) (*Request, error) {
	out := cloneRequest(req)
	if out.Body != nil && out.File == nil {
		out.setDefaultHeader("Content-Type", contentTypeJSON)
	}
	return out, nil
}

func (alipayPlatform) TransportError(err error, timeout time.Duration) *TransportError {
	return classifiedError(PlatformAlipay, err, timeout)
}

// dingTalkPlatform follows dd.httpRequest: form encoding by default, and JSON
// bodies must be serialized to a string up front.
type dingTalkPlatform struct{}

func (dingTalkPlatform) Name() string { return PlatformDingTalk }

func (dingTalkPlatform) Prepare(req *Request) (*Request, error) {
	out := cloneRequest(req)
	if out.Body == nil || out.File != nil {
		return out, nil
	}
	out.setDefaultHeader("Content-Type", contentTypeForm)

	ct := strings.ToLower(out.Header("Content-Type"))
	switch {
	case strings.HasPrefix(ct, contentTypeJSON):
		switch out.Body.(type) {
		case string, []byte:
		default:
			raw, err := json.Marshal(out.Body)
			if err != nil {
				return nil, fmt.Errorf("encode dingtalk json body: %w", err)
			}
			out.Body = string(raw)
		}
	case strings.HasPrefix(ct, contentTypeForm):
		if form, ok := formValues(out.Body); ok {
			out.Form = mergeForm(out.Form, form)
			out.Body = nil
		}
	}
	return out, nil
}

func (dingTalkPlatform) TransportError(err error, timeout time.Duration) *TransportError {
	return classifiedError(PlatformDingTalk, err, timeout)
}

// genericPlatform reports every failure as a network error.
type genericPlatform struct{}

func (genericPlatform) Name() string { return PlatformGeneric }

func (genericPlatform) Prepare(req *Request) (*Request, error) { return cloneRequest(req), nil }

func (genericPlatform) TransportError(err error, _ time.Duration) *TransportError {
	return &TransportError{Kind: KindNetwork, Message: "Network Error", Platform: PlatformGeneric, Err: err}
}

func classifiedError(platform string, err error, timeout time.Duration) *TransportError {
	switch classify(err) {
	case KindAborted:
		return &TransportError{Kind: KindAborted, Code: CodeConnAborted, Message: "Request aborted", Platform: platform, Err: err}
	case KindTimeout:
		return &TransportError{
			Kind:     KindTimeout,
			Code:     CodeConnAborted,
			Message:  fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds()),
			Platform: platform,
			Err:      err,
		}
	default:
		return &TransportError{Kind: KindNetwork, Message: "Network Error", Platform: platform, Err: err}
	}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindAborted
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func cloneRequest(req *Request) *Request {
	if req == nil {
		return &Request{}
	}
	out := *req
	out.Headers = cloneStrings(req.Headers)
	out.Query = cloneStrings(req.Query)
	out.Form = cloneStrings(req.Form)
	return &out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func formValues(body any) (map[string]string, bool) {
	switch b := body.(type) {
	case map[string]string:
		return b, true
	case map[string]any:
		out := make(map[string]string, len(b))
		for k, v := range b {
			out[k] = fmt.Sprint(v)
		}
		return out, true
	default:
		return nil, false
	}
}

func mergeForm(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
