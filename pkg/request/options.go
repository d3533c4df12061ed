package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

const (
	DefaultLoadingTitle = "Loading..."
	DefaultSuccessTitle = "Operation succeeded"
	DefaultErrorTitle   = "Operation failed"

	ResponseTypeJSON  = "json"
	ResponseTypeText  = "text"
	ResponseTypeBytes = "bytes"
)

// Loading controls the loading indicator shown while a request is in flight.
type Loading struct {
	Enabled bool
	Title   string
}

// Notice controls one success or error notification. An empty Title falls
// back to the API message and then to the default title.
type Notice struct {
	Enabled bool
	Title   string
}

// Message controls success and error notifications.
type Message struct {
	Success Notice
	Error   Notice
}

// Reply is a raw response together with its decoded JSON body.
type Reply struct {
	Response httpclient.Response
	Data     any
}

// Options configure request behavior. Client defaults are copied per call and
// then adjusted by Option functions.
type Options struct {
	Loading                Loading
	Message                Message
	NeedHeaderToken        bool
	EnableRefreshToken     bool
	RefreshTokenRetryCount int
	// GetResponse returns the whole httpclient.Response instead of the body.
	GetResponse bool
	// GetAPIResponse returns the decoded envelope without IsSuccess/GetSuccessData.
	GetAPIResponse bool
	ResponseType   string
	Headers        map[string]string

	IsSuccess      func(*Reply) bool
	GetSuccessData func(*Reply) any
	GetAPIMessage  func(*Reply) string
	Interceptor    *Interceptor
}

// Option adjusts Options for a single call.
type Option func(*Options)

// WithLoading shows a loading indicator. An empty title uses DefaultLoadingTitle.
func WithLoading(title string) Option {
	return func(o *Options) { o.Loading = Loading{Enabled: true, Title: strings.TrimSpace(title)} }
}

// WithoutLoading disables the loading indicator.
func WithoutLoading() Option {
	return func(o *Options) { o.Loading = Loading{} }
}

// WithMessage toggles both success and error notifications.
func WithMessage(enabled bool) Option {
	return func(o *Options) {
		o.Message = Message{Success: Notice{Enabled: enabled}, Error: Notice{Enabled: enabled}}
	}
}

// WithSuccessMessage enables the success notification with an optional fixed title.
func WithSuccessMessage(title string) Option {
	return func(o *Options) { o.Message.Success = Notice{Enabled: true, Title: strings.TrimSpace(title)} }
}

// WithErrorMessage enables the error notification with an optional fixed title.
func WithErrorMessage(title string) Option {
	return func(o *Options) { o.Message.Error = Notice{Enabled: true, Title: strings.TrimSpace(title)} }
}

// WithHeaderToken toggles auth header injection.
func WithHeaderToken(enabled bool) Option {
	return func(o *Options) { o.NeedHeaderToken = enabled }
}

// WithRefreshToken toggles refresh-on-401.
func WithRefreshToken(enabled bool) Option {
	return func(o *Options) { o.EnableRefreshToken = enabled }
}

// WithRefreshRetryCount sets how many extra refresh attempts are made.
func WithRefreshRetryCount(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.RefreshTokenRetryCount = n
	}
}

// WithResponse returns the full response instead of the body.
func WithResponse() Option {
	return func(o *Options) { o.GetResponse = true }
}

// WithAPIResponse returns the decoded envelope as-is.
func WithAPIResponse() Option {
	return func(o *Options) { o.GetAPIResponse = true }
}

// WithResponseType sets how the body is interpreted: json, text or bytes.
func WithResponseType(typ string) Option {
	return func(o *Options) { o.ResponseType = strings.ToLower(strings.TrimSpace(typ)) }
}

// WithHeaders merges extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) {
		if len(headers) == 0 {
			return
		}
		merged := cloneStrings(o.Headers)
		if merged == nil {
			merged = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			merged[k] = v
		}
		o.Headers = merged
	}
}

// WithIsSuccess overrides the envelope success predicate.
func WithIsSuccess(fn func(*Reply) bool) Option {
	return func(o *Options) {
		if fn != nil {
			o.IsSuccess = fn
		}
	}
}

// WithSuccessData overrides the payload extractor.
func WithSuccessData(fn func(*Reply) any) Option {
	return func(o *Options) {
		if fn != nil {
			o.GetSuccessData = fn
		}
	}
}

// WithAPIMessage overrides the message extractor.
func WithAPIMessage(fn func(*Reply) string) Option {
	return func(o *Options) {
		if fn != nil {
			o.GetAPIMessage = fn
		}
	}
}

// WithInterceptor installs request/response hooks for the call.
func WithInterceptor(ic *Interceptor) Option {
	return func(o *Options) { o.Interceptor = ic }
}

// withDefaults fills unset extractors and the response type.
func (o Options) withDefaults() Options {
	if o.IsSuccess == nil {
		o.IsSuccess = DefaultIsSuccess
	}
	if o.GetSuccessData == nil {
		o.GetSuccessData = DefaultSuccessData
	}
	if o.GetAPIMessage == nil {
		o.GetAPIMessage = DefaultAPIMessage
	}
	if o.ResponseType == "" {
		o.ResponseType = ResponseTypeJSON
	}
	if o.RefreshTokenRetryCount < 0 {
		o.RefreshTokenRetryCount = 0
	}
	return o
}

func (o Options) apply(opts []Option) Options {
	o.Headers = cloneStrings(o.Headers)
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o.withDefaults()
}

// loadingTitle returns the title to show, or "" when loading is disabled.
func (o Options) loadingTitle() string {
	if !o.Loading.Enabled {
		return ""
	}
	if o.Loading.Title != "" {
		return o.Loading.Title
	}
	return DefaultLoadingTitle
}

// resolve picks notification titles, preferring explicit titles, then the API message.
func (m Message) resolve(apiMessage string) (success, failure string) {
	if m.Success.Enabled {
		success = firstNonEmpty(m.Success.Title, apiMessage, DefaultSuccessTitle)
	}
	if m.Error.Enabled {
		failure = firstNonEmpty(m.Error.Title, apiMessage, DefaultErrorTitle)
	}
	return success, failure
}

// DefaultIsSuccess treats envelopes with code 200 or success=true as successful.
func DefaultIsSuccess(r *Reply) bool {
	env, ok := envelope(r)
	if !ok {
		return false
	}
	if b, ok := env["success"].(bool); ok && b {
		return true
	}
	switch code := env["code"].(type) {
	case float64:
		return code == 200
	case json.Number:
		return code.String() == "200"
	case string:
		return strings.TrimSpace(code) == "200"
	}
	return false
}

// DefaultSuccessData returns the envelope's data field.
func DefaultSuccessData(r *Reply) any {
	env, ok := envelope(r)
	if !ok {
		return nil
	}
	return env["data"]
}

func envelope(r *Reply) (map[string]any, bool) {
	if r == nil {
		return nil, false
	}
	env, ok := r.Data.(map[string]any)
	return env, ok
}

func isJSON(responseType string) bool {
	return responseType == "" || responseType == ResponseTypeJSON
}

func decodeReply(resp httpclient.Response, responseType string) *Reply {
	r := &Reply{Response: resp}
	if resp == nil {
		return r
	}
	body := resp.Body()
	if len(body) == 0 || !isJSON(responseType) {
		return r
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		r.Data = string(body)
		return r
	}
	r.Data = data
	return r
}

func rawBody(resp httpclient.Response, responseType string) any {
	if resp == nil {
		return nil
	}
	if responseType == ResponseTypeText {
		return string(resp.Body())
	}
	return resp.Body()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func describe(d *Descriptor) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(d.Method), d.URL)
}
