package request

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
)

// Params are query parameters. Values are formatted with fmt.Sprint; nil values are skipped.
type Params map[string]any

// Flags drive the pipeline and the refresh coordinator.
type Flags struct {
	NeedsAuthHeader   bool
	RefreshEnabled    bool
	RefreshRetryCount int
	IsReplay          bool
}

// Descriptor describes one outgoing request. It is not mutated once dispatched;
// the pipeline and replays work on clones.
type Descriptor struct {
	Method  string
	URL     string
	Params  Params
	Body    any
	Headers map[string]string
	Upload  *UploadFile
	Options Options
	Flags   Flags
}

// UploadFile is a multipart file part plus extra form fields.
type UploadFile struct {
	Field string
	Name  string
	Open  func() (io.ReadCloser, error)
	Form  map[string]string
}

// FileFromPath builds an upload that re-opens path on every dispatch.
func FileFromPath(field, path string) UploadFile {
	return UploadFile{
		Field: field,
		Name:  filepath.Base(path),
		Open:  func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FileFromBytes builds an upload from in-memory content.
func FileFromBytes(field, name string, content []byte) UploadFile {
	return UploadFile{
		Field: field,
		Name:  name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// NewDescriptor builds a descriptor whose flags mirror opts.
func NewDescriptor(method, url string, params Params, body any, opts Options) *Descriptor {
	return &Descriptor{
		Method:  method,
		URL:     url,
		Params:  params,
		Body:    body,
		Headers: cloneStrings(opts.Headers),
		Options: opts,
		Flags: Flags{
			NeedsAuthHeader:   opts.NeedHeaderToken,
			RefreshEnabled:    opts.EnableRefreshToken,
			RefreshRetryCount: opts.RefreshTokenRetryCount,
		},
	}
}

// Clone returns a copy with independent header and param maps.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d
	out.Headers = cloneStrings(d.Headers)
	if d.Params != nil {
		out.Params = make(Params, len(d.Params))
		for k, v := range d.Params {
			out.Params[k] = v
		}
	}
	if d.Upload != nil {
		up := *d.Upload
		up.Form = cloneStrings(d.Upload.Form)
		out.Upload = &up
	}
	return &out
}

// Replay returns the clone dispatched after a refresh.
func (d *Descriptor) Replay() *Descriptor {
	out := d.Clone()
	out.Flags.IsReplay = true
	return out
}

// transportRequest converts the descriptor into the transport shape.
func (d *Descriptor) transportRequest() *httpclient.Request {
	req := &httpclient.Request{
		Method:  d.Method,
		URL:     d.URL,
		Headers: cloneStrings(d.Headers),
		Body:    d.Body,
	}
	if len(d.Params) > 0 {
		req.Query = make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			if v == nil {
				continue
			}
			req.Query[k] = fmt.Sprint(v)
		}
	}
	if up := d.Upload; up != nil {
		req.File = &httpclient.File{Field: up.Field, Name: up.Name, Open: up.Open}
		req.Form = cloneStrings(up.Form)
	}
	return req
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
