package request

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/stretchr/testify/require"
)

func staticClient(t *testing.T, status int, body string, toaster Toaster) (*Client, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{handler: func(*httpclient.Request) (int, string) { return status, body }}
	client, err := New(Config{Transport: tr, Toaster: toaster})
	require.NoError(t, err)
	return client, tr
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNoTransport)
}

func TestDefaultUnwrapsSuccessData(t *testing.T) {
	toaster := &recordingToaster{}
	client, _ := staticClient(t, http.StatusOK, `{"code":200,"msg":"saved","data":{"id":7}}`, toaster)

	v, err := client.Post(context.Background(), "/items", nil, map[string]any{"name": "x"},
		WithLoading(""), WithSuccessMessage(""))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": float64(7)}, v)
	require.Equal(t, []string{"loading:" + DefaultLoadingTitle, "close", "success:saved"}, toaster.snapshot())
}

func TestSuccessFlagCountsAsSuccess(t *testing.T) {
	client, _ := staticClient(t, http.StatusOK, `{"success":true,"data":[1,2]}`, nil)
	v, err := client.Get(context.Background(), "/items", nil)
	require.NoError(t, err)
	require.Equal(t, []any{float64(1), float64(2)}, v)
}

func TestUnsuccessfulEnvelopeIsApplicationError(t *testing.T) {
	toaster := &recordingToaster{}
	client, _ := staticClient(t, http.StatusOK, `{"code":500,"error_description":"quota exceeded"}`, toaster)

	_, err := client.Get(context.Background(), "/items", nil, WithMessage(true), WithLoading("Fetching"))
	require.ErrorIs(t, err, ErrApplication)
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "quota exceeded", appErr.Message)
	require.Equal(t, "quota exceeded", MessageOf(err))
	require.Equal(t, []string{"loading:Fetching", "close", "error:quota exceeded"}, toaster.snapshot())
}

func TestGetResponseReturnsRawResponse(t *testing.T) {
	client, _ := staticClient(t, http.StatusOK, `{"code":500}`, nil)
	v, err := client.Get(context.Background(), "/items", nil, WithResponse())
	require.NoError(t, err)
	resp, ok := v.(httpclient.Response)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetAPIResponseReturnsEnvelope(t *testing.T) {
	client, _ := staticClient(t, http.StatusOK, `{"code":500,"data":1}`, nil)
	v, err := client.Get(context.Background(), "/items", nil, WithAPIResponse())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"code": float64(500), "data": float64(1)}, v)
}

func TestNonJSONResponseTypeReturnsBody(t *testing.T) {
	toaster := &recordingToaster{}
	client, _ := staticClient(t, http.StatusOK, "plain body", toaster)

	v, err := client.Get(context.Background(), "/file", nil, WithResponseType("text"), WithSuccessMessage("Downloaded"))
	require.NoError(t, err)
	require.Equal(t, "plain body", v)
	require.Equal(t, []string{"success:Downloaded"}, toaster.snapshot())

	v, err = client.Get(context.Background(), "/file", nil, WithResponseType("bytes"))
	require.NoError(t, err)
	require.Equal(t, []byte("plain body"), v)
}

func TestCustomPredicates(t *testing.T) {
	client, _ := staticClient(t, http.StatusOK, `{"status":"ok","result":"done","note":"custom"}`, nil)
	v, err := client.Get(context.Background(), "/x", nil,
		WithIsSuccess(func(r *Reply) bool {
			env, _ := r.Data.(map[string]any)
			return env["status"] == "ok"
		}),
		WithSuccessData(func(r *Reply) any {
			return r.Data.(map[string]any)["result"]
		}),
	)
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestErrorMessageFallsBackToDefault(t *testing.T) {
	toaster := &recordingToaster{}
	client, _ := staticClient(t, http.StatusInternalServerError, `{}`, toaster)
	_, err := client.Get(context.Background(), "/x", nil, WithErrorMessage(""))
	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, httpclient.StatusOf(err))
	require.Equal(t, []string{"error:" + DefaultErrorTitle}, toaster.snapshot())
}

func TestTransportErrorMessageIsShown(t *testing.T) {
	tr := transportFunc(func(context.Context, *httpclient.Request) (httpclient.Response, error) {
		return nil, &httpclient.TransportError{Kind: httpclient.KindNetwork, Message: "Network Error"}
	})
	toaster := &recordingToaster{}
	client, err := New(Config{Transport: tr, Toaster: toaster})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/x", nil, WithMessage(true))
	require.Error(t, err)
	require.Equal(t, []string{"error:Network Error"}, toaster.snapshot())
}

func TestHTMLErrorPageMessage(t *testing.T) {
	r := &Reply{Response: &fakeResponse{
		status: http.StatusBadGateway,
		body:   []byte(`<html><head><title>502 Bad Gateway</title></head><body></body></html>`),
		header: http.Header{"Content-Type": {"text/html"}},
	}}
	r.Data = "not json"
	require.Equal(t, "502 Bad Gateway", DefaultAPIMessage(r))
}

func TestInterceptorHooks(t *testing.T) {
	client, tr := staticClient(t, http.StatusNotFound, `{"msg":"missing"}`, nil)
	ic := &Interceptor{
		Request: func(_ context.Context, d *Descriptor) (*Descriptor, error) {
			d.Headers = map[string]string{"X-Trace": "t1"}
			return d, nil
		},
		ResponseError: func(_ context.Context, _ *Descriptor, _ httpclient.Response, err error) (httpclient.Response, error) {
			if httpclient.StatusOf(err) == http.StatusNotFound {
				return &fakeResponse{status: http.StatusOK, body: []byte(`{"code":200,"data":"fallback"}`)}, nil
			}
			return nil, err
		},
	}
	v, err := client.Get(context.Background(), "/x", nil, WithInterceptor(ic))
	require.NoError(t, err)
	require.Equal(t, "fallback", v)
	require.Equal(t, "t1", tr.calls[0].Header("X-Trace"))
}

func TestUploadSendsFile(t *testing.T) {
	client, tr := staticClient(t, http.StatusOK, `{"code":200,"data":"ok"}`, nil)
	file := FileFromBytes("", "a.txt", []byte("hello"))
	file.Form = map[string]string{"kind": "doc"}
	v, err := client.Upload(context.Background(), "/upload", Params{"dir": "x"}, file)
	require.NoError(t, err)
	require.Equal(t, "ok", v)

	req := tr.calls[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "file", req.File.Field)
	require.Equal(t, "doc", req.Form["kind"])
	require.Equal(t, "x", req.Query["dir"])
}

func TestAsConvertsResult(t *testing.T) {
	type item struct {
		ID int `json:"id"`
	}
	got, err := As[item](map[string]any{"id": float64(3)}, nil)
	require.NoError(t, err)
	require.Equal(t, item{ID: 3}, got)

	_, err = As[item](nil, errors.New("boom"))
	require.EqualError(t, err, "boom")
}

type transportFunc func(context.Context, *httpclient.Request) (httpclient.Response, error)

func (f transportFunc) Dispatch(ctx context.Context, req *httpclient.Request) (httpclient.Response, error) {
	return f(ctx, req)
}
