package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/request"
	"golang.org/x/oauth2"
)

// apiServer accepts access token "a2" and rotates "r1" into "a2"/"r2".
func apiServer(t *testing.T, refreshes *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"bad refresh token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"access_token":"a2","refresh_token":"r2","expires_in":60}}`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"name":"demo"}}`))
	})
	return httptest.NewServer(mux)
}

func TestEndpointRefresherRotatesTokens(t *testing.T) {
	var refreshes atomic.Int32
	srv := apiServer(t, &refreshes)
	defer srv.Close()

	store, _ := NewStore("memory", "", Options{})
	_ = store.Save("user", Tokens{AccessToken: "a1", RefreshToken: "r1"})

	client, err := request.New(request.Config{
		Transport:      httpclient.NewRestyTransport(httpclient.Options{BaseURL: srv.URL, Timeout: 2 * time.Second}),
		Defaults:       request.Options{NeedHeaderToken: true, EnableRefreshToken: true},
		HeaderInjector: NewHeaderInjector(store, "user", nil),
		Refresher:      &EndpointRefresher{Store: store, Key: "user", URL: "/refresh"},
	})
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}

	v, err := client.Get(context.Background(), "/profile", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := v.(map[string]any)["name"]; got != "demo" {
		t.Fatalf("unexpected payload %#v", v)
	}
	if refreshes.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes.Load())
	}

	tokens, _ := store.Load("user")
	if tokens.AccessToken != "a2" || tokens.RefreshToken != "r2" || tokens.Expiry.IsZero() {
		t.Fatalf("tokens not rotated: %#v", tokens)
	}
}

func TestEndpointRefresherWithoutRefreshToken(t *testing.T) {
	store, _ := NewStore("memory", "", Options{})
	r := &EndpointRefresher{Store: store, Key: "user", URL: "/refresh"}
	client, _ := request.New(request.Config{Transport: httpclient.NewRestyClient(time.Second)})
	err := r.Refresh(context.Background(), request.RefreshContext{Client: client, Attempt: 1})
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestHeaderInjectorWithoutSession(t *testing.T) {
	store, _ := NewStore("memory", "", Options{})
	h := NewHeaderInjector(store, "user", nil)
	headers, err := h.InjectAuthHeader(context.Background(), &request.Descriptor{})
	if err != nil || headers != nil {
		t.Fatalf("expected no header, got %#v err=%v", headers, err)
	}
}

func TestOAuth2RefresherUsesRefreshGrant(t *testing.T) {
	var grants atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "r1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"o2","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	store, _ := NewStore("memory", "", Options{})
	_ = store.Save("svc", Tokens{AccessToken: "o1", RefreshToken: "r1"})

	r := &OAuth2Refresher{
		Config: &oauth2.Config{
			ClientID: "cli",
			Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
		},
		Store:      store,
		Key:        "svc",
		HTTPClient: srv.Client(),
	}
	if err := r.Refresh(context.Background(), request.RefreshContext{Attempt: 1}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	tokens, _ := store.Load("svc")
	if tokens.AccessToken != "o2" || tokens.RefreshToken != "r1" {
		t.Fatalf("unexpected tokens %#v", tokens)
	}
	if tokens.AuthorizationHeader() != "Bearer o2" {
		t.Fatalf("header = %q", tokens.AuthorizationHeader())
	}
	if grants.Load() != 1 {
		t.Fatalf("expected one grant, got %d", grants.Load())
	}
}
