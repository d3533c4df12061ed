package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/request"
	"golang.org/x/oauth2"
)

// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// EndpointRefresher renews tokens by calling a refresh endpoint through the
// same request client. The call runs with refresh disabled.
type EndpointRefresher struct {
	Store  Store
	Key    string
	URL    string
	Method string
	// SendAuthHeader also attaches the current (expired) access token.
	SendAuthHeader bool
	// PlainJSON means the endpoint returns the token payload itself rather
	// than a {code, data} envelope.
	PlainJSON bool
	Log       Logger
}

// refreshPayload accepts both OAuth style and plain {"token": ...} payloads.
type refreshPayload struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh implements request.Refresher.
func (r *EndpointRefresher) Refresh(ctx context.Context, rc request.RefreshContext) error {
	if rc.Client == nil {
		return fmt.Errorf("endpoint refresher requires a client")
	}
	log := ensureLogger(r.Log)

	current, err := r.Store.Load(r.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load session %q: %w", r.Key, err)
	}
	if current.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodPost
	}
	opts := append(rc.Options(), request.WithHeaderToken(r.SendAuthHeader))
	if r.PlainJSON {
		opts = append(opts, request.WithAPIResponse())
	}

	var (
		params request.Params
		body   any
	)
	if method == http.MethodGet {
		params = request.Params{"refresh_token": current.RefreshToken}
	} else {
		body = map[string]string{"refresh_token": current.RefreshToken}
	}

	payload, err := request.As[refreshPayload](rc.Client.Request(ctx, method, r.URL, params, body, opts...))
	if err != nil {
		return fmt.Errorf("refresh attempt %d: %w", rc.Attempt, err)
	}

	next := payload.tokens(current, time.Now())
	if next.AccessToken == "" {
		return fmt.Errorf("refresh attempt %d: response carried no access token", rc.Attempt)
	}
	if err := r.Store.Save(r.Key, next); err != nil {
		return fmt.Errorf("save session %q: %w", r.Key, err)
	}
	log.InfoObj("credentials refreshed", "credentials", map[string]any{
		"key":     r.Key,
		"attempt": rc.Attempt,
	})
	return nil
}

func (p refreshPayload) tokens(current Tokens, now time.Time) Tokens {
	next := Tokens{
		AccessToken:  firstNonEmpty(p.AccessToken, p.Token),
		RefreshToken: firstNonEmpty(p.RefreshToken, current.RefreshToken),
		TokenType:    firstNonEmpty(p.TokenType, current.TokenType),
	}
	if p.ExpiresIn > 0 {
		next.Expiry = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	} else if exp, ok := AccessExpiry(next.AccessToken); ok {
		next.Expiry = exp
	}
	return next
}

// OAuth2Refresher renews tokens with the OAuth2 refresh_token grant.
type OAuth2Refresher struct {
	Config     *oauth2.Config
	Store      Store
	Key        string
	HTTPClient *http.Client
	Log        Logger
}

// Refresh implements request.Refresher.
func (r *OAuth2Refresher) Refresh(ctx context.Context, rc request.RefreshContext) error {
	if r.Config == nil {
		return fmt.Errorf("oauth2 refresher requires a config")
	}
	current, err := r.Store.Load(r.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load session %q: %w", r.Key, err)
	}
	if current.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}
	// Without an access token the source always hits the token endpoint.
	src := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("oauth2 refresh attempt %d: %w", rc.Attempt, err)
	}

	next := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: firstNonEmpty(tok.RefreshToken, current.RefreshToken),
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if err := r.Store.Save(r.Key, next); err != nil {
		return fmt.Errorf("save session %q: %w", r.Key, err)
	}
	ensureLogger(r.Log).InfoObj("oauth2 credentials refreshed", "credentials", map[string]any{
		"key":     r.Key,
		"attempt": rc.Attempt,
		"expiry":  tok.Expiry.UTC(),
	})
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
