package profiles

import (
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/credentials"
	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
	"github.com/samvad-hq/samvad-request/pkg/request"
	"golang.org/x/oauth2"
)

// Deps are collaborators shared by every client built from profiles.
type Deps struct {
	Logger         request.Logger
	Toaster        request.Toaster
	Observer       refresh.Observer
	HintTTL        time.Duration
	AttemptTimeout time.Duration
	// Transport overrides the resty transport, mainly for tests.
	Transport httpclient.Transport
}

// Bundle is a built client together with the resources it owns.
type Bundle struct {
	Profile Profile
	Client  *request.Client
	Store   credentials.Store
}

// Close releases the credential store.
func (b *Bundle) Close() error {
	if b == nil || b.Store == nil {
		return nil
	}
	return b.Store.Close()
}

// RefresherBuilder creates the refresher for a profile refresh type.
type RefresherBuilder func(p Profile, store credentials.Store, log request.Logger) (request.Refresher, error)

var refresherBuilders = map[string]RefresherBuilder{
	RefreshTypeNone: func(Profile, credentials.Store, request.Logger) (request.Refresher, error) {
		return nil, nil
	},
	RefreshTypeEndpoint: func(p Profile, store credentials.Store, log request.Logger) (request.Refresher, error) {
		return &credentials.EndpointRefresher{
			Store:          store,
			Key:            p.Credentials.Key,
			URL:            p.Refresh.URL,
			Method:         p.Refresh.Method,
			SendAuthHeader: p.Refresh.SendAuthHeader,
			PlainJSON:      p.Refresh.PlainJSON,
			Log:            log,
		}, nil
	},
	RefreshTypeOAuth2: func(p Profile, store credentials.Store, log request.Logger) (request.Refresher, error) {
		return &credentials.OAuth2Refresher{
			Config: &oauth2.Config{
				ClientID:     p.Refresh.ClientID,
				ClientSecret: p.Refresh.ClientSecret,
				Endpoint:     oauth2.Endpoint{TokenURL: p.Refresh.TokenURL},
				Scopes:       p.Refresh.Scopes,
			},
			Store: store,
			Key:   p.Credentials.Key,
			Log:   log,
		}, nil
	},
}

// Build constructs the request client described by p.
func Build(p Profile, deps Deps) (*Bundle, error) {
	platform, err := httpclient.PlatformByName(p.Platform)
	if err != nil {
		return nil, err
	}

	builder, ok := refresherBuilders[p.Refresh.Type]
	if !ok {
		return nil, fmt.Errorf("no refresher registered for type %q", p.Refresh.Type)
	}

	store, err := credentials.NewStore(p.Credentials.Store, p.Credentials.Path, credentials.Options{
		SessionTTL: time.Duration(p.Credentials.SessionTTLHours) * time.Hour,
		Service:    p.Credentials.Service,
	})
	if err != nil {
		return nil, fmt.Errorf("profile %q credentials: %w", p.ID, err)
	}

	refresher, err := builder(p, store, deps.Logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("profile %q refresher: %w", p.ID, err)
	}

	transport := deps.Transport
	if transport == nil {
		transport = httpclient.NewRestyTransport(httpclient.Options{
			BaseURL:  p.BaseURL,
			Timeout:  p.Timeout(),
			Platform: platform,
			Headers:  Headers(p),
		})
	}

	defaults := request.Options{
		NeedHeaderToken:        p.NeedHeaderToken,
		EnableRefreshToken:     p.EnableRefreshToken,
		RefreshTokenRetryCount: p.RefreshTokenRetryCount,
		Loading:                request.Loading{Enabled: p.Loading},
		Message: request.Message{
			Success: request.Notice{Enabled: p.Message},
			Error:   request.Notice{Enabled: p.Message},
		},
	}

	refreshOpts := []refresh.Option{
		refresh.WithHintTTL(deps.HintTTL),
		refresh.WithAttemptTimeout(deps.AttemptTimeout),
		refresh.WithRetryDelay(p.RefreshRetryDelay()),
	}
	if deps.Observer != nil {
		refreshOpts = append(refreshOpts, refresh.WithObserver(deps.Observer))
	}

	cfg := request.Config{
		Transport:      transport,
		Defaults:       defaults,
		HeaderInjector: credentials.NewHeaderInjector(store, p.Credentials.Key, deps.Logger),
		Toaster:        deps.Toaster,
		Logger:         deps.Logger,
		Refresh:        refreshOpts,
	}
	if refresher != nil {
		cfg.Refresher = refresher
	}

	client, err := request.New(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Bundle{Profile: p, Client: client, Store: store}, nil
}
