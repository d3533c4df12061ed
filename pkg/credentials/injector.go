package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/samvad-hq/samvad-request/pkg/request"
)

// HeaderInjector adds the stored access token as an Authorization header.
type HeaderInjector struct {
	store Store
	key   string
	log   Logger
	now   func() time.Time
}

// NewHeaderInjector reads tokens for key from store on every request.
func NewHeaderInjector(store Store, key string, log Logger) *HeaderInjector {
	return &HeaderInjector{store: store, key: key, log: ensureLogger(log), now: time.Now}
}

// InjectAuthHeader implements request.HeaderInjector. A missing session yields
// no header so the server answers 401 and the refresh flow takes over.
func (h *HeaderInjector) InjectAuthHeader(_ context.Context, d *request.Descriptor) (map[string]string, error) {
	tokens, err := h.store.Load(h.key)
	if errors.Is(err, ErrNotFound) {
		h.log.DebugObj("no stored session; sending without credentials", "credentials", map[string]any{
			"key": h.key,
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tokens.Expired(h.now(), 0) {
		h.log.DebugObj("access token already expired", "credentials", map[string]any{
			"key":    h.key,
			"replay": d != nil && d.Flags.IsReplay,
		})
	}
	header := tokens.AuthorizationHeader()
	if header == "" {
		return nil, nil
	}
	return map[string]string{"Authorization": header}, nil
}
