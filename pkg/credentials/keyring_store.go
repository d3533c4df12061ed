package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringStore keeps tokens in the OS keychain as a JSON string per key.
type keyringStore struct {
	service string
}

func newKeyringStore(service string) *keyringStore {
	return &keyringStore{service: service}
}

func (k *keyringStore) Close() error { return nil }

func (k *keyringStore) Load(key string) (Tokens, error) {
	raw, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Tokens{}, ErrNotFound
		}
		return Tokens{}, fmt.Errorf("keyring get %q: %w", key, err)
	}
	var t Tokens
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Tokens{}, fmt.Errorf("decode keyring entry %q: %w", key, err)
	}
	return t, nil
}

func (k *keyringStore) Save(key string, t Tokens) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := keyring.Set(k.service, key, string(raw)); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	return nil
}

func (k *keyringStore) Delete(key string) error {
	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %q: %w", key, err)
	}
	return nil
}
