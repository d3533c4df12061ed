package credentials

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no tokens are stored under a key.
var ErrNotFound = errors.New("credentials not found")

// Store persists session tokens by key.
type Store interface {
	Close() error
	Load(key string) (Tokens, error)
	Save(key string, t Tokens) error
	Delete(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	// SessionTTL drops sessions not saved for this long.
	SessionTTL      time.Duration
	CleanupInterval time.Duration
	// Service is the keyring service name.
	Service string
}

const (
	defaultSessionTTL      = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultKeyringService  = "samvad-request"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "memory":
		return newMemoryStore(), nil
	case "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	case "keyring":
		return newKeyringStore(opts.Service), nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if strings.TrimSpace(opts.Service) == "" {
		opts.Service = defaultKeyringService
	}
	return opts
}

type memoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Tokens
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tokens: make(map[string]Tokens)}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Load(key string) (Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[key]
	if !ok {
		return Tokens{}, ErrNotFound
	}
	return t, nil
}

func (m *memoryStore) Save(key string, t Tokens) error {
	m.mu.Lock()
	m.tokens[key] = t
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.tokens, key)
	m.mu.Unlock()
	return nil
}

type noopStore struct{}

func (noopStore) Close() error                { return nil }
func (noopStore) Load(string) (Tokens, error) { return Tokens{}, ErrNotFound }
func (noopStore) Save(string, Tokens) error   { return nil }
func (noopStore) Delete(string) error         { return nil }
