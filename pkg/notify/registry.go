package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Builder constructs a sink from its normalized, validated config.
type Builder func(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error)

// Registry maps sink types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry knows every sink type this package ships.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeLog, newLogSink)
	r.Register(TypeHTTP, newWebhookSink)
	r.Register(TypeSQS, newSQSSink)
	r.Register(TypeSNS, newSNSSink)
	r.Register(TypePubSub, newPubSubSink)
	return r
}

// Register binds typ to builder, replacing any earlier binding.
func (r *Registry) Register(typ string, builder Builder) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// Build validates cfg and constructs its sink. A sink declaring Kinds only
// receives events of those kinds.
func (r *Registry) Build(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	cfg = cfg.normalized()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	builder, ok := r.builders[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("publisher %q: no sink registered for type %q", cfg.ID, cfg.Type)
	}

	pub, err := builder(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build %s sink %q: %w", cfg.Type, cfg.ID, err)
	}
	if len(cfg.Kinds) > 0 {
		pub = newKindFilter(pub, cfg.Kinds)
	}
	return pub, nil
}

// BuildAll builds cfgs in order. On failure the sinks already built are
// closed before the error is returned.
func (r *Registry) BuildAll(ctx context.Context, cfgs []SinkConfig, log Logger) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := r.Build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}
