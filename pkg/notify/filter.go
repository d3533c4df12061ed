package notify

import (
	"context"
	"io"
)

// kindFilter restricts a sink to a subset of event kinds.
type kindFilter struct {
	Publisher
	kinds map[string]struct{}
}

func newKindFilter(pub Publisher, kinds []string) *kindFilter {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &kindFilter{Publisher: pub, kinds: set}
}

// Accepts reports whether events of kind reach the wrapped sink.
func (f *kindFilter) Accepts(kind string) bool {
	_, ok := f.kinds[kind]
	return ok
}

func (f *kindFilter) Publish(ctx context.Context, evt Event) error {
	if !f.Accepts(evt.Kind) {
		return nil
	}
	return f.Publisher.Publish(ctx, evt)
}

func (f *kindFilter) Close() error {
	if c, ok := f.Publisher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
