package notify

import "time"

// Event kinds.
const (
	KindLoading     = "loading"
	KindLoadingDone = "loading_done"
	KindSuccess     = "success"
	KindError       = "error"
	KindRefresh     = "refresh"
)

var knownKinds = map[string]struct{}{
	KindLoading:     {},
	KindLoadingDone: {},
	KindSuccess:     {},
	KindError:       {},
	KindRefresh:     {},
}

// Attribute names attached to every delivered event next to its JSON body.
const (
	AttrKind   = "kind"
	AttrSource = "source"
	AttrStatus = "status"
)

// Event is a client notification: a loading indicator, a toast, or the
// outcome of a credential refresh.
type Event struct {
	Kind   string    `json:"kind"`
	Source string    `json:"source"`
	Title  string    `json:"title,omitempty"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent constructs an Event for the given source.
func NewEvent(kind, source, title string) Event {
	return Event{
		Kind:   kind,
		Source: source,
		Title:  title,
		At:     time.Now().UTC(),
	}
}

// Attributes returns the routing metadata of e. Empty values are left out;
// SQS and SNS reject empty attribute strings.
func (e Event) Attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for name, v := range map[string]string{AttrKind: e.Kind, AttrSource: e.Source, AttrStatus: e.Status} {
		if v != "" {
			attrs[name] = v
		}
	}
	return attrs
}
