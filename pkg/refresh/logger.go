package refresh

// Logger defines the logging surface the coordinator relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// Observer receives coordinator events, typically for metrics.
type Observer interface {
	RefreshStarted()
	RefreshAttempt(attempt int, err error)
	RefreshSettled(status Status, elapsedSeconds float64)
	RequestQueued(depth int)
	QueueDrained(size int)
	Replayed(fastPath bool)
}

type noopObserver struct{}

func (noopObserver) RefreshStarted()                {}
func (noopObserver) RefreshAttempt(int, error)      {}
func (noopObserver) RefreshSettled(Status, float64) {}
func (noopObserver) RequestQueued(int)              {}
func (noopObserver) QueueDrained(int)               {}
func (noopObserver) Replayed(bool)                  {}

// Observers combines several observers into one.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return noopObserver{}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) RefreshStarted() {
	for _, o := range m {
		o.RefreshStarted()
	}
}

func (m multiObserver) RefreshAttempt(attempt int, err error) {
	for _, o := range m {
		o.RefreshAttempt(attempt, err)
	}
}

func (m multiObserver) RefreshSettled(status Status, elapsedSeconds float64) {
	for _, o := range m {
		o.RefreshSettled(status, elapsedSeconds)
	}
}

func (m multiObserver) RequestQueued(depth int) {
	for _, o := range m {
		o.RequestQueued(depth)
	}
}

func (m multiObserver) QueueDrained(size int) {
	for _, o := range m {
		o.QueueDrained(size)
	}
}

func (m multiObserver) Replayed(fastPath bool) {
	for _, o := range m {
		o.Replayed(fastPath)
	}
}
