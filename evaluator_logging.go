package observe

import "time"

// Log operations reported by a Context.
const (
	OpConnect     = "connect"
	OpDisconnect  = "disconnect"
	OpRewire      = "rewire"
	OpAttach      = "attach"
	OpFilter      = "filter"
	OpInvalidPath = "invalid-path"
	OpActivity    = "activity"
	OpNotify      = "notify"
)

// LogEvent describes one observation event for logging.
type LogEvent struct {
	Op       string
	ID       string
	Path     string
	Strategy string
	Detail   string
	Engine   string
	Expr     string
	Records  int
	Duration time.Duration
	Err      error
}

// Logger records observation events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// WithLogger attaches a logger to the Context. It also receives the
// notifier's sweep events under OpNotify.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
