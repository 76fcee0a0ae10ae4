package jobsubmit

import (
	"log/slog"

	"github.com/atlanticdynamic/luagate/internal/xlua"
)

type options struct {
	logger   *slog.Logger
	xluaOpts []xlua.Option
}

// Option configures a Plugin.
type Option func(*options)

// WithLogger sets the logger for the plugin and the engine handles it loads.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogHandler sets the log handler for the plugin and its engine handles.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *options) {
		if handler != nil {
			o.logger = slog.New(handler)
		}
	}
}

// WithLibrary installs an additional site library into every handle.
func WithLibrary(lib xlua.Library) Option {
	return func(o *options) {
		o.xluaOpts = append(o.xluaOpts, xlua.WithLibrary(lib))
	}
}
