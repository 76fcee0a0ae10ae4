package xlua

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"
)

// Option configures how new handles are built.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	libraries []Library
	setups    []func(L *lua.LState) error
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for handle lifecycle events and script output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogHandler sets a log handler for handle lifecycle events and script output.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *options) {
		if handler != nil {
			o.logger = slog.New(handler)
		}
	}
}

// WithLibrary installs an additional table of host functions into each new
// handle, after the built-in host table.
func WithLibrary(lib Library) Option {
	return func(o *options) {
		o.libraries = append(o.libraries, lib)
	}
}

// WithSetup runs fn on each new interpreter after all host tables are
// installed and before any script code runs. An error aborts construction.
func WithSetup(fn func(L *lua.LState) error) Option {
	return func(o *options) {
		if fn != nil {
			o.setups = append(o.setups, fn)
		}
	}
}
