package xlua

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// Script describes one plugin's script: where it lives, who loads it, and
// which entry points it must define. Only the last load time changes after
// construction.
type Script struct {
	pluginID string
	path     string
	required []string
	opts     []Option

	mu       sync.Mutex
	loadTime time.Time
}

// NewScript creates a Script descriptor. required is copied.
func NewScript(pluginID, path string, required []string, opts ...Option) (*Script, error) {
	if pluginID == "" {
		return nil, errors.New("plugin id is required")
	}
	if path == "" {
		return nil, errors.New("script path is required")
	}
	return &Script{
		pluginID: pluginID,
		path:     path,
		required: slices.Clone(required),
		opts:     slices.Clone(opts),
	}, nil
}

// PluginID returns the plugin identifier.
func (s *Script) PluginID() string { return s.pluginID }

// Path returns the script path.
func (s *Script) Path() string { return s.path }

// Required returns a copy of the required entry point names.
func (s *Script) Required() []string { return slices.Clone(s.required) }

// LoadTime returns the mtime of the last successful load, or the zero time.
func (s *Script) LoadTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTime
}

// Resolve runs LoadScript against the stored load time and advances it on
// Reloaded. See LoadScript for the ownership rules.
func (s *Script) Resolve(current *Handle) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := LoadScript(current, s.pluginID, s.path, s.required, s.loadTime, s.opts...)
	if res.Outcome == Reloaded {
		s.loadTime = res.ModTime
	}
	return res
}
