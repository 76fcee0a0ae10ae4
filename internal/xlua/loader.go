package xlua

import (
	"fmt"
	"os"
	"time"
)

// Outcome is the result kind of a load attempt.
type Outcome int

const (
	// Failed means no new handle was built; the caller's current handle, if
	// any, remains authoritative.
	Failed Outcome = iota
	// Unchanged means the script has not been modified since the last load
	// and the caller should keep its current handle.
	Unchanged
	// Reloaded means a new, validated handle was built. The caller completes
	// any setup of its own, switches over to it, and only then retires the
	// previous handle.
	Reloaded
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "Failed"
	case Unchanged:
		return "Unchanged"
	case Reloaded:
		return "Reloaded"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is returned by LoadScript. Handle and ModTime are set only for
// Reloaded; Err only for Failed.
type Result struct {
	Outcome Outcome
	Handle  *Handle
	ModTime time.Time
	Err     error
}

// LoadScript decides whether the script at path needs a new interpreter and,
// if so, builds and validates one.
//
// When current is non-nil and the file's mtime is not after lastLoad, the
// result is Unchanged and nothing is built. Change detection is by mtime
// only: an edit that leaves the mtime as it was, for example within the
// filesystem's timestamp granularity, is reported as Unchanged.
//
// LoadScript never closes, modifies or replaces current.
func LoadScript(
	current *Handle,
	pluginID, path string,
	required []string,
	lastLoad time.Time,
	opts ...Option,
) Result {
	o := newOptions(opts)
	logger := o.logger.With("plugin", pluginID, "path", path)

	fail := func(err error) Result {
		logger.Error("Script load failed", "error", err)
		return Result{Outcome: Failed, Err: err}
	}

	st, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrFileUnreadable, err))
	}
	if st.IsDir() {
		return fail(fmt.Errorf("%w: %s is a directory", ErrFileUnreadable, path))
	}

	modTime := st.ModTime()
	if current != nil && !modTime.After(lastLoad) {
		logger.Debug("Script unchanged", "mtime", modTime, "last_load", lastLoad)
		return Result{Outcome: Unchanged}
	}

	h, err := newHandle(pluginID, path, modTime, o)
	if err != nil {
		return fail(err)
	}

	if err := ValidateContract(h.L, required); err != nil {
		if closeErr := h.Close(); closeErr != nil {
			logger.Warn("Failed to close rejected handle", "error", closeErr)
		}
		return fail(err)
	}

	logger.Debug("Script validated", "mtime", modTime, "handle", h.ID().String())
	return Result{Outcome: Reloaded, Handle: h, ModTime: modTime}
}
