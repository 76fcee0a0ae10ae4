package config

import (
	"errors"
	"fmt"

	"github.com/atlanticdynamic/luagate/internal/config/errz"
)

var (
	validLevels  = map[string]bool{"": true, "trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"": true, "text": true, "json": true}
)

// Validate checks the configuration and fills in defaults. Every problem is
// reported, joined into one error.
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = VersionLatest
	}

	switch c.Version {
	case VersionLatest:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigVer, c.Version)
	}

	return errors.Join(c.Logging.Validate(), c.JobSubmit.Validate())
}

// Validate checks the logging level and format names.
func (lc *LoggingConfig) Validate() error {
	var errs []error
	if !validLevels[lc.Level] {
		errs = append(errs, fmt.Errorf("%w: logging.level %q", errz.ErrInvalidValue, lc.Level))
	}
	if !validFormats[lc.Format] {
		errs = append(errs, fmt.Errorf("%w: logging.format %q", errz.ErrInvalidValue, lc.Format))
	}
	return errors.Join(errs...)
}

// Validate checks the script path, reload interval and partitions.
func (jc *JobSubmitConfig) Validate() error {
	var errs []error
	if jc.Script == "" {
		errs = append(errs, fmt.Errorf("%w: job_submit.script", errz.ErrMissingRequiredField))
	}

	switch {
	case jc.ReloadInterval < 0:
		errs = append(errs, fmt.Errorf(
			"%w: job_submit.reload_interval %s is negative", errz.ErrInvalidValue, jc.ReloadInterval))
	case jc.ReloadInterval == 0:
		jc.ReloadInterval = DefaultReloadInterval
	}

	seen := make(map[string]bool, len(jc.Partitions))
	defaults := 0
	for i, p := range jc.Partitions {
		if p == nil || p.Name == "" {
			errs = append(errs, fmt.Errorf("%w: job_submit.partitions[%d]", errz.ErrEmptyName, i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%w: partition %s", errz.ErrDuplicateName, p.Name))
		}
		seen[p.Name] = true
		if p.Default {
			defaults++
		}
		if p.MaxTime != nil && p.DefaultTime != nil && *p.DefaultTime > *p.MaxTime {
			errs = append(errs, fmt.Errorf(
				"%w: partition %s default_time %d exceeds max_time %d",
				errz.ErrInvalidValue, p.Name, *p.DefaultTime, *p.MaxTime,
			))
		}
	}
	if defaults > 1 {
		errs = append(errs, fmt.Errorf("%w: %d partitions marked default", errz.ErrInvalidValue, defaults))
	}
	return errors.Join(errs...)
}
