// Package config holds the luagate configuration: logging, and the job_submit
// plugin's script location, reload cadence and default partitions.
package config

import (
	"time"

	"github.com/atlanticdynamic/luagate/internal/config/errz"
	"github.com/atlanticdynamic/luagate/internal/job"
)

const (
	VersionLatest = "v1"
)

// Re-export errz sentinels so callers only need this package.
var (
	ErrFailedToLoadConfig     = errz.ErrFailedToLoadConfig
	ErrFailedToValidateConfig = errz.ErrFailedToValidateConfig
	ErrUnsupportedConfigVer   = errz.ErrUnsupportedConfigVer
)

// DefaultReloadInterval applies when reload_interval is unset.
const DefaultReloadInterval = Duration(30 * time.Second)

// Config is the root of a luagate TOML config file.
type Config struct {
	Version   string          `toml:"version"`
	Logging   LoggingConfig   `toml:"logging" env_interpolation:"yes"`
	JobSubmit JobSubmitConfig `toml:"job_submit" env_interpolation:"yes"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output" env_interpolation:"yes"`
}

// JobSubmitConfig configures the job_submit/lua plugin.
type JobSubmitConfig struct {
	Script         string           `toml:"script" env_interpolation:"yes"`
	ReloadInterval Duration         `toml:"reload_interval"`
	Partitions     []*job.Partition `toml:"partitions"`
}

// DefaultPartition returns the partition flagged default, or the first one.
func (c JobSubmitConfig) DefaultPartition() *job.Partition {
	for _, p := range c.Partitions {
		if p != nil && p.Default {
			return p
		}
	}
	if len(c.Partitions) > 0 {
		return c.Partitions[0]
	}
	return nil
}
