package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atlanticdynamic/luagate/internal/interpolation"
	"github.com/pelletier/go-toml/v2"
)

// NewConfig loads configuration from a TOML file
func NewConfig(filePath string) (*Config, error) {
	ext := filepath.Ext(filePath)
	if ext != ".toml" {
		return nil, fmt.Errorf(
			"%w: unsupported config format: %s, only .toml is supported",
			ErrFailedToLoadConfig, ext,
		)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromReader loads configuration from an io.Reader providing TOML data
func NewConfigFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrFailedToLoadConfig)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromBytes loads configuration from TOML bytes
func NewConfigFromBytes(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty config", ErrFailedToLoadConfig)
	}

	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrFailedToLoadConfig, strict.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}

	if err := interpolation.InterpolateStruct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}
