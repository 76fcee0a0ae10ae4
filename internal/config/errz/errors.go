// Package errz provides shared error definitions for the config package.
package errz

import "errors"

// Top-level error categories
var (
	ErrFailedToLoadConfig     = errors.New("failed to load config")
	ErrFailedToValidateConfig = errors.New("failed to validate config")
	ErrUnsupportedConfigVer   = errors.New("unsupported config version")
)

// Validation specific errors
var (
	ErrDuplicateName        = errors.New("duplicate name")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidValue         = errors.New("invalid value")
	ErrMissingRequiredField = errors.New("missing required field")
)
