package config

import "errors"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnsupportedFormat  = errors.New("unsupported config file format")
	ErrInvalidValue       = errors.New("invalid config value")
)
