package config

import "errors"

var (
	// ErrInvalidValue indicates an environment variable or file value that
	// could not be parsed.
	ErrInvalidValue = errors.New("config: invalid value")

	// ErrInvalidConfig indicates a configuration that parsed but is unusable.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("config: missing environment variable")
)
