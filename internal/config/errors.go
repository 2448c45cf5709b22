package config

import "errors"

// Sentinel error kinds for this package; match with errors.Is.
var (
	// ErrInvalidConfig marks a configuration that loaded but violates an invariant.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a source (.env, file, env) that could not be read or decoded.
	ErrLoadConfig = errors.New("load config failed")
)
