package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid value")

	// ErrUnsupportedFormat is returned by LoadFile for an unknown file extension.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")

	// ErrMissingEnv is returned by LoadFile when a ${VAR} reference is unset.
	ErrMissingEnv = errors.New("config: missing required environment variables")
)
