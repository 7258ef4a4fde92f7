package config

import "errors"

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrInvalidMaxProc     = errors.New("max_proc must be at least 1")
	ErrInvalidMaxThreads  = errors.New("max_threads must be at least 1")
)
