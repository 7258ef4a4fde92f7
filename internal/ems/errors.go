package ems

import "errors"

// Setup and lookup errors surfaced by the Operations API.
var (
	ErrAlreadyInitialized = errors.New("ems already initialized")
	ErrNotInitialized     = errors.New("ems not initialized")
	ErrNoSuchEvent        = errors.New("no such event")
	ErrWriteFailed        = errors.New("write failed")
)
