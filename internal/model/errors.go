package model

import "errors"

// Error kinds from the propagation policy: setup/config failures surface as
// typed sentinels so callers can distinguish "no start event was emitted"
// from "the run started and then failed".
var (
	ErrConfig      = errors.New("invalid configuration")
	ErrSetup       = errors.New("probe setup failed")
	ErrCancelled   = errors.New("cancelled")
	ErrUnsupported = errors.New("unsupported on this platform")
)
