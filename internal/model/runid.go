package model

import "github.com/google/uuid"

// NewRunID generates the run_id every probe-family entry point stamps onto
// its start/update/done events: a freshly generated UUID string.
func NewRunID() string {
	return uuid.NewString()
}
