package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrNotTracked       = errors.New("repository not tracked")
	ErrRoastNotFound    = errors.New("roast not found")
	ErrAlreadyProcessed = errors.New("roast already processed")
	ErrRepoNotFound     = errors.New("repository not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNoCredential     = errors.New("no credential stored")
	ErrUnauthorized     = errors.New("unauthorized")
)
