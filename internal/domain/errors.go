package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrNoCredit       = errors.New("no credit")
	ErrJobFinal       = errors.New("job already in a final state")
	ErrDuplicateEvent = errors.New("duplicate billing event")
)
