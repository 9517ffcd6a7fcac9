package deviceauth

import (
	"errors"
)

// Validation and issuance failures surfaced by the device authorization pipeline.
// Callers classify them with errors.Is; anything else is an unknown failure.
var (
	ErrUnauthenticated         = errors.New("full authentication is required to request device authorization")
	ErrMissingClientID         = errors.New("a client id must be provided")
	ErrClientMismatch          = errors.New("given client id does not match authenticated client")
	ErrUnknownClient           = errors.New("no client with requested id")
	ErrScopeNotAllowed         = errors.New("scope not allowed for client")
	ErrCodeGenerationExhausted = errors.New("unable to generate a unique device code pair")
	ErrUnsupportedMethod       = errors.New("request method not supported")
)

// Store errors.
var (
	// ErrRecordNotFound is returned by DeviceCodeStore lookups for absent or expired records.
	ErrRecordNotFound = errors.New("device code record not found")
	// ErrCodeCollision is returned by InsertIfAbsent when either code already belongs to a live record.
	ErrCodeCollision = errors.New("device code or user code already in use")
)

// IsClientError reports whether err is caused by the request rather than the server.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrMissingClientID),
		errors.Is(err, ErrClientMismatch),
		errors.Is(err, ErrUnknownClient),
		errors.Is(err, ErrScopeNotAllowed),
		errors.Is(err, ErrUnsupportedMethod):
		return true
	default:
		return false
	}
}
