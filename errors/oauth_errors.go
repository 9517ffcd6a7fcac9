package errors

import "fmt"

// OAuth2Error represents a standardized OAuth 2.0 error
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest = "invalid_request"
	InvalidScope   = "invalid_scope"
	InvalidClient  = "invalid_client"
	ServerError    = "server_error"

	// Codes used outside RFC 6749 by the device authorization endpoint.
	Unauthorized     = "unauthorized"
	MethodNotAllowed = "method_not_allowed"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewUnauthorized(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        Unauthorized,
		Description: description,
	}
}

func NewMethodNotAllowed(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        MethodNotAllowed,
		Description: description,
	}
}
