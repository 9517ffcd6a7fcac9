package echo

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/deviceauth"
	"go.pilab.hu/deviceauth/errors"
)

// TranslateError maps a device authorization failure to its HTTP status and
// OAuth2 error body. Unrecognized errors become server_error without leaking
// their message.
func TranslateError(err error) (int, *errors.OAuth2Error) {
	switch {
	case stderrors.Is(err, deviceauth.ErrUnauthenticated):
		return http.StatusUnauthorized, errors.NewUnauthorized(deviceauth.ErrUnauthenticated.Error())
	case stderrors.Is(err, deviceauth.ErrMissingClientID),
		stderrors.Is(err, deviceauth.ErrClientMismatch),
		stderrors.Is(err, deviceauth.ErrUnknownClient):
		return http.StatusUnauthorized, errors.NewInvalidClient(err.Error())
	case stderrors.Is(err, deviceauth.ErrScopeNotAllowed):
		return http.StatusBadRequest, errors.NewInvalidScope(err.Error())
	case stderrors.Is(err, deviceauth.ErrUnsupportedMethod):
		return http.StatusMethodNotAllowed, errors.NewMethodNotAllowed(err.Error())
	case stderrors.Is(err, deviceauth.ErrCodeGenerationExhausted):
		return http.StatusInternalServerError, errors.NewServerError("Unable to issue a device code, try again later")
	default:
		return http.StatusInternalServerError, errors.NewServerError("Internal server error")
	}
}

// writeOAuthError renders err as an OAuth2 error response.
func writeOAuthError(c echo.Context, err error) error {
	status, body := TranslateError(err)
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="oauth"`)
	}

	return c.JSON(status, body)
}
