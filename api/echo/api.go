//nolint:varnamelen
package echo

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/deviceauth"
	"go.pilab.hu/deviceauth/errors"
	"go.pilab.hu/deviceauth/log"
)

// DeviceAuthorizationPath is the device authorization endpoint.
const DeviceAuthorizationPath = "/oauth/device_authorize"

// DeviceAuthorizationAPI exposes the device authorization endpoint over echo.
type DeviceAuthorizationAPI struct {
	service *deviceauth.DeviceAuthorizationService
	logger  log.Logger
}

// NewDeviceAuthorizationAPI initializes the API.
func NewDeviceAuthorizationAPI(service *deviceauth.DeviceAuthorizationService, logger log.Logger) *DeviceAuthorizationAPI {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &DeviceAuthorizationAPI{service: service, logger: logger}
}

// RegisterRoutes registers the endpoint. Authentication middleware such as
// ClientBasicAuth is applied to the POST route only.
func (api *DeviceAuthorizationAPI) RegisterRoutes(e *echo.Echo, authn ...echo.MiddlewareFunc) {
	e.POST(DeviceAuthorizationPath, api.DeviceAuthorizeHandler, authn...)
	e.Match([]string{
		http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete,
	}, DeviceAuthorizationPath, api.MethodNotAllowedHandler)
}

// DeviceAuthorizeHandler handles RFC 8628 device authorization requests.
// client_id and scope are read from the form body or the query string.
func (api *DeviceAuthorizationAPI) DeviceAuthorizeHandler(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("Malformed request parameters"))
	}

	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	resp, err := api.service.Authorize(
		c.Request().Context(),
		params,
		PrincipalFrom(c),
		deviceauth.RequestContext{RequestURL: requestURL(c)},
	)
	if err != nil {
		return api.writeError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")

	return c.JSON(http.StatusOK, resp)
}

// MethodNotAllowedHandler rejects non-POST requests to the endpoint.
func (api *DeviceAuthorizationAPI) MethodNotAllowedHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)

	return api.writeError(c, fmt.Errorf("%w: %s", deviceauth.ErrUnsupportedMethod, c.Request().Method))
}

func (api *DeviceAuthorizationAPI) writeError(c echo.Context, err error) error {
	return writeOAuthError(c, err)
}

func requestURL(c echo.Context) string {
	r := c.Request()
	return c.Scheme() + "://" + r.Host + r.URL.Path
}
