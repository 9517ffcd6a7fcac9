package echo

import (
	"errors"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/deviceauth"
	"go.pilab.hu/deviceauth/client"
	"go.pilab.hu/deviceauth/internal/auth"
	"go.pilab.hu/deviceauth/log"
)

const principalContextKey = "deviceauth.principal"

// ClientBasicAuth resolves the calling client from HTTP Basic credentials
// checked against the registered secret hash. Requests without valid
// credentials continue with the zero Principal and are rejected downstream.
func ClientBasicAuth(registry client.Registry, hasher auth.SecretHasher, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID, secret, ok := c.Request().BasicAuth()
			if !ok || clientID == "" {
				return next(c)
			}

			ctx := c.Request().Context()

			cli, err := registry.GetClient(ctx, clientID)
			switch {
			case errors.Is(err, client.ErrClientNotFound):
				logger.Debug(ctx, "Basic auth for unknown client", map[string]interface{}{"client_id": clientID})
				return next(c)
			case err != nil:
				logger.Error(ctx, "Failed to load client for basic auth", err, map[string]interface{}{"client_id": clientID})
				return writeOAuthError(c, err)
			}

			if cli.SecretHash == "" || hasher.Verify(cli.SecretHash, secret) != nil {
				logger.Warn(ctx, "Client secret mismatch", map[string]interface{}{"client_id": clientID})
				return next(c)
			}

			c.Set(principalContextKey, deviceauth.NewClientPrincipal(cli.ID))

			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by ClientBasicAuth, or the zero Principal.
func PrincipalFrom(c echo.Context) deviceauth.Principal {
	p, _ := c.Get(principalContextKey).(deviceauth.Principal)
	return p
}

// SetPrincipal stores p for PrincipalFrom. Alternative authenticators use it
// to hand a client-user principal to the endpoint.
func SetPrincipal(c echo.Context, p deviceauth.Principal) {
	c.Set(principalContextKey, p)
}
