package deviceauth

import (
	"context"
	"errors"
	"fmt"

	"go.pilab.hu/deviceauth/client"
)

// ScopeChecker decides whether a client may request a scope set.
type ScopeChecker interface {
	CheckScope(requested []string, c *client.Client) error
}

// ClientScopeChecker allows exactly the scopes registered on the client.
type ClientScopeChecker struct{}

// CheckScope implements ScopeChecker.
func (ClientScopeChecker) CheckScope(requested []string, c *client.Client) error {
	if err := c.ValidateScope(requested); err != nil {
		return fmt.Errorf("%w: %w", ErrScopeNotAllowed, err)
	}

	return nil
}

// RequestValidator authenticates and normalizes device authorization requests.
type RequestValidator struct {
	clients client.Registry
	scopes  ScopeChecker
}

// NewRequestValidator returns a validator resolving clients through clients.
// A nil checker falls back to ClientScopeChecker.
func NewRequestValidator(clients client.Registry, checker ScopeChecker) *RequestValidator {
	if checker == nil {
		checker = ClientScopeChecker{}
	}

	return &RequestValidator{clients: clients, scopes: checker}
}

// Validate checks params against the authenticated caller and the client
// registry. It returns the normalized request together with the client it
// belongs to. Only scopes sent by the client are checked; when none were sent
// the request takes the client's registered scopes.
func (v *RequestValidator) Validate(
	ctx context.Context,
	params map[string]string,
	caller Principal,
) (*AuthorizationRequest, *client.Client, error) {
	if !caller.Authenticated() {
		return nil, nil, ErrUnauthenticated
	}

	clientID, sent := params[ParamClientID]
	if !sent || clientID == "" {
		clientID = caller.Name()
	} else if clientID != caller.EffectiveClientID() {
		return nil, nil, ErrClientMismatch
	}

	if clientID == "" {
		return nil, nil, ErrMissingClientID
	}

	c, err := v.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
		}

		return nil, nil, fmt.Errorf("failed to load client %s: %w", clientID, err)
	}

	req := NewAuthorizationRequest(clientID, params)

	requested := req.RequestedScope()
	if len(requested) == 0 {
		if len(c.AllowedScopes) == 0 {
			return nil, nil, fmt.Errorf("%w: client %s has no registered scope", ErrScopeNotAllowed, clientID)
		}

		return req.withScope(c.AllowedScopes), c, nil
	}

	if err := v.scopes.CheckScope(requested, c); err != nil {
		if !errors.Is(err, ErrScopeNotAllowed) {
			err = fmt.Errorf("%w: %w", ErrScopeNotAllowed, err)
		}

		return nil, nil, err
	}

	return req, c, nil
}
