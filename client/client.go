package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientNotFound is returned by a Registry when no client has the requested id.
var ErrClientNotFound = errors.New("client not found")

// Keys of Client.AdditionalInformation read by the device authorization endpoint.
const (
	InfoDeviceVerificationURI = "device_verification_uri"
	InfoDeviceInterval        = "device_interval"
)

// GrantTypeDeviceCode is the grant type a client uses to redeem device codes.
const GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// Client represents a registered OAuth2 client application.
//
//nolint:tagliatelle
type Client struct {
	ID                    string         `bson:"client_id"                        json:"client_id"                        mapstructure:"id"`
	SecretHash            string         `bson:"client_secret_hash,omitempty"     json:"-"                                mapstructure:"secret_hash"`
	Name                  string         `bson:"client_name,omitempty"            json:"client_name,omitempty"            mapstructure:"name"`
	AllowedScopes         []string       `bson:"allowed_scopes"                   json:"allowed_scopes,omitempty"         mapstructure:"allowed_scopes"`
	AllowedGrantTypes     []string       `bson:"allowed_grant_types,omitempty"    json:"allowed_grant_types,omitempty"    mapstructure:"allowed_grant_types"`
	AdditionalInformation map[string]any `bson:"additional_information,omitempty" json:"additional_information,omitempty" mapstructure:"additional_information"`
	CreatedAt             time.Time      `bson:"created_at"                       json:"created_at,omitempty"             mapstructure:"-"`
	UpdatedAt             time.Time      `bson:"updated_at"                       json:"updated_at,omitempty"             mapstructure:"-"`
}

// Info returns an additional information value and whether it was present.
func (c *Client) Info(key string) (any, bool) {
	if c == nil || c.AdditionalInformation == nil {
		return nil, false
	}

	v, ok := c.AdditionalInformation[key]

	return v, ok && v != nil
}

// ValidateScope checks that every requested scope is registered for the client.
// The returned error lists the offending scopes.
func (c *Client) ValidateScope(requestedScopes []string) error {
	allowedScopes := make(map[string]bool, len(c.AllowedScopes))
	for _, scope := range c.AllowedScopes {
		allowedScopes[scope] = true
	}

	var denied []string

	for _, scope := range requestedScopes {
		if !allowedScopes[scope] {
			denied = append(denied, scope)
		}
	}

	if len(denied) > 0 {
		return fmt.Errorf("scope %q not allowed for client %s", denied, c.ID)
	}

	return nil
}
