package deviceauth

import (
	"maps"
	"slices"
	"strings"
)

// Request parameter names understood by the device authorization endpoint.
const (
	ParamClientID = "client_id"
	ParamScope    = "scope"
)

// AuthorizationRequest is a validated, normalized device authorization request.
// It is immutable: accessors hand out copies.
type AuthorizationRequest struct {
	clientID          string
	scope             []string
	requestParameters map[string]string
	parameters        map[string]string
}

// NewAuthorizationRequest builds a request from the parameters sent by the client.
// clientID is the resolved client id; when the client did not send one it is
// injected into Parameters but never into RequestParameters.
func NewAuthorizationRequest(clientID string, requestParameters map[string]string) *AuthorizationRequest {
	raw := maps.Clone(requestParameters)
	if raw == nil {
		raw = map[string]string{}
	}

	params := maps.Clone(raw)
	if params[ParamClientID] == "" {
		params[ParamClientID] = clientID
	}

	return &AuthorizationRequest{
		clientID:          clientID,
		scope:             ParseScope(raw[ParamScope]),
		requestParameters: raw,
		parameters:        params,
	}
}

// withScope returns a copy of r carrying scope instead of the requested one.
func (r *AuthorizationRequest) withScope(scope []string) *AuthorizationRequest {
	cp := *r
	cp.scope = normalizeScope(scope)
	cp.parameters = maps.Clone(r.parameters)
	cp.parameters[ParamScope] = FormatScope(cp.scope)

	return &cp
}

// ClientID returns the resolved client id.
func (r *AuthorizationRequest) ClientID() string { return r.clientID }

// Scope returns the sorted scope set.
func (r *AuthorizationRequest) Scope() []string { return slices.Clone(r.scope) }

// RequestedScope returns the scope the client itself asked for, ignoring
// anything injected while normalizing the request.
func (r *AuthorizationRequest) RequestedScope() []string {
	return ParseScope(r.requestParameters[ParamScope])
}

// RequestParameters returns the parameters exactly as the client sent them.
func (r *AuthorizationRequest) RequestParameters() map[string]string {
	return maps.Clone(r.requestParameters)
}

// Parameters returns the normalized parameters.
func (r *AuthorizationRequest) Parameters() map[string]string {
	return maps.Clone(r.parameters)
}

// ParseScope splits a space-delimited scope parameter into a sorted set.
func ParseScope(scope string) []string {
	return normalizeScope(strings.Fields(scope))
}

// FormatScope joins a scope set back into its wire form.
func FormatScope(scope []string) string {
	return strings.Join(scope, " ")
}

func normalizeScope(scope []string) []string {
	out := make([]string, 0, len(scope))
	for _, s := range scope {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// AuthorizationRequestData is the storable form of an AuthorizationRequest.
type AuthorizationRequestData struct {
	ClientID          string            `json:"client_id"          bson:"client_id"`
	Scope             []string          `json:"scope"              bson:"scope"`
	RequestParameters map[string]string `json:"request_parameters" bson:"request_parameters"`
	Parameters        map[string]string `json:"parameters"         bson:"parameters"`
}

// Data returns the storable form of r.
func (r *AuthorizationRequest) Data() AuthorizationRequestData {
	return AuthorizationRequestData{
		ClientID:          r.clientID,
		Scope:             r.Scope(),
		RequestParameters: r.RequestParameters(),
		Parameters:        r.Parameters(),
	}
}

// Request rebuilds the AuthorizationRequest held by d.
func (d AuthorizationRequestData) Request() *AuthorizationRequest {
	raw := maps.Clone(d.RequestParameters)
	if raw == nil {
		raw = map[string]string{}
	}

	params := maps.Clone(d.Parameters)
	if params == nil {
		params = map[string]string{}
	}

	return &AuthorizationRequest{
		clientID:          d.ClientID,
		scope:             normalizeScope(d.Scope),
		requestParameters: raw,
		parameters:        params,
	}
}
