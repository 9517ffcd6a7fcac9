package deviceauth

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/deviceauth/client"
	"go.pilab.hu/deviceauth/internal/audit"
)

const testRequestURL = "https://auth.example.com/oauth/device_authorize"

func newTestService(store DeviceCodeStore, clients ...*client.Client) *DeviceAuthorizationService {
	issuer := NewIssuer(store)

	return NewDeviceAuthorizationService(
		NewRequestValidator(client.NewMemoryStore(clients...), nil),
		issuer,
		NewResponseBuilder(issuer),
		nil,
	)
}

func TestAuthorize_HappyPath(t *testing.T) {
	store := newMapStore()
	svc := newTestService(store, &client.Client{ID: "device-app-1", AllowedScopes: []string{"read", "write"}})

	resp, err := svc.Authorize(context.Background(),
		map[string]string{"client_id": "device-app-1", "scope": "read"},
		NewClientPrincipal("device-app-1"),
		RequestContext{RequestURL: testRequestURL})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.DeviceCode)
	assert.NotEmpty(t, resp.UserCode)
	assert.Equal(t, 2, resp.Interval)
	assert.Equal(t, 600, resp.ExpiresIn)
	assert.Equal(t, "https://auth.example.com/oauth/user_verify", resp.VerificationURI)

	record, err := store.GetByDeviceCode(context.Background(), resp.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, resp.UserCode, record.UserCode)
	assert.Equal(t, []string{"read"}, record.Request.Scope())
}

func TestAuthorize_ClientOverrides(t *testing.T) {
	svc := newTestService(newMapStore(), &client.Client{
		ID:            "device-app-1",
		AllowedScopes: []string{"read", "write"},
		AdditionalInformation: map[string]any{
			client.InfoDeviceVerificationURI: "https://example.com/activate",
			client.InfoDeviceInterval:        5,
		},
	})

	resp, err := svc.Authorize(context.Background(), map[string]string{"scope": "read"},
		NewClientPrincipal("device-app-1"), RequestContext{RequestURL: testRequestURL})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/activate", resp.VerificationURI)
	assert.Equal(t, 5, resp.Interval)
}

func TestAuthorize_UnknownClientCreatesNoRecord(t *testing.T) {
	store := newMapStore()
	svc := newTestService(store)

	_, err := svc.Authorize(context.Background(), map[string]string{"client_id": "ghost"},
		NewClientPrincipal("ghost"), RequestContext{RequestURL: testRequestURL})
	assert.ErrorIs(t, err, ErrUnknownClient)
	assert.Zero(t, store.Len())
}

func TestAuthorize_ScopeOverreachCreatesNoRecord(t *testing.T) {
	store := newMapStore()
	svc := newTestService(store, &client.Client{ID: "device-app-1", AllowedScopes: []string{"read"}})

	_, err := svc.Authorize(context.Background(), map[string]string{"scope": "read write"},
		NewClientPrincipal("device-app-1"), RequestContext{RequestURL: testRequestURL})
	assert.ErrorIs(t, err, ErrScopeNotAllowed)
	assert.Zero(t, store.Len())
}

func TestAuthorize_ExhaustedIsServerFault(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.InsertIfAbsent(context.Background(), &DeviceCodeRecord{DeviceCode: "d", UserCode: "u"}))

	issuer := NewIssuer(store, WithCodeGenerator(&sequenceGenerator{deviceCodes: []string{"d"}, userCodes: []string{"u"}}))
	svc := NewDeviceAuthorizationService(
		NewRequestValidator(client.NewMemoryStore(&client.Client{ID: "device-app-1", AllowedScopes: []string{"read"}}), nil),
		issuer,
		NewResponseBuilder(issuer),
		nil,
	)

	_, err := svc.Authorize(context.Background(), nil, NewClientPrincipal("device-app-1"), RequestContext{RequestURL: testRequestURL})
	require.ErrorIs(t, err, ErrCodeGenerationExhausted)
	assert.False(t, IsClientError(err))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "client_mismatch", failureReason(ErrClientMismatch))
	assert.Equal(t, "unknown", failureReason(context.DeadlineExceeded))
}

func TestAuthorize_WritesAuditTrail(t *testing.T) {
	var buf bytes.Buffer

	audit.SetOutput(&buf)
	t.Cleanup(func() { audit.SetOutput(io.Discard) })

	svc := newTestService(newMapStore(), &client.Client{ID: "device-app-1", AllowedScopes: []string{"read"}})

	resp, err := svc.Authorize(context.Background(),
		map[string]string{"scope": "read"},
		NewClientPrincipal("device-app-1"),
		RequestContext{RequestURL: testRequestURL})
	require.NoError(t, err)

	_, err = svc.Authorize(context.Background(),
		map[string]string{"scope": "admin"},
		NewClientPrincipal("device-app-1"),
		RequestContext{RequestURL: testRequestURL})
	require.ErrorIs(t, err, ErrScopeNotAllowed)

	out := buf.String()
	assert.Contains(t, out, audit.ActionDeviceCodeIssued)
	assert.Contains(t, out, resp.UserCode)
	assert.Contains(t, out, audit.ActionDeviceCodeRejected)
	assert.Contains(t, out, `"reason":"scope_not_allowed"`)
	assert.NotContains(t, out, resp.DeviceCode)
}
