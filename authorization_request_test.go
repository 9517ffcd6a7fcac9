package deviceauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScope(t *testing.T) {
	assert.Equal(t, []string{"read", "write"}, ParseScope("write  read read "))
	assert.Empty(t, ParseScope(""))
	assert.Equal(t, "read write", FormatScope(ParseScope("write read")))
}

func TestAuthorizationRequest_IsImmutable(t *testing.T) {
	params := map[string]string{"scope": "read"}
	req := NewAuthorizationRequest("tv-app", params)

	params["scope"] = "admin"
	req.RequestParameters()["scope"] = "admin"
	req.Parameters()[ParamClientID] = "other"
	req.Scope()[0] = "admin"

	assert.Equal(t, []string{"read"}, req.Scope())
	assert.Equal(t, "read", req.RequestParameters()["scope"])
	assert.Equal(t, "tv-app", req.Parameters()[ParamClientID])
}

func TestAuthorizationRequest_WithScopeKeepsClientParameters(t *testing.T) {
	req := NewAuthorizationRequest("tv-app", nil).withScope([]string{"write", "read"})

	assert.Equal(t, []string{"read", "write"}, req.Scope())
	assert.Equal(t, "read write", req.Parameters()[ParamScope])
	assert.Empty(t, req.RequestParameters())
	assert.Empty(t, req.RequestedScope())
}

func TestDeviceCodeRecord_DataRoundTrip(t *testing.T) {
	rec := &DeviceCodeRecord{
		ID:         "id-1",
		DeviceCode: "dev",
		UserCode:   "BCDF-GHJK",
		Request:    NewAuthorizationRequest("tv-app", map[string]string{"scope": "read"}).withScope([]string{"read"}),
		Status:     DeviceCodeStatusPending,
	}

	got := rec.Data().Record()
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Request.Parameters(), got.Request.Parameters())
	assert.Equal(t, rec.Request.RequestParameters(), got.Request.RequestParameters())
	assert.Equal(t, "tv-app", got.Request.ClientID())
}
