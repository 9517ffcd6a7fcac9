package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/deviceauth"
	echoapi "go.pilab.hu/deviceauth/api/echo"
	"go.pilab.hu/deviceauth/cache"
	"go.pilab.hu/deviceauth/client"
	"go.pilab.hu/deviceauth/internal/auth"
	"go.pilab.hu/deviceauth/internal/server"
	"go.pilab.hu/deviceauth/log"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))

	err := root.Execute()

	return out.String(), err
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hasher := auth.NewBcryptSecretHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("tv-secret")
	require.NoError(t, err)

	registry := client.NewMemoryStore(&client.Client{ID: "device-app-1", SecretHash: hash, AllowedScopes: []string{"read"}})

	store := cache.NewMemoryDeviceCodeStore()
	t.Cleanup(store.Stop)

	issuer := deviceauth.NewIssuer(store)
	svc := deviceauth.NewDeviceAuthorizationService(
		deviceauth.NewRequestValidator(registry, nil), issuer, deviceauth.NewResponseBuilder(issuer), nil)

	srv := httptest.NewServer(server.NewRouter(server.Options{
		API:   echoapi.NewDeviceAuthorizationAPI(svc, nil),
		Authn: []echo.MiddlewareFunc{echoapi.ClientBasicAuth(registry, hasher, log.NewNopLogger())},
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestHashSecret(t *testing.T) {
	out, err := run(t, "", "hash-secret", "--cost", "4", "tv-secret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("tv-secret")))

	out, err = run(t, "from-stdin\n", "hash-secret", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = run(t, "\n", "hash-secret")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "", "authorize", "--server", srv.URL, "--client-id", "device-app-1", "--client-secret", "tv-secret", "--scope", "read", "--json")
	require.NoError(t, err)

	var resp deviceauth.DeviceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.UserCode)
	assert.Equal(t, srv.URL+"/oauth/user_verify", resp.VerificationURI)
	assert.Equal(t, 600, resp.ExpiresIn)

	out, err = run(t, "", "authorize", "--server", srv.URL, "--client-id", "device-app-1", "--client-secret", "tv-secret")
	require.NoError(t, err)
	assert.Contains(t, out, "enter the code")
}

func TestAuthorize_ServerError(t *testing.T) {
	srv := newTestServer(t)

	_, err := run(t, "", "authorize", "--server", srv.URL, "--client-id", "device-app-1", "--client-secret", "tv-secret", "--scope", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_scope")

	_, err = run(t, "", "authorize", "--server", srv.URL, "--client-id", "device-app-1", "--client-secret", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}
