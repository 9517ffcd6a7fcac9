package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go.pilab.hu/deviceauth"
	echoapi "go.pilab.hu/deviceauth/api/echo"
	oautherrors "go.pilab.hu/deviceauth/errors"
)

func newAuthorizeCmd() *cobra.Command {
	var (
		server       string
		clientID     string
		clientSecret string
		scope        string
		sendClientID bool
		asJSON       bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Request a device code",
		Long:  "Sends a device authorization request with HTTP Basic client credentials and prints the user code and verification URI.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			form := url.Values{}
			if scope != "" {
				form.Set(deviceauth.ParamScope, scope)
			}

			if sendClientID {
				form.Set(deviceauth.ParamClientID, clientID)
			}

			endpoint := strings.TrimRight(server, "/") + echoapi.DeviceAuthorizationPath

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}

			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.SetBasicAuth(clientID, clientSecret)

			appLogger.Debug(cmd.Context(), "Sending device authorization request", map[string]interface{}{
				"endpoint":  endpoint,
				"client_id": clientID,
			})

			resp, err := (&http.Client{Timeout: timeout}).Do(req)
			if err != nil {
				return fmt.Errorf("device authorization request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				var oauthErr oautherrors.OAuth2Error
				if err := json.NewDecoder(resp.Body).Decode(&oauthErr); err != nil || oauthErr.Code == "" {
					return fmt.Errorf("server returned %s", resp.Status)
				}

				return fmt.Errorf("server returned %s: %w", resp.Status, &oauthErr)
			}

			var out deviceauth.DeviceResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("failed to decode device authorization response: %w", err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")

				return enc.Encode(out)
			}

			fmt.Fprintf(w, "Visit %s and enter the code: %s\n", out.VerificationURI, out.UserCode)
			fmt.Fprintf(w, "Device code: %s\n", out.DeviceCode)
			fmt.Fprintf(w, "Expires in %ds, poll every %ds\n", out.ExpiresIn, out.Interval)

			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "device authorization server base URL")
	cmd.Flags().StringVar(&clientID, "client-id", "", "client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "client secret")
	cmd.Flags().StringVar(&scope, "scope", "", "space-delimited scope")
	cmd.Flags().BoolVar(&sendClientID, "send-client-id", true, "also send client_id as a form parameter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	_ = cmd.MarkFlagRequired("client-id")

	return cmd
}
