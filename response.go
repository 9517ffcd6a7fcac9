package deviceauth

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.pilab.hu/deviceauth/client"
	"go.pilab.hu/deviceauth/log"
)

const (
	// DefaultInterval is the polling interval in seconds used without a client override.
	DefaultInterval = 2
	// DefaultVerificationPath replaces the last path segment of the request URL.
	DefaultVerificationPath = "user_verify"
)

// DeviceResponse is the device authorization response.
//
//nolint:tagliatelle
type DeviceResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Interval        int    `json:"interval"`
	ExpiresIn       int    `json:"expires_in"`
}

// Map returns the response as a flat field map.
func (r DeviceResponse) Map() map[string]any {
	return map[string]any{
		"device_code":      r.DeviceCode,
		"user_code":        r.UserCode,
		"verification_uri": r.VerificationURI,
		"interval":         r.Interval,
		"expires_in":       r.ExpiresIn,
	}
}

// RequestContext carries what the builder needs from the inbound request.
type RequestContext struct {
	// RequestURL is the absolute URL the device authorization request was sent to.
	RequestURL string
}

// ResponseBuilder assembles DeviceResponse values.
type ResponseBuilder struct {
	expiresIn        func() int
	defaultInterval  int
	verificationPath string
	logger           log.Logger
}

// ResponseBuilderOption configures a ResponseBuilder.
type ResponseBuilderOption func(*ResponseBuilder)

// WithDefaultInterval overrides DefaultInterval. Non-positive values are ignored.
func WithDefaultInterval(seconds int) ResponseBuilderOption {
	return func(b *ResponseBuilder) {
		if seconds > 0 {
			b.defaultInterval = seconds
		}
	}
}

// WithVerificationPath overrides DefaultVerificationPath.
func WithVerificationPath(segment string) ResponseBuilderOption {
	return func(b *ResponseBuilder) {
		if segment = strings.Trim(segment, "/"); segment != "" {
			b.verificationPath = segment
		}
	}
}

// WithResponseLogger sets the logger used to report malformed client overrides.
func WithResponseLogger(logger log.Logger) ResponseBuilderOption {
	return func(b *ResponseBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewResponseBuilder returns a builder taking expires_in from issuer.
func NewResponseBuilder(issuer *Issuer, opts ...ResponseBuilderOption) *ResponseBuilder {
	b := &ResponseBuilder{
		expiresIn:        issuer.ExpiresIn,
		defaultInterval:  DefaultInterval,
		verificationPath: DefaultVerificationPath,
		logger:           log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build assembles the response for an issued code pair. Malformed client
// overrides fall back to the derived defaults and never fail the build.
func (b *ResponseBuilder) Build(
	ctx context.Context,
	userCode, deviceCode string,
	c *client.Client,
	rc RequestContext,
) DeviceResponse {
	verificationURI := b.derivedVerificationURI(rc.RequestURL)
	interval := b.defaultInterval

	if raw, ok := c.Info(client.InfoDeviceVerificationURI); ok {
		verificationURI = stringOr(raw, absoluteURL, verificationURI)
		if s, isString := raw.(string); !isString || !absoluteURL(s) {
			b.warnMalformed(ctx, c, client.InfoDeviceVerificationURI, raw)
		}
	}

	if raw, ok := c.Info(client.InfoDeviceInterval); ok {
		interval = positiveIntOr(raw, interval)
		if _, valid := positiveInt(raw); !valid {
			b.warnMalformed(ctx, c, client.InfoDeviceInterval, raw)
		}
	}

	return DeviceResponse{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		VerificationURI: verificationURI,
		Interval:        interval,
		ExpiresIn:       b.expiresIn(),
	}
}

func (b *ResponseBuilder) warnMalformed(ctx context.Context, c *client.Client, key string, value any) {
	b.logger.Warn(ctx, "Ignoring malformed client device override", map[string]interface{}{
		"client_id": c.ID,
		"key":       key,
		"value":     fmt.Sprint(value),
	})
}

// derivedVerificationURI replaces the last path segment of requestURL with the
// verification path. Query and fragment are dropped.
func (b *ResponseBuilder) derivedVerificationURI(requestURL string) string {
	u, err := url.Parse(requestURL)
	if err != nil {
		return "/" + b.verificationPath
	}

	p := u.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[:i]
	} else {
		p = ""
	}

	u.Path = p + "/" + b.verificationPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// stringOr returns v when it is a string accepted by valid, else def.
func stringOr(v any, valid func(string) bool, def string) string {
	s, ok := v.(string)
	if !ok || !valid(s) {
		return def
	}

	return s
}

// positiveIntOr returns v parsed as a positive integer, else def.
func positiveIntOr(v any, def int) int {
	if n, ok := positiveInt(v); ok {
		return n
	}

	return def
}

func positiveInt(v any) (int, bool) {
	var n int64

	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt32 {
			return 0, false
		}

		n = int64(t)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 32)
		if err != nil {
			return 0, false
		}

		n = parsed
	default:
		return 0, false
	}

	if n <= 0 || n > math.MaxInt32 {
		return 0, false
	}

	return int(n), true
}

func absoluteURL(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}

	u, err := url.Parse(s)

	return err == nil && u.IsAbs() && u.Host != ""
}
