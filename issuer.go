package deviceauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/deviceauth/internal/metrics"
)

const (
	// DefaultCodeLifetime is how long an issued device code stays live.
	DefaultCodeLifetime = 600 * time.Second
	// DefaultMaxAttempts bounds code regeneration after collisions.
	DefaultMaxAttempts = 5
)

// Issuer generates unique device code pairs and persists them.
type Issuer struct {
	store       DeviceCodeStore
	generator   CodeGenerator
	lifetime    time.Duration
	maxAttempts int
	now         func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithCodeLifetime sets the lifetime of issued codes. Non-positive values are ignored.
func WithCodeLifetime(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithMaxAttempts sets how many code pairs are tried before giving up.
func WithMaxAttempts(n int) IssuerOption {
	return func(i *Issuer) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(g CodeGenerator) IssuerOption {
	return func(i *Issuer) {
		if g != nil {
			i.generator = g
		}
	}
}

// WithClock sets the time source used for issued-at and expiry.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer creates an Issuer writing to store.
func NewIssuer(store DeviceCodeStore, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		store:       store,
		generator:   NewRandomCodeGenerator(),
		lifetime:    DefaultCodeLifetime,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// ExpiresIn returns the configured code lifetime in whole seconds.
func (i *Issuer) ExpiresIn() int {
	return int(i.lifetime / time.Second)
}

// Issue generates a device code pair for req, stores it as pending and returns
// both codes. Collisions are retried with fresh codes; once every attempt
// collided it returns ErrCodeGenerationExhausted.
func (i *Issuer) Issue(ctx context.Context, req *AuthorizationRequest) (userCode, deviceCode string, err error) {
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		record, err := i.newRecord(req)
		if err != nil {
			return "", "", err
		}

		err = i.store.InsertIfAbsent(ctx, record)
		if err == nil {
			metrics.DeviceCodesIssuedTotal.Inc()
			return record.UserCode, record.DeviceCode, nil
		}

		if !errors.Is(err, ErrCodeCollision) {
			return "", "", fmt.Errorf("failed to store device code: %w", err)
		}

		metrics.CodeCollisionRetriesTotal.Inc()
	}

	metrics.CodeGenerationExhaustedTotal.Inc()

	return "", "", fmt.Errorf("%w after %d attempts", ErrCodeGenerationExhausted, i.maxAttempts)
}

func (i *Issuer) newRecord(req *AuthorizationRequest) (*DeviceCodeRecord, error) {
	deviceCode, err := i.generator.DeviceCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}

	userCode, err := i.generator.UserCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user code: %w", err)
	}

	now := i.now()

	return &DeviceCodeRecord{
		ID:         uuid.NewString(),
		DeviceCode: deviceCode,
		UserCode:   userCode,
		Request:    req,
		Status:     DeviceCodeStatusPending,
		IssuedAt:   now,
		ExpiresAt:  now.Add(i.lifetime),
	}, nil
}
