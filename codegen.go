package deviceauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// UserCodeAlphabet omits vowels and the look-alikes 0/O and 1/I.
	UserCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ23456789"
	userCodeLength   = 8
	deviceCodeBytes  = 32
)

// CodeGenerator produces the random halves of a device code pair.
type CodeGenerator interface {
	DeviceCode() (string, error)
	UserCode() (string, error)
}

// RandomCodeGenerator draws codes from a cryptographic random source.
type RandomCodeGenerator struct {
	rand io.Reader
}

// NewRandomCodeGenerator returns a generator reading from crypto/rand.
func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{rand: rand.Reader}
}

// DeviceCode returns 256 random bits encoded as unpadded URL-safe base64.
func (g *RandomCodeGenerator) DeviceCode() (string, error) {
	b := make([]byte, deviceCodeBytes)
	if _, err := io.ReadFull(g.source(), b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// UserCode returns eight characters of UserCodeAlphabet formatted as XXXX-XXXX.
func (g *RandomCodeGenerator) UserCode() (string, error) {
	// Bytes at or above limit are rejected so every symbol is equally likely.
	limit := byte(256 - 256%len(UserCodeAlphabet))
	code := make([]byte, 0, userCodeLength)
	buf := make([]byte, userCodeLength*2)

	for len(code) < userCodeLength {
		if _, err := io.ReadFull(g.source(), buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= limit {
				continue
			}

			code = append(code, UserCodeAlphabet[int(b)%len(UserCodeAlphabet)])
			if len(code) == userCodeLength {
				break
			}
		}
	}

	return string(code[:4]) + "-" + string(code[4:]), nil
}

func (g *RandomCodeGenerator) source() io.Reader {
	if g == nil || g.rand == nil {
		return rand.Reader
	}

	return g.rand
}
