// Package secrets resolves named credentials (signing keys, admin token
// hashes, provider API keys) and hashes operator tokens.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	dErrors "crowdfund/pkg/domain-errors"
)

// Well-known secret names.
const (
	JWTSigningKey  = "JWT_SIGNING_KEY"
	AdminTokenHash = "ADMIN_TOKEN_HASH"
	GenAIAPIKey    = "GENAI_API_KEY"
)

// Provider resolves a secret by name. A missing secret is CodeNotFound.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// Env reads secrets from environment variables, optionally prefixed.
type Env struct {
	prefix string
	lookup func(string) (string, bool)
}

func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix, lookup: os.LookupEnv}
}

// NewEnvWithLookup swaps the environment for tests.
func NewEnvWithLookup(prefix string, lookup func(string) (string, bool)) *Env {
	return &Env{prefix: prefix, lookup: lookup}
}

func (e *Env) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := e.lookup(e.prefix + name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "secret "+name+" is not set")
	}
	return v, nil
}

// Caching resolves each name once and serves it from memory until
// Invalidate. Concurrent misses for the same name share one lookup.
type Caching struct {
	next  Provider
	group singleflight.Group

	mu     sync.RWMutex
	values map[string]string
}

func NewCaching(next Provider) *Caching {
	return &Caching{next: next, values: make(map[string]string)}
}

func (c *Caching) Get(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(name, func() (any, error) {
		v, err := c.next.Get(ctx, name)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.values[name] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Invalidate drops the named entries, or every entry when names is empty.
func (c *Caching) Invalidate(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(names) == 0 {
		c.values = make(map[string]string)
		return
	}
	for _, n := range names {
		delete(c.values, n)
	}
}

// Generate creates a random URL-safe token suitable for admin access.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash bcrypt-hashes a token for storage in ADMIN_TOKEN_HASH.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext token against a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
