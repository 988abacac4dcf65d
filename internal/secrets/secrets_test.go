package secrets

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "crowdfund/pkg/domain-errors"
)

type countingProvider struct {
	calls atomic.Int32
	value string
}

func (p *countingProvider) Get(_ context.Context, name string) (string, error) {
	p.calls.Add(1)
	if name == "missing" {
		return "", dErrors.New(dErrors.CodeNotFound, "secret missing is not set")
	}
	return p.value, nil
}

func TestEnv(t *testing.T) {
	env := NewEnvWithLookup("CF_", func(key string) (string, bool) {
		switch key {
		case "CF_" + JWTSigningKey:
			return " signing-key ", true
		case "CF_EMPTY":
			return "  ", true
		}
		return "", false
	})

	v, err := env.Get(context.Background(), JWTSigningKey)
	require.NoError(t, err)
	assert.Equal(t, "signing-key", v)

	_, err = env.Get(context.Background(), "EMPTY")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = env.Get(context.Background(), GenAIAPIKey)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCachingResolvesOnceUntilInvalidated(t *testing.T) {
	next := &countingProvider{value: "v1"}
	c := NewCaching(next)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(ctx, AdminTokenHash)
			assert.NoError(t, err)
			assert.Equal(t, "v1", v)
		}()
	}
	wg.Wait()
	first := next.calls.Load()
	assert.LessOrEqual(t, first, int32(16))

	_, err := c.Get(ctx, AdminTokenHash)
	require.NoError(t, err)
	assert.Equal(t, first, next.calls.Load(), "cached value must not hit the source")

	next.value = "v2"
	c.Invalidate(AdminTokenHash)
	v, err := c.Get(ctx, AdminTokenHash)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	c.Invalidate()
	_, err = c.Get(ctx, AdminTokenHash)
	require.NoError(t, err)
	assert.Equal(t, first+2, next.calls.Load())
}

func TestCachingDoesNotCacheMisses(t *testing.T) {
	next := &countingProvider{}
	c := NewCaching(next)
	for range 2 {
		_, err := c.Get(context.Background(), "missing")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestHashAndVerify(t *testing.T) {
	token, err := Generate()
	require.NoError(t, err)
	assert.Len(t, token, 43)

	hash, err := Hash(token)
	require.NoError(t, err)
	assert.NoError(t, Verify(token, hash))
	assert.True(t, dErrors.HasCode(Verify("wrong", hash), dErrors.CodeUnauthorized))

	_, err = Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
