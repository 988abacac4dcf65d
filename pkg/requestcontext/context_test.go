package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "crowdfund/pkg/domain"
)

func TestZeroValuesWhenUnset(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserID(ctx).IsNil())
	assert.False(t, IsAdmin(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestValuesAreIndependent(t *testing.T) {
	userID := id.NewUserID()
	pinned := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	ctx := WithUserID(context.Background(), userID)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientMetadata(ctx, "203.0.113.9", "curl/8.5")
	ctx = WithTime(ctx, pinned)

	assert.Equal(t, userID, UserID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "203.0.113.9", ClientIP(ctx))
	assert.Equal(t, "curl/8.5", UserAgent(ctx))
	assert.Equal(t, pinned, Now(ctx))
	assert.False(t, IsAdmin(ctx), "user auth does not imply admin")

	assert.True(t, IsAdmin(WithAdmin(ctx)))
}
