package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/client"
)

func newLock(t *testing.T, ttl time.Duration) (*OTPLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := &client.RedisClient{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rc.Close() })
	return NewOTPLock(rc, ttl), mr
}

func TestOTPLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	lock, mr := newLock(t, time.Second)

	release, err := lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, mr.Exists("otp_lock:a@x.com"))

	_, err = lock.Acquire(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrOTPLocked)

	other, err := lock.Acquire(ctx, "b@x.com")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("otp_lock:a@x.com"))

	release, err = lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)
	release()
}

func TestOTPLock_Expires(t *testing.T) {
	ctx := context.Background()
	lock, mr := newLock(t, time.Second)

	_, err := lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)
	release()
}

func TestOTPLock_ReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	lock, mr := newLock(t, time.Second)

	staleRelease, err := lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = lock.Acquire(ctx, "a@x.com")
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists("otp_lock:a@x.com"))
}

func TestNewOTPLock_DefaultTTL(t *testing.T) {
	lock := NewOTPLock(nil, 0)
	assert.Equal(t, 5*time.Second, lock.ttl)
}
