package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/util"
)

const otpLockPrefix = "otp_lock:"

var ErrOTPLocked = errors.New("otp issuance already in progress")

// Deletes the key only while it still holds our token, so a lock that
// expired and was taken by someone else is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// OTPLock serializes OTP issuance per email across service instances.
type OTPLock struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewOTPLock(client *client.RedisClient, ttl time.Duration) *OTPLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &OTPLock{client: client, ttl: ttl}
}

// Acquire takes the lock for email or returns ErrOTPLocked. The returned
// release func is safe to call once the work is done.
func (l *OTPLock) Acquire(ctx context.Context, email string) (func(), error) {
	key := otpLockPrefix + email
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		util.Error("Failed to set OTP lock", zap.Error(err))
		return nil, fmt.Errorf("failed to set OTP lock: %w", err)
	}
	if !ok {
		return nil, ErrOTPLocked
	}

	util.Debug("OTP lock set", zap.Duration("ttl", l.ttl))

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.client.Eval(releaseCtx, releaseScript, []string{key}, token); err != nil {
			util.Warn("Failed to release OTP lock", zap.Error(err))
		}
	}
	return release, nil
}
