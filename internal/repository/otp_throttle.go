package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPThrottle guards OTP issuance and verification per phone.
type OTPThrottle interface {
	// AcquireIssue takes the issuance slot for phone. When the slot is held it returns false and
	// the remaining wait.
	AcquireIssue(ctx context.Context, phone string, cooldown time.Duration) (bool, time.Duration, error)
	ReleaseIssue(ctx context.Context, phone string) error
	// ReserveAttempt counts a verification attempt before it touches the code store and returns
	// the number of attempts in the current window, this one included.
	ReserveAttempt(ctx context.Context, phone string, window time.Duration) (int64, error)
	ClearFailures(ctx context.Context, phone string) error
}

type redisOTPThrottle struct {
	client *redis.Client
}

// NewOTPThrottle returns a Redis-backed throttle.
func NewOTPThrottle(client *redis.Client) OTPThrottle {
	return &redisOTPThrottle{client: client}
}

func issueKey(phone string) string   { return "otp:issue:" + phone }
func failureKey(phone string) string { return "otp:fail:" + phone }

func (t *redisOTPThrottle) AcquireIssue(ctx context.Context, phone string, cooldown time.Duration) (bool, time.Duration, error) {
	if cooldown <= 0 {
		return true, 0, nil
	}
	ok, err := t.client.SetNX(ctx, issueKey(phone), 1, cooldown).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := t.client.TTL(ctx, issueKey(phone)).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		ttl = cooldown
	}
	return false, ttl, nil
}

func (t *redisOTPThrottle) ReleaseIssue(ctx context.Context, phone string) error {
	return t.client.Del(ctx, issueKey(phone)).Err()
}

// INCR and the window EXPIRE run in one MULTI so a counter can never be left without a TTL.
// NX keeps the window anchored at the first attempt.
func (t *redisOTPThrottle) ReserveAttempt(ctx context.Context, phone string, window time.Duration) (int64, error) {
	key := failureKey(phone)
	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (t *redisOTPThrottle) ClearFailures(ctx context.Context, phone string) error {
	return t.client.Del(ctx, failureKey(phone)).Err()
}
