// internal/domain/verification/store.go
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists OTP codes, issued-token markers, and the bypass flag.
type Store interface {
	SetOTP(ctx context.Context, phone, code string, ttl time.Duration) error
	GetOTP(ctx context.Context, phone string) (string, error)
	DeleteOTP(ctx context.Context, phone string) error

	MarkTokenIssued(ctx context.Context, tokenID string, ttl time.Duration) error
	ConsumeToken(ctx context.Context, tokenID string) (bool, error)

	GetBypassOverride(ctx context.Context) (*bool, error)
	SetBypassOverride(ctx context.Context, enabled bool) error
}

// ErrOTPNotFound is returned when no OTP exists for a phone number.
var ErrOTPNotFound = fmt.Errorf("no verification code found")

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed verification store
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func otpKey(phone string) string {
	return fmt.Sprintf("cod:otp:%s", phone)
}

func tokenKey(tokenID string) string {
	return fmt.Sprintf("cod:token:%s", tokenID)
}

const bypassKey = "cod:bypass"

func (s *redisStore) SetOTP(ctx context.Context, phone, code string, ttl time.Duration) error {
	return s.client.Set(ctx, otpKey(phone), code, ttl).Err()
}

func (s *redisStore) GetOTP(ctx context.Context, phone string) (string, error) {
	code, err := s.client.Get(ctx, otpKey(phone)).Result()
	if err == redis.Nil {
		return "", ErrOTPNotFound
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *redisStore) DeleteOTP(ctx context.Context, phone string) error {
	return s.client.Del(ctx, otpKey(phone)).Err()
}

func (s *redisStore) MarkTokenIssued(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKey(tokenID), "1", ttl).Err()
}

// ConsumeToken deletes the token marker. The DEL reply distinguishes the
// first consumer from replays.
func (s *redisStore) ConsumeToken(ctx context.Context, tokenID string) (bool, error) {
	deleted, err := s.client.Del(ctx, tokenKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (s *redisStore) GetBypassOverride(ctx context.Context) (*bool, error) {
	value, err := s.client.Get(ctx, bypassKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	enabled := value == "true"
	return &enabled, nil
}

func (s *redisStore) SetBypassOverride(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.client.Set(ctx, bypassKey, value, 0).Err()
}
