package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpCodeKeyPrefix     = "otp:code:"
	otpVerifiedKeyPrefix = "otp:verified:"
)

// OTPRepository stores one-time passwords and verification markers in Redis.
// A zero TTL stores entries without expiry, matching the keep-until-consumed
// behaviour of a plain in-process map.
type OTPRepository struct {
	client *redis.Client
}

// NewOTPRepository constructs an OTP repository.
func NewOTPRepository(client *redis.Client) *OTPRepository {
	return &OTPRepository{client: client}
}

// StoreCode saves the code for the email, overwriting any existing entry.
func (r *OTPRepository) StoreCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, otpCodeKeyPrefix+email, code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp code: %w", err)
	}
	return nil
}

// GetCode returns the stored code, or empty string when none exists.
func (r *OTPRepository) GetCode(ctx context.Context, email string) (string, error) {
	code, err := r.client.Get(ctx, otpCodeKeyPrefix+email).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get otp code: %w", err)
	}
	return code, nil
}

// DeleteCode removes the stored code.
func (r *OTPRepository) DeleteCode(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, otpCodeKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete otp code: %w", err)
	}
	return nil
}

// MarkVerified records a successful OTP round-trip for the email.
func (r *OTPRepository) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	if err := r.client.Set(ctx, otpVerifiedKeyPrefix+email, "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	return nil
}

// ConsumeVerified atomically checks and clears the verification marker.
func (r *OTPRepository) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Del(ctx, otpVerifiedKeyPrefix+email).Result()
	if err != nil {
		return false, fmt.Errorf("consume otp verification: %w", err)
	}
	return n > 0, nil
}
