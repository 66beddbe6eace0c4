package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/mail"
)

type otpStore interface {
	StoreCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
	MarkVerified(ctx context.Context, email string, ttl time.Duration) error
}

type otpUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// OTPConfig defines TTLs for codes and verification markers.
type OTPConfig struct {
	CodeTTL     time.Duration
	VerifiedTTL time.Duration
}

// OTPService issues and verifies one-time passwords delivered by email.
type OTPService struct {
	store     otpStore
	users     otpUserRepository
	mailer    mail.Mailer
	validator *validator.Validate
	logger    *zap.Logger
	config    OTPConfig
}

// NewOTPService constructs an OTPService instance.
func NewOTPService(store otpStore, users otpUserRepository, mailer mail.Mailer, validate *validator.Validate, logger *zap.Logger, config OTPConfig) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OTPService{store: store, users: users, mailer: mailer, validator: validate, logger: logger, config: config}
}

// Issue generates a fresh 6-digit code, stores it, and mails it to the
// address. A re-issue overwrites any code already stored for the address.
func (s *OTPService) Issue(ctx context.Context, req models.SendOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid OTP request payload")
	}

	code, err := generateOTPCode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate OTP")
	}

	if err := s.store.StoreCode(ctx, req.Email, code, s.config.CodeTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store OTP")
	}

	// The stored code stays valid even when delivery fails, so a retried
	// send after a transient mail outage re-delivers the same window.
	if err := s.mailer.SendOTP(ctx, req.Email, code); err != nil {
		s.logger.Warn("otp mail delivery failed", zap.String("email", req.Email), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrMailDelivery.Code, appErrors.ErrMailDelivery.Status, appErrors.ErrMailDelivery.Message)
	}

	return nil
}

// Verify checks the submitted code. A match consumes the code and records a
// verification marker for the email; a mismatch leaves the stored code in
// place so the user may retry.
func (s *OTPService) Verify(ctx context.Context, req models.VerifyOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid OTP verification payload")
	}

	stored, err := s.store.GetCode(ctx, req.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load OTP")
	}
	if stored == "" || stored != req.OTP {
		return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid OTP")
	}

	if err := s.store.DeleteCode(ctx, req.Email); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume OTP")
	}
	if err := s.store.MarkVerified(ctx, req.Email, s.config.VerifiedTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record OTP verification")
	}

	return nil
}

// ResetPassword completes the OTP-gated password reset for the email.
func (s *OTPService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	stored, err := s.store.GetCode(ctx, req.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load OTP")
	}
	if stored == "" || stored != req.OTP {
		return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid OTP")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.store.DeleteCode(ctx, req.Email); err != nil {
		s.logger.Warn("failed to consume OTP after reset", zap.String("email", req.Email), zap.Error(err))
	}

	return nil
}

func generateOTPCode() (string, error) {
	// Uniform over [100000, 999999] so the code is always six digits.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
