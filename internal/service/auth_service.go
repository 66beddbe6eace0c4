package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	RollNoTaken(ctx context.Context, rollNo string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type otpVerifier interface {
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
	ConsumeVerified(ctx context.Context, email string) (bool, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string

	// OTPRequiredRoles lists the roles that must complete an OTP round-trip
	// before a credential login or registration is accepted.
	OTPRequiredRoles []string
}

// AuthService provides login, registration, and token validation.
type AuthService struct {
	users     authUserRepository
	otp       otpVerifier
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, otp otpVerifier, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{users: users, otp: otp, validator: validate, logger: logger, config: config}
}

// Login authenticates credentials and returns a signed session token.
// Elevated roles must have verified an OTP beforehand; the verification
// marker is consumed here so each login needs its own round-trip.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if s.requiresOTP(user.Role) {
		verified, err := s.otp.ConsumeVerified(ctx, user.Email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check OTP verification")
		}
		if !verified {
			return nil, appErrors.Clone(appErrors.ErrInvalidOTP, "OTP verification required before login")
		}
	}

	return s.issue(user)
}

// Register creates a new account and returns a signed session token.
// Elevated roles must supply a valid OTP in the payload or have verified
// one beforehand; students must carry an unclaimed roll number.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, fmt.Sprintf("unknown role %q", req.Role))
	}

	if req.Role == models.RoleStudent && req.RollNo == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll number is required for students")
	}

	if s.requiresOTP(req.Role) {
		verified, err := s.otpSatisfied(ctx, req.Email, req.OTP)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check OTP verification")
		}
		if !verified {
			return nil, appErrors.Clone(appErrors.ErrInvalidOTP, "OTP verification required for this role")
		}
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateUser, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	if req.RollNo != "" {
		taken, err := s.users.RollNoTaken(ctx, req.RollNo)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrDuplicateUser, "roll number is already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         req.Role,
		Active:       true,
	}
	if req.RollNo != "" {
		user.RollNo = &req.RollNo
	}
	if req.Section != "" {
		user.Section = &req.Section
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	return s.issue(user)
}

// ValidateToken parses and validates a session token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) requiresOTP(role models.UserRole) bool {
	for _, r := range s.config.OTPRequiredRoles {
		if models.UserRole(r) == role {
			return true
		}
	}
	return false
}

// otpSatisfied accepts either a code carried in the payload or a marker left
// by a prior verify-otp call. A supplied code must match the stored one and
// is consumed on success; a wrong code never falls back to the marker.
func (s *AuthService) otpSatisfied(ctx context.Context, email, code string) (bool, error) {
	if code != "" {
		stored, err := s.otp.GetCode(ctx, email)
		if err != nil {
			return false, err
		}
		if stored == "" || stored != code {
			return false, nil
		}
		if err := s.otp.DeleteCode(ctx, email); err != nil {
			s.logger.Warn("failed to clear consumed otp code", zap.Error(err))
		}
		return true, nil
	}
	return s.otp.ConsumeVerified(ctx, email)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiration)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Name:   user.Name,
		RollNo: user.RollNo,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.AuthResponse{
		Token:     signed,
		ExpiresIn: int64(s.config.Expiration.Seconds()),
		IssuedAt:  issuedAt,
		User: models.UserInfo{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
			RollNo: user.RollNo,
		},
	}, nil
}
