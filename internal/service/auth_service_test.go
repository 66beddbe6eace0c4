package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type mockAuthUserRepo struct {
	userByEmail    *models.User
	findByEmailErr error
	rollNoTaken    bool
	created        *models.User
	createErr      error
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RollNoTaken(ctx context.Context, rollNo string) (bool, error) {
	return m.rollNoTaken, nil
}

func (m *mockAuthUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "generated-id"
	m.created = user
	return nil
}

type mockOTPVerifier struct {
	codes    map[string]string
	verified map[string]bool
}

func (m *mockOTPVerifier) GetCode(ctx context.Context, email string) (string, error) {
	return m.codes[email], nil
}

func (m *mockOTPVerifier) DeleteCode(ctx context.Context, email string) error {
	delete(m.codes, email)
	return nil
}

func (m *mockOTPVerifier) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	ok := m.verified[email]
	delete(m.verified, email)
	return ok, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:           "test-secret",
		Expiration:       time.Hour,
		Issuer:           "exam-eval-api",
		OTPRequiredRoles: []string{"admin", "teacher", "spoc"},
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Name:         "Student One",
		Role:         models.RoleStudent,
		Active:       true,
	}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleStudent,
		Active:       true,
	}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleStudent,
		Active:       false,
	}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.Error(t, err)
	// Same message as a bad password so account state is not leaked.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginElevatedRoleNeedsOTP(t *testing.T) {
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "a1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleAdmin,
		Active:       true,
	}}
	verifier := &mockOTPVerifier{verified: map[string]bool{}}
	svc := NewAuthService(repo, verifier, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)

	verifier.verified["admin@example.com"] = true
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	// The marker is single-use.
	assert.False(t, verifier.verified["admin@example.com"])
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := &mockAuthUserRepo{}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New Student",
		Role:     models.RoleStudent,
		RollNo:   "STU-42",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.RoleStudent, repo.created.Role)
	require.NotNil(t, repo.created.RollNo)
	assert.Equal(t, "STU-42", *repo.created.RollNo)
	assert.True(t, repo.created.Active)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthServiceRegisterStudentRequiresRollNo(t *testing.T) {
	svc := NewAuthService(&mockAuthUserRepo{}, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New Student",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthUserRepo{userByEmail: &models.User{ID: "u1", Email: "new@example.com"}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New Student",
		Role:     models.RoleStudent,
		RollNo:   "STU-42",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateUser.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateRollNo(t *testing.T) {
	repo := &mockAuthUserRepo{rollNoTaken: true}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New Student",
		Role:     models.RoleStudent,
		RollNo:   "STU-42",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateUser.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterUnknownRole(t *testing.T) {
	svc := NewAuthService(&mockAuthUserRepo{}, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "Someone",
		Role:     models.UserRole("principal"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterElevatedRoleNeedsOTP(t *testing.T) {
	verifier := &mockOTPVerifier{verified: map[string]bool{}}
	svc := NewAuthService(&mockAuthUserRepo{}, verifier, validator.New(), zap.NewNop(), testAuthConfig())

	req := models.RegisterRequest{
		Email:    "teacher@example.com",
		Password: "secret123",
		Name:     "Teacher One",
		Role:     models.RoleTeacher,
	}

	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)

	verifier.verified["teacher@example.com"] = true
	resp, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestAuthServiceRegisterElevatedRoleWithPayloadOTP(t *testing.T) {
	verifier := &mockOTPVerifier{codes: map[string]string{"admin@example.com": "123456"}}
	svc := NewAuthService(&mockAuthUserRepo{}, verifier, validator.New(), zap.NewNop(), testAuthConfig())

	// No prior verify-otp call; the code rides in the payload.
	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "admin@example.com",
		Password: "secret123",
		Name:     "Admin One",
		Role:     models.RoleAdmin,
		OTP:      "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotContains(t, verifier.codes, "admin@example.com")
}

func TestAuthServiceRegisterRejectsWrongPayloadOTP(t *testing.T) {
	verifier := &mockOTPVerifier{
		codes:    map[string]string{"admin@example.com": "123456"},
		verified: map[string]bool{"admin@example.com": true},
	}
	svc := NewAuthService(&mockAuthUserRepo{}, verifier, validator.New(), zap.NewNop(), testAuthConfig())

	// A wrong supplied code must not fall back to the verified marker.
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "admin@example.com",
		Password: "secret123",
		Name:     "Admin One",
		Role:     models.RoleAdmin,
		OTP:      "999999",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)
	assert.Contains(t, verifier.codes, "admin@example.com")
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	rollNo := "STU-42"
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Name:         "Student One",
		Role:         models.RoleStudent,
		RollNo:       &rollNo,
		Active:       true,
	}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	require.NotNil(t, claims.RollNo)
	assert.Equal(t, "STU-42", *claims.RollNo)
}

func TestAuthServiceValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := testAuthConfig()
	repo := &mockAuthUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleStudent,
		Active:       true,
	}}
	svc := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), cfg)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)

	cfg.Secret = "different-secret"
	other := NewAuthService(repo, &mockOTPVerifier{}, validator.New(), zap.NewNop(), cfg)
	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
