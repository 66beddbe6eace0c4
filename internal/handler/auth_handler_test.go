package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalhub/exam-eval-api/internal/middleware"
	"github.com/evalhub/exam-eval-api/internal/models"
	"github.com/evalhub/exam-eval-api/internal/service"
	"github.com/evalhub/exam-eval-api/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthUserRepo struct {
	user *models.User
}

func (s *stubAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAuthUserRepo) RollNoTaken(ctx context.Context, rollNo string) (bool, error) {
	return false, nil
}

func (s *stubAuthUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "created-id"
	return nil
}

type stubVerifier struct{}

func (s *stubVerifier) GetCode(ctx context.Context, email string) (string, error) {
	return "", nil
}

func (s *stubVerifier) DeleteCode(ctx context.Context, email string) error {
	return nil
}

func (s *stubVerifier) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	return true, nil
}

func newAuthTestRouter(t *testing.T, password string) (*gin.Engine, *service.AuthService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubAuthUserRepo{user: &models.User{
		ID:           "u1",
		Email:        "student@example.com",
		PasswordHash: string(hash),
		Name:         "Student One",
		Role:         models.RoleStudent,
		Active:       true,
	}}
	svc := service.NewAuthService(repo, &stubVerifier{}, nil, nil, service.AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "exam-eval-api",
	})

	handler := NewAuthHandler(svc)
	router := gin.New()
	router.POST("/auth/login", handler.Login)
	router.POST("/auth/register", handler.Register)
	router.GET("/auth/me", middleware.JWT(svc), handler.Me)
	return router, svc
}

func postJSON(router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	w := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	w := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "student@example.com",
		Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	w := postJSON(router, "/auth/register", models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New Student",
		Role:     models.RoleStudent,
		RollNo:   "STU-43",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestAuthHandlerMeReturnsClaims(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	login := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusOK, login.Code)

	var loginEnvelope response.Envelope
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginEnvelope))
	data := loginEnvelope.Data.(map[string]interface{})
	token := data["token"].(string)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	me := envelope.Data.(map[string]interface{})
	assert.Equal(t, "student@example.com", me["email"])
	assert.Equal(t, "student", me["role"])
}

func TestAuthHandlerMeWithoutToken(t *testing.T) {
	router, _ := newAuthTestRouter(t, "secret123")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
