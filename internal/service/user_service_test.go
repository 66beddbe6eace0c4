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

type mockUserRepo struct {
	users        map[string]*models.User
	byEmail      map[string]*models.User
	updated      *models.User
	passwordHash string
	deleted      []string
	listFilter   models.UserFilter
	listResult   []models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listFilter = filter
	return m.listResult, len(m.listResult), nil
}

func newTestUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceListRejectsUnknownRole(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	role := models.UserRole("wizard")
	_, _, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErrors.FromError(err).Code)
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	repo := newMockUserRepo()
	repo.listResult = []models.User{{ID: "u1"}, {ID: "u2"}}
	svc := newTestUserService(repo)

	role := models.RoleStudent
	_, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
	require.NotNil(t, repo.listFilter.Role)
	assert.Equal(t, models.RoleStudent, *repo.listFilter.Role)
}

func TestUserServiceUpdateMergesFields(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Email: "old@example.com", Name: "Old Name", Active: true}
	svc := newTestUserService(repo)

	name := "New Name"
	email := "new@example.com"
	user, err := svc.Update(context.Background(), "u1", models.UpdateUserRequest{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)
	assert.Equal(t, "new@example.com", user.Email)
	require.NotNil(t, repo.updated)
}

func TestUserServiceUpdateRejectsEmailCollision(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Email: "old@example.com"}
	repo.byEmail["taken@example.com"] = &models.User{ID: "u2", Email: "taken@example.com"}
	svc := newTestUserService(repo)

	email := "taken@example.com"
	_, err := svc.Update(context.Background(), "u1", models.UpdateUserRequest{Email: &email})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateUser.Code, appErrors.FromError(err).Code)
}

func TestUserServiceResetPasswordRehashes(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := newTestUserService(repo)

	err := svc.ResetPassword(context.Background(), "u1", models.AdminResetPasswordRequest{NewPassword: "fresh-secret"})
	require.NoError(t, err)
	require.NotEmpty(t, repo.passwordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHash), []byte("fresh-secret")))
}

func TestUserServiceResetPasswordTooShort(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := newTestUserService(repo)

	err := svc.ResetPassword(context.Background(), "u1", models.AdminResetPasswordRequest{NewPassword: "abc"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteUnknownUser(t *testing.T) {
	svc := newTestUserService(newMockUserRepo())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSoftDeletes(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := newTestUserService(repo)

	require.NoError(t, svc.Delete(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, repo.deleted)
}
