package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects map[string]*models.Subject
	byName   map[string]*models.Subject
	created  *models.Subject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: map[string]*models.Subject{}, byName: map[string]*models.Subject{}}
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "sub-1"
	m.created = subject
	m.subjects[subject.ID] = subject
	m.byName[subject.Name] = subject
	return nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (m *mockSubjectRepo) FindByName(ctx context.Context, name string) (*models.Subject, error) {
	subject, ok := m.byName[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (m *mockSubjectRepo) List(ctx context.Context) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(m.subjects))
	for _, subject := range m.subjects {
		out = append(out, *subject)
	}
	return out, nil
}

func (m *mockSubjectRepo) AddSpocs(ctx context.Context, subjectID string, spocIDs []string) error {
	subject := m.subjects[subjectID]
	subject.SpocIDs = mergeIDs(subject.SpocIDs, spocIDs)
	return nil
}

func (m *mockSubjectRepo) AddAdmins(ctx context.Context, subjectID string, adminIDs []string) error {
	subject := m.subjects[subjectID]
	subject.AdminIDs = mergeIDs(subject.AdminIDs, adminIDs)
	return nil
}

func mergeIDs(existing []string, incoming []string) []string {
	seen := map[string]bool{}
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range incoming {
		if !seen[id] {
			existing = append(existing, id)
			seen[id] = true
		}
	}
	return existing
}

type mockSubjectUserRepo struct {
	users map[string]*models.User
}

func (m *mockSubjectUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newTestSubjectService(subjects *mockSubjectRepo, users *mockSubjectUserRepo) *SubjectService {
	return NewSubjectService(subjects, users, validator.New(), zap.NewNop())
}

func TestSubjectServiceCreateSuccess(t *testing.T) {
	users := &mockSubjectUserRepo{users: map[string]*models.User{
		"adm-1":  {ID: "adm-1", Role: models.RoleAdmin},
		"spoc-1": {ID: "spoc-1", Role: models.RoleSpoc},
	}}
	svc := newTestSubjectService(newMockSubjectRepo(), users)

	subject, err := svc.Create(context.Background(), models.CreateSubjectRequest{
		Name:     "Physics",
		AdminIDs: []string{"adm-1"},
		SpocIDs:  []string{"spoc-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics", subject.Name)
	assert.Equal(t, []string{"adm-1"}, []string(subject.AdminIDs))
	assert.Equal(t, []string{"spoc-1"}, []string(subject.SpocIDs))
}

func TestSubjectServiceCreateDefaultsEmptySets(t *testing.T) {
	svc := newTestSubjectService(newMockSubjectRepo(), &mockSubjectUserRepo{})

	subject, err := svc.Create(context.Background(), models.CreateSubjectRequest{Name: "Physics"})
	require.NoError(t, err)
	assert.NotNil(t, subject.AdminIDs)
	assert.Empty(t, subject.AdminIDs)
	assert.NotNil(t, subject.SpocIDs)
	assert.Empty(t, subject.SpocIDs)
}

func TestSubjectServiceCreateRejectsDuplicateName(t *testing.T) {
	repo := newMockSubjectRepo()
	repo.byName["Physics"] = &models.Subject{ID: "sub-0", Name: "Physics"}
	svc := newTestSubjectService(repo, &mockSubjectUserRepo{})

	_, err := svc.Create(context.Background(), models.CreateSubjectRequest{Name: "Physics"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateValidatesRoles(t *testing.T) {
	users := &mockSubjectUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleStudent},
	}}
	svc := newTestSubjectService(newMockSubjectRepo(), users)

	_, err := svc.Create(context.Background(), models.CreateSubjectRequest{
		Name:     "Physics",
		AdminIDs: []string{"usr-1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidUser.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceAddSpocsMerges(t *testing.T) {
	repo := newMockSubjectRepo()
	repo.subjects["sub-1"] = &models.Subject{ID: "sub-1", Name: "Physics", SpocIDs: []string{"spoc-1"}}
	users := &mockSubjectUserRepo{users: map[string]*models.User{
		"spoc-1": {ID: "spoc-1", Role: models.RoleSpoc},
		"spoc-2": {ID: "spoc-2", Role: models.RoleSpoc},
	}}
	svc := newTestSubjectService(repo, users)

	subject, err := svc.AddSpocs(context.Background(), "sub-1", models.AssignSubjectUsersRequest{
		UserIDs: []string{"spoc-1", "spoc-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"spoc-1", "spoc-2"}, []string(subject.SpocIDs))
}

func TestSubjectServiceAddAdminsRejectsNonAdmin(t *testing.T) {
	repo := newMockSubjectRepo()
	repo.subjects["sub-1"] = &models.Subject{ID: "sub-1", Name: "Physics"}
	users := &mockSubjectUserRepo{users: map[string]*models.User{
		"tch-1": {ID: "tch-1", Role: models.RoleTeacher},
	}}
	svc := newTestSubjectService(repo, users)

	_, err := svc.AddAdmins(context.Background(), "sub-1", models.AssignSubjectUsersRequest{
		UserIDs: []string{"tch-1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidUser.Code, appErrors.FromError(err).Code)
}
