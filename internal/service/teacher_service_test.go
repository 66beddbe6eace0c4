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

type mockTeacherRepo struct {
	teachers   map[string]*models.Teacher
	byUser     map[string]*models.Teacher
	byEmployee map[string]*models.Teacher
	created    *models.Teacher
	assigned   [][2]string
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{
		teachers:   map[string]*models.Teacher{},
		byUser:     map[string]*models.Teacher{},
		byEmployee: map[string]*models.Teacher{},
	}
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	teacher.ID = "tch-1"
	m.created = teacher
	m.teachers[teacher.ID] = teacher
	m.byUser[teacher.UserID] = teacher
	m.byEmployee[teacher.EmployeeID] = teacher
	return nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockTeacherRepo) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	teacher, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockTeacherRepo) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Teacher, error) {
	teacher, ok := m.byEmployee[employeeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	return nil, 0, nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	m.teachers[teacher.ID] = teacher
	return nil
}

func (m *mockTeacherRepo) AssignPaper(ctx context.Context, teacherID, paperID string) error {
	m.assigned = append(m.assigned, [2]string{teacherID, paperID})
	return nil
}

type mockTeacherUserRepo struct {
	users map[string]*models.User
}

func (m *mockTeacherUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type mockTeacherPaperRepo struct {
	papers        map[string]*models.Paper
	statusUpdates []models.PaperStatus
}

func (m *mockTeacherPaperRepo) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	paper, ok := m.papers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return paper, nil
}

func (m *mockTeacherPaperRepo) UpdateStatus(ctx context.Context, id string, status models.PaperStatus) error {
	m.statusUpdates = append(m.statusUpdates, status)
	if paper, ok := m.papers[id]; ok {
		paper.Status = status
	}
	return nil
}

func newTestTeacherService(teachers *mockTeacherRepo, users *mockTeacherUserRepo, papers *mockTeacherPaperRepo) *TeacherService {
	return NewTeacherService(teachers, users, papers, validator.New(), zap.NewNop())
}

func TestTeacherServiceCreateSuccess(t *testing.T) {
	repo := newMockTeacherRepo()
	users := &mockTeacherUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleTeacher},
	}}
	svc := newTestTeacherService(repo, users, &mockTeacherPaperRepo{})

	teacher, err := svc.Create(context.Background(), models.CreateTeacherRequest{
		UserID:     "usr-1",
		EmployeeID: "EMP-7",
		Subjects:   []string{"Physics"},
	})
	require.NoError(t, err)
	assert.Equal(t, "EMP-7", teacher.EmployeeID)
	assert.True(t, teacher.Active)
	assert.NotNil(t, teacher.AssignedPapers)
	assert.Empty(t, teacher.AssignedPapers)
}

func TestTeacherServiceCreateRequiresTeacherRole(t *testing.T) {
	users := &mockTeacherUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleStudent},
	}}
	svc := newTestTeacherService(newMockTeacherRepo(), users, &mockTeacherPaperRepo{})

	_, err := svc.Create(context.Background(), models.CreateTeacherRequest{
		UserID:     "usr-1",
		EmployeeID: "EMP-7",
		Subjects:   []string{"Physics"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidUser.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceCreateRejectsDuplicateEmployeeID(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.byEmployee["EMP-7"] = &models.Teacher{ID: "tch-0", EmployeeID: "EMP-7"}
	users := &mockTeacherUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleTeacher},
	}}
	svc := newTestTeacherService(repo, users, &mockTeacherPaperRepo{})

	_, err := svc.Create(context.Background(), models.CreateTeacherRequest{
		UserID:     "usr-1",
		EmployeeID: "EMP-7",
		Subjects:   []string{"Physics"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceCreateRejectsDuplicateProfile(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.byUser["usr-1"] = &models.Teacher{ID: "tch-0", UserID: "usr-1"}
	users := &mockTeacherUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Role: models.RoleTeacher},
	}}
	svc := newTestTeacherService(repo, users, &mockTeacherPaperRepo{})

	_, err := svc.Create(context.Background(), models.CreateTeacherRequest{
		UserID:     "usr-1",
		EmployeeID: "EMP-8",
		Subjects:   []string{"Physics"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceAssignPaperMovesToReviewing(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["tch-1"] = &models.Teacher{ID: "tch-1", UserID: "usr-1"}
	papers := &mockTeacherPaperRepo{papers: map[string]*models.Paper{
		"paper-1": {ID: "paper-1", Status: models.StatusAIGraded},
	}}
	svc := newTestTeacherService(repo, &mockTeacherUserRepo{}, papers)

	paper, err := svc.AssignPaper(context.Background(), "tch-1", "paper-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTeacherReviewing, paper.Status)
	require.Len(t, repo.assigned, 1)
	assert.Equal(t, [2]string{"tch-1", "paper-1"}, repo.assigned[0])
	require.Len(t, papers.statusUpdates, 1)
	assert.Equal(t, models.StatusTeacherReviewing, papers.statusUpdates[0])
}

func TestTeacherServiceAssignPaperUnknownPaper(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["tch-1"] = &models.Teacher{ID: "tch-1"}
	svc := newTestTeacherService(repo, &mockTeacherUserRepo{}, &mockTeacherPaperRepo{})

	_, err := svc.AssignPaper(context.Background(), "tch-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateMergesFields(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["tch-1"] = &models.Teacher{ID: "tch-1", Subjects: []string{"Physics"}, Active: true}
	svc := newTestTeacherService(repo, &mockTeacherUserRepo{}, &mockTeacherPaperRepo{})

	inactive := false
	teacher, err := svc.Update(context.Background(), "tch-1", models.UpdateTeacherRequest{
		Subjects: []string{"Physics", "Chemistry"},
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics", "Chemistry"}, []string(teacher.Subjects))
	assert.False(t, teacher.Active)
}
