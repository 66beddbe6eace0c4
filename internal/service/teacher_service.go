package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type teacherRepository interface {
	Create(ctx context.Context, teacher *models.Teacher) error
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Teacher, error)
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	Update(ctx context.Context, teacher *models.Teacher) error
	AssignPaper(ctx context.Context, teacherID, paperID string) error
}

type teacherUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type teacherPaperRepository interface {
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	UpdateStatus(ctx context.Context, id string, status models.PaperStatus) error
}

// TeacherService manages teacher profiles and paper assignment.
type TeacherService struct {
	teachers  teacherRepository
	users     teacherUserRepository
	papers    teacherPaperRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService instance.
func NewTeacherService(teachers teacherRepository, users teacherUserRepository, papers teacherPaperRepository,
	validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TeacherService{teachers: teachers, users: users, papers: papers, validator: validate, logger: logger}
}

// Create promotes a teacher-role user into a teacher profile. Both the user
// and the employee id may back at most one profile.
func (s *TeacherService) Create(ctx context.Context, req models.CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidUser, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrInvalidUser, "user does not have the teacher role")
	}

	if _, err := s.teachers.FindByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "teacher profile already exists for user")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing profile")
	}

	if _, err := s.teachers.FindByEmployeeID(ctx, req.EmployeeID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "employee id already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee id")
	}

	teacher := &models.Teacher{
		UserID:         req.UserID,
		EmployeeID:     req.EmployeeID,
		Subjects:       req.Subjects,
		AssignedPapers: []string{},
		Active:         true,
	}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	return teacher, nil
}

// Get returns one teacher profile.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// List returns active teacher profiles.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize, 10)
	return teachers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies the non-nil fields of the request to a teacher profile.
func (s *TeacherService) Update(ctx context.Context, id string, req models.UpdateTeacherRequest) (*models.Teacher, error) {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Subjects != nil {
		teacher.Subjects = req.Subjects
	}
	if req.Active != nil {
		teacher.Active = *req.Active
	}

	if err := s.teachers.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// AssignPaper hands a paper to a teacher for review and moves it to
// teacher_reviewing. Repeated assignment of the same paper is a no-op on
// the teacher's assigned set.
func (s *TeacherService) AssignPaper(ctx context.Context, teacherID, paperID string) (*models.Paper, error) {
	if _, err := s.Get(ctx, teacherID); err != nil {
		return nil, err
	}

	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}

	if err := s.teachers.AssignPaper(ctx, teacherID, paperID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign paper")
	}

	if err := s.papers.UpdateStatus(ctx, paperID, models.StatusTeacherReviewing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update paper status")
	}
	paper.Status = models.StatusTeacherReviewing

	return paper, nil
}
