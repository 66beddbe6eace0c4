package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByName(ctx context.Context, name string) (*models.Subject, error)
	List(ctx context.Context) ([]models.Subject, error)
	AddSpocs(ctx context.Context, subjectID string, spocIDs []string) error
	AddAdmins(ctx context.Context, subjectID string, adminIDs []string) error
}

type subjectUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SubjectService manages subjects and their admin/SPOC assignments.
type SubjectService struct {
	subjects  subjectRepository
	users     subjectUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(subjects subjectRepository, users subjectUserRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{subjects: subjects, users: users, validator: validate, logger: logger}
}

// Create registers a subject. Names are unique.
func (s *SubjectService) Create(ctx context.Context, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	if _, err := s.subjects.FindByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, fmt.Sprintf("subject %q already exists", req.Name))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}

	if err := s.checkRoles(ctx, req.AdminIDs, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.checkRoles(ctx, req.SpocIDs, models.RoleSpoc); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:     req.Name,
		AdminIDs: req.AdminIDs,
		SpocIDs:  req.SpocIDs,
	}
	if subject.AdminIDs == nil {
		subject.AdminIDs = []string{}
	}
	if subject.SpocIDs == nil {
		subject.SpocIDs = []string{}
	}

	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Get returns one subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// List returns all subjects ordered by name.
func (s *SubjectService) List(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// AddSpocs merges SPOC users into the subject's managing set. Idempotent.
func (s *SubjectService) AddSpocs(ctx context.Context, subjectID string, req models.AssignSubjectUsersRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	if err := s.checkRoles(ctx, req.UserIDs, models.RoleSpoc); err != nil {
		return nil, err
	}
	if err := s.subjects.AddSpocs(ctx, subjectID, req.UserIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign spocs")
	}
	return s.Get(ctx, subjectID)
}

// AddAdmins merges admin users into the subject's managing set. Idempotent.
func (s *SubjectService) AddAdmins(ctx context.Context, subjectID string, req models.AssignSubjectUsersRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	if err := s.checkRoles(ctx, req.UserIDs, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.subjects.AddAdmins(ctx, subjectID, req.UserIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign admins")
	}
	return s.Get(ctx, subjectID)
}

func (s *SubjectService) checkRoles(ctx context.Context, userIDs []string, role models.UserRole) error {
	for _, id := range userIDs {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidUser, fmt.Sprintf("user %s not found", id))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		if user.Role != role {
			return appErrors.Clone(appErrors.ErrInvalidUser, fmt.Sprintf("user %s does not have the %s role", id, role))
		}
	}
	return nil
}
