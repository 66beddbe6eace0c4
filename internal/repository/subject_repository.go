package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/evalhub/exam-eval-api/internal/models"
)

const subjectColumns = `id, name, admin_ids, spoc_ids, created_at, updated_at`

// SubjectRepository provides database access for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new instance of SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, admin_ids, spoc_ids, created_at, updated_at)
		VALUES (:id, :name, :admin_ids, :spoc_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// FindByID returns a subject by identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// FindByName returns a subject by its unique name.
func (r *SubjectRepository) FindByName(ctx context.Context, name string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE name = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by name: %w", err)
	}
	return &subject, nil
}

// List returns all subjects.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// AddSpocs merges the given SPOC user ids into the subject. Idempotent.
func (r *SubjectRepository) AddSpocs(ctx context.Context, subjectID string, spocIDs []string) error {
	const query = `UPDATE subjects SET
		spoc_ids = (SELECT ARRAY(SELECT DISTINCT unnest(spoc_ids || $2::text[]))),
		updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, subjectID, pq.Array(spocIDs), time.Now().UTC()); err != nil {
		return fmt.Errorf("add subject spocs: %w", err)
	}
	return nil
}

// AddAdmins merges the given admin user ids into the subject. Idempotent.
func (r *SubjectRepository) AddAdmins(ctx context.Context, subjectID string, adminIDs []string) error {
	const query = `UPDATE subjects SET
		admin_ids = (SELECT ARRAY(SELECT DISTINCT unnest(admin_ids || $2::text[]))),
		updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, subjectID, pq.Array(adminIDs), time.Now().UTC()); err != nil {
		return fmt.Errorf("add subject admins: %w", err)
	}
	return nil
}
