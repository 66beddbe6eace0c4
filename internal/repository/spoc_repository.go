package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evalhub/exam-eval-api/internal/models"
)

const spocColumns = `id, user_id, department, access_level, active, created_at, updated_at`

// SpocRepository provides database access for SPOC profiles and their
// managed-student assignments.
type SpocRepository struct {
	db *sqlx.DB
}

// NewSpocRepository creates a new instance of SpocRepository.
func NewSpocRepository(db *sqlx.DB) *SpocRepository {
	return &SpocRepository{db: db}
}

// Create inserts a new SPOC profile.
func (r *SpocRepository) Create(ctx context.Context, spoc *models.Spoc) error {
	if spoc.ID == "" {
		spoc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if spoc.CreatedAt.IsZero() {
		spoc.CreatedAt = now
	}
	spoc.UpdatedAt = now

	const query = `INSERT INTO spocs (id, user_id, department, access_level, active, created_at, updated_at)
		VALUES (:id, :user_id, :department, :access_level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, spoc); err != nil {
		return fmt.Errorf("create spoc: %w", err)
	}
	return nil
}

// FindByID returns a SPOC profile by identifier.
func (r *SpocRepository) FindByID(ctx context.Context, id string) (*models.Spoc, error) {
	query := `SELECT ` + spocColumns + ` FROM spocs WHERE id = $1 LIMIT 1`
	var spoc models.Spoc
	if err := r.db.GetContext(ctx, &spoc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find spoc by id: %w", err)
	}
	return &spoc, nil
}

// FindByUserID returns the SPOC profile backed by the given user.
func (r *SpocRepository) FindByUserID(ctx context.Context, userID string) (*models.Spoc, error) {
	query := `SELECT ` + spocColumns + ` FROM spocs WHERE user_id = $1 LIMIT 1`
	var spoc models.Spoc
	if err := r.db.GetContext(ctx, &spoc, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find spoc by user id: %w", err)
	}
	return &spoc, nil
}

// List returns active SPOC profiles with total count.
func (r *SpocRepository) List(ctx context.Context, filter models.SpocFilter) ([]models.Spoc, int, error) {
	baseQuery := `FROM spocs WHERE active = TRUE`
	var args []interface{}

	if filter.Department != "" {
		baseQuery += fmt.Sprintf(" AND department = $%d", len(args)+1)
		args = append(args, filter.Department)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", spocColumns, baseQuery, pageSize, offset)

	var spocs []models.Spoc
	if err := r.db.SelectContext(ctx, &spocs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list spocs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count spocs: %w", err)
	}

	return spocs, total, nil
}

// Update updates mutable fields of a SPOC profile.
func (r *SpocRepository) Update(ctx context.Context, spoc *models.Spoc) error {
	spoc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE spocs SET department = :department, access_level = :access_level, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, spoc); err != nil {
		return fmt.Errorf("update spoc: %w", err)
	}
	return nil
}

// AddStudent assigns a student to the SPOC. Idempotent.
func (r *SpocRepository) AddStudent(ctx context.Context, spocID, studentID string) error {
	const query = `INSERT INTO spoc_students (spoc_id, student_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (spoc_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, spocID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add spoc student: %w", err)
	}
	return nil
}

// RemoveStudent unassigns a student. No-op when absent.
func (r *SpocRepository) RemoveStudent(ctx context.Context, spocID, studentID string) error {
	const query = `DELETE FROM spoc_students WHERE spoc_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, spocID, studentID); err != nil {
		return fmt.Errorf("remove spoc student: %w", err)
	}
	return nil
}

// StudentIDs returns the identifiers of all students managed by the SPOC.
func (r *SpocRepository) StudentIDs(ctx context.Context, spocID string) ([]string, error) {
	const query = `SELECT student_id FROM spoc_students WHERE spoc_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, spocID); err != nil {
		return nil, fmt.Errorf("list spoc student ids: %w", err)
	}
	return ids, nil
}

// Students returns the active student users managed by the SPOC.
func (r *SpocRepository) Students(ctx context.Context, spocID string, page, pageSize int) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT u.%s FROM users u
		JOIN spoc_students ss ON ss.student_id = u.id
		WHERE ss.spoc_id = $1 AND u.role = 'student' AND u.active = TRUE
		ORDER BY u.name ASC LIMIT %d OFFSET %d`,
		"id, u.email, u.password_hash, u.name, u.role, u.roll_no, u.section, u.active, u.created_at, u.updated_at",
		pageSize, offset)

	var students []models.User
	if err := r.db.SelectContext(ctx, &students, listQuery, spocID); err != nil {
		return nil, 0, fmt.Errorf("list spoc students: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM spoc_students WHERE spoc_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, spocID); err != nil {
		return nil, 0, fmt.Errorf("count spoc students: %w", err)
	}

	return students, total, nil
}
