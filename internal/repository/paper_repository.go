package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/evalhub/exam-eval-api/internal/models"
)

const paperColumns = `id, student_id, roll_no, student_name, section, title, subject, exam_date, max_marks,
	question_file, answer_file, original_file_name, rubric, status, ocr_text, ai_grade, teacher_review,
	final_grade, submitted_by, created_at, updated_at`

// PaperRepository provides database access for papers.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository creates a new instance of PaperRepository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// Create inserts a new paper record.
func (r *PaperRepository) Create(ctx context.Context, paper *models.Paper) error {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now

	const query = `INSERT INTO papers (id, student_id, roll_no, student_name, section, title, subject, exam_date,
		max_marks, question_file, answer_file, original_file_name, rubric, status, submitted_by, created_at, updated_at)
		VALUES (:id, :student_id, :roll_no, :student_name, :section, :title, :subject, :exam_date,
		:max_marks, :question_file, :answer_file, :original_file_name, :rubric, :status, :submitted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, paper); err != nil {
		return fmt.Errorf("create paper: %w", err)
	}
	return nil
}

// FindByID returns a paper by identifier.
func (r *PaperRepository) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = $1 LIMIT 1`
	var paper models.Paper
	if err := r.db.GetContext(ctx, &paper, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find paper by id: %w", err)
	}
	return &paper, nil
}

// UpdateStatus writes the status tag only.
func (r *PaperRepository) UpdateStatus(ctx context.Context, id string, status models.PaperStatus) error {
	const query = `UPDATE papers SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	return nil
}

// SetAIResult persists the pipeline output and advances the status.
func (r *PaperRepository) SetAIResult(ctx context.Context, id string, ocr *models.OCRText, grade *models.AIGrade) error {
	const query = `UPDATE papers SET ocr_text = $2, ai_grade = $3, status = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ocr, grade, models.StatusAIGraded, time.Now().UTC()); err != nil {
		return fmt.Errorf("set ai result: %w", err)
	}
	return nil
}

// SetReview overwrites the status plus optional review/final sub-objects.
// Nil sub-objects leave the stored value untouched.
func (r *PaperRepository) SetReview(ctx context.Context, id string, status models.PaperStatus, review *models.TeacherReview, final *models.FinalGrade) error {
	const query = `UPDATE papers SET status = $2,
		teacher_review = COALESCE($3, teacher_review),
		final_grade = COALESCE($4, final_grade),
		updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, review, final, time.Now().UTC()); err != nil {
		return fmt.Errorf("set paper review: %w", err)
	}
	return nil
}

// List returns papers matching the filter with total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
	baseQuery := `FROM papers WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" || len(filter.TeacherSubjects) > 0 {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(teacher_review->>'teacher_id' = $%d OR subject = ANY($%d))", n, n+1))
		args = append(args, filter.TeacherID, pq.Array(filter.TeacherSubjects))
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.RollNo != "" {
		conditions = append(conditions, fmt.Sprintf("roll_no = $%d", len(args)+1))
		args = append(args, filter.RollNo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", paperColumns, baseQuery, pageSize, offset)

	var papers []models.Paper
	if err := r.db.SelectContext(ctx, &papers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}

	return papers, total, nil
}

// FindReleasedByRollNo projects released papers for the public results view.
func (r *PaperRepository) FindReleasedByRollNo(ctx context.Context, rollNo string) ([]models.PaperResult, error) {
	const query = `SELECT id, title, subject, exam_date, max_marks, ai_grade, final_grade
		FROM papers WHERE roll_no = $1 AND status = $2 ORDER BY exam_date DESC`
	var results []models.PaperResult
	if err := r.db.SelectContext(ctx, &results, query, rollNo, models.StatusReleased); err != nil {
		return nil, fmt.Errorf("find released papers: %w", err)
	}
	return results, nil
}

// FindByStudentIDs returns papers for a set of students, optionally narrowed
// by exam-date range and subject. Used by SPOC report aggregation.
func (r *PaperRepository) FindByStudentIDs(ctx context.Context, studentIDs []string, filter models.ReportFilter) ([]models.Paper, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + paperColumns + ` FROM papers WHERE student_id = ANY($1)`
	args := []interface{}{pq.Array(studentIDs)}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND exam_date >= $%d", len(args)+1)
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND exam_date <= $%d", len(args)+1)
		args = append(args, *filter.EndDate)
	}
	if filter.Subject != "" {
		query += fmt.Sprintf(" AND subject = $%d", len(args)+1)
		args = append(args, filter.Subject)
	}
	query += " ORDER BY exam_date DESC"

	var papers []models.Paper
	if err := r.db.SelectContext(ctx, &papers, query, args...); err != nil {
		return nil, fmt.Errorf("find papers by students: %w", err)
	}
	return papers, nil
}
