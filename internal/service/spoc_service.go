package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/export"
)

type spocRepository interface {
	Create(ctx context.Context, spoc *models.Spoc) error
	FindByID(ctx context.Context, id string) (*models.Spoc, error)
	FindByUserID(ctx context.Context, userID string) (*models.Spoc, error)
	List(ctx context.Context, filter models.SpocFilter) ([]models.Spoc, int, error)
	Update(ctx context.Context, spoc *models.Spoc) error
	AddStudent(ctx context.Context, spocID, studentID string) error
	RemoveStudent(ctx context.Context, spocID, studentID string) error
	StudentIDs(ctx context.Context, spocID string) ([]string, error)
	Students(ctx context.Context, spocID string, page, pageSize int) ([]models.User, int, error)
}

type spocUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type spocPaperRepository interface {
	FindByStudentIDs(ctx context.Context, studentIDs []string, filter models.ReportFilter) ([]models.Paper, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// SpocService manages SPOC profiles, their student rosters, and the
// aggregated department reports.
type SpocService struct {
	spocs     spocRepository
	users     spocUserRepository
	papers    spocPaperRepository
	cache     reportCache
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewSpocService constructs a SpocService instance.
func NewSpocService(spocs spocRepository, users spocUserRepository, papers spocPaperRepository,
	cache reportCache, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *SpocService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SpocService{
		spocs:     spocs,
		users:     users,
		papers:    papers,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Create promotes a spoc-role user into a SPOC profile. A user may back at
// most one profile.
func (s *SpocService) Create(ctx context.Context, req models.CreateSpocRequest) (*models.Spoc, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spoc payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidUser, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleSpoc {
		return nil, appErrors.Clone(appErrors.ErrInvalidUser, "user does not have the spoc role")
	}

	if _, err := s.spocs.FindByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "spoc profile already exists for user")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing profile")
	}

	spoc := &models.Spoc{
		UserID:      req.UserID,
		Department:  req.Department,
		AccessLevel: req.AccessLevel,
		Active:      true,
	}
	if err := s.spocs.Create(ctx, spoc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create spoc")
	}

	return spoc, nil
}

// Get returns one SPOC profile.
func (s *SpocService) Get(ctx context.Context, id string) (*models.Spoc, error) {
	spoc, err := s.spocs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "spoc not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load spoc")
	}
	return spoc, nil
}

// List returns active SPOC profiles.
func (s *SpocService) List(ctx context.Context, filter models.SpocFilter) ([]models.Spoc, *models.Pagination, error) {
	spocs, total, err := s.spocs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list spocs")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize, 10)
	return spocs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies the non-nil fields of the request to a SPOC profile.
func (s *SpocService) Update(ctx context.Context, id string, req models.UpdateSpocRequest) (*models.Spoc, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spoc payload")
	}

	spoc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Department != nil {
		spoc.Department = *req.Department
	}
	if req.AccessLevel != nil {
		spoc.AccessLevel = *req.AccessLevel
	}
	if req.Active != nil {
		spoc.Active = *req.Active
	}

	if err := s.spocs.Update(ctx, spoc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update spoc")
	}
	return spoc, nil
}

// AddStudent assigns an active student to the SPOC's roster. Idempotent.
func (s *SpocService) AddStudent(ctx context.Context, spocID, studentID string) error {
	if _, err := s.Get(ctx, spocID); err != nil {
		return err
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrInvalidUser, "user does not have the student role")
	}

	if err := s.spocs.AddStudent(ctx, spocID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
	}

	s.invalidateReports(ctx, spocID)
	return nil
}

// RemoveStudent unassigns a student from the SPOC's roster.
func (s *SpocService) RemoveStudent(ctx context.Context, spocID, studentID string) error {
	if _, err := s.Get(ctx, spocID); err != nil {
		return err
	}
	if err := s.spocs.RemoveStudent(ctx, spocID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign student")
	}
	s.invalidateReports(ctx, spocID)
	return nil
}

// Students returns the SPOC's managed students.
func (s *SpocService) Students(ctx context.Context, spocID string, page, pageSize int) ([]models.User, *models.Pagination, error) {
	if _, err := s.Get(ctx, spocID); err != nil {
		return nil, nil, err
	}
	students, total, err := s.spocs.Students(ctx, spocID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page, pageSize = normalizePage(page, pageSize, 10)
	return students, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Report aggregates the papers of the SPOC's managed students into counts
// by status, subject, and letter grade. Snapshots are cached; roster
// changes invalidate them.
func (s *SpocService) Report(ctx context.Context, spocID string, filter models.ReportFilter) (*models.SpocReport, error) {
	spoc, err := s.Get(ctx, spocID)
	if err != nil {
		return nil, err
	}

	key := reportCacheKey(spocID, filter)
	var cached models.SpocReport
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}

	studentIDs, err := s.spocs.StudentIDs(ctx, spocID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	papers, err := s.papers.FindByStudentIDs(ctx, studentIDs, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load papers")
	}

	report := buildSpocReport(spoc, len(studentIDs), papers)

	if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}

	return report, nil
}

// ExportReport renders the report as CSV or PDF and returns the payload
// with its content type and suggested filename.
func (s *SpocService) ExportReport(ctx context.Context, spocID string, filter models.ReportFilter, format string) ([]byte, string, string, error) {
	report, err := s.Report(ctx, spocID, filter)
	if err != nil {
		return nil, "", "", err
	}

	data := reportDataset(report)
	stamp := report.GeneratedAt.Format("20060102")

	switch format {
	case "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", fmt.Sprintf("spoc-report-%s.csv", stamp), nil
	case "pdf":
		payload, err := s.pdf.Render(data, fmt.Sprintf("Evaluation Report - %s", report.Department))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", fmt.Sprintf("spoc-report-%s.pdf", stamp), nil
	}
	return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}

func (s *SpocService) invalidateReports(ctx context.Context, spocID string) {
	if err := s.cache.Invalidate(ctx, "report:spoc:"+spocID+":*"); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("spoc_id", spocID), zap.Error(err))
	}
}

func reportCacheKey(spocID string, filter models.ReportFilter) string {
	start, end := "any", "any"
	if filter.StartDate != nil {
		start = filter.StartDate.Format("2006-01-02")
	}
	if filter.EndDate != nil {
		end = filter.EndDate.Format("2006-01-02")
	}
	subject := filter.Subject
	if subject == "" {
		subject = "all"
	}
	return fmt.Sprintf("report:spoc:%s:%s:%s:%s", spocID, start, end, subject)
}

func buildSpocReport(spoc *models.Spoc, totalStudents int, papers []models.Paper) *models.SpocReport {
	report := &models.SpocReport{
		SpocID:            spoc.ID,
		Department:        spoc.Department,
		AccessLevel:       spoc.AccessLevel,
		TotalPapers:       len(papers),
		TotalStudents:     totalStudents,
		PapersByStatus:    make(map[string]int),
		PapersBySubject:   make(map[string]int),
		GradeDistribution: make(map[string]int),
		GeneratedAt:       time.Now().UTC(),
	}
	for _, letter := range models.GradeLetters {
		report.GradeDistribution[letter] = 0
	}

	var scoreSum float64
	var gradedCount int
	for _, paper := range papers {
		report.PapersByStatus[string(paper.Status)]++
		report.PapersBySubject[paper.Subject]++

		if paper.FinalGrade == nil || paper.MaxMarks <= 0 {
			continue
		}
		scoreSum += paper.FinalGrade.Score
		gradedCount++
		percentage := paper.FinalGrade.Score / paper.MaxMarks * 100
		report.GradeDistribution[models.GradeLetter(percentage)]++
	}
	if gradedCount > 0 {
		report.AverageScore = scoreSum / float64(gradedCount)
	}

	return report
}

func reportDataset(report *models.SpocReport) export.Dataset {
	data := export.Dataset{Headers: []string{"Metric", "Value"}}
	data.Rows = append(data.Rows,
		map[string]string{"Metric": "Department", "Value": report.Department},
		map[string]string{"Metric": "Access Level", "Value": string(report.AccessLevel)},
		map[string]string{"Metric": "Total Students", "Value": fmt.Sprintf("%d", report.TotalStudents)},
		map[string]string{"Metric": "Total Papers", "Value": fmt.Sprintf("%d", report.TotalPapers)},
		map[string]string{"Metric": "Average Score", "Value": fmt.Sprintf("%.2f", report.AverageScore)},
	)
	for _, status := range []models.PaperStatus{
		models.StatusUploaded, models.StatusAIGraded, models.StatusTeacherReviewing,
		models.StatusTeacherCorrected, models.StatusFinalGraded, models.StatusReleased,
	} {
		data.Rows = append(data.Rows, map[string]string{
			"Metric": "Papers " + string(status),
			"Value":  fmt.Sprintf("%d", report.PapersByStatus[string(status)]),
		})
	}
	for _, letter := range models.GradeLetters {
		data.Rows = append(data.Rows, map[string]string{
			"Metric": "Grade " + letter,
			"Value":  fmt.Sprintf("%d", report.GradeDistribution[letter]),
		})
	}
	return data
}
