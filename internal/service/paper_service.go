package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/grading"
	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/jobs"
	"github.com/evalhub/exam-eval-api/pkg/storage"
)

// JobTypeGradePaper tags the background OCR-and-grade job for a paper.
const JobTypeGradePaper = "paper.grade"

// allowedUploadExtensions is the document whitelist for submissions.
var allowedUploadExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".tiff"}

type paperRepository interface {
	Create(ctx context.Context, paper *models.Paper) error
	FindByID(ctx context.Context, id string) (*models.Paper, error)
	UpdateStatus(ctx context.Context, id string, status models.PaperStatus) error
	SetAIResult(ctx context.Context, id string, ocr *models.OCRText, grade *models.AIGrade) error
	SetReview(ctx context.Context, id string, status models.PaperStatus, review *models.TeacherReview, final *models.FinalGrade) error
	List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error)
	FindReleasedByRollNo(ctx context.Context, rollNo string) ([]models.PaperResult, error)
}

type paperUserRepository interface {
	FindStudentByRollNo(ctx context.Context, rollNo string) (*models.User, error)
}

type paperTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type paperStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Path(filename string) string
}

type gradingQueue interface {
	Enqueue(job jobs.Job) error
}

// FileUpload is one document part of a multipart submission.
type FileUpload struct {
	Filename string
	Reader   io.Reader
}

// PaperService owns the submission workflow: upload, background grading,
// status transitions, listing, and the public results view.
type PaperService struct {
	papers    paperRepository
	users     paperUserRepository
	teachers  paperTeacherRepository
	files     paperStorage
	queue     gradingQueue
	ocr       grading.OCRClient
	grader    grading.Grader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaperService constructs a PaperService instance. The queue may be nil
// in tests that drive ProcessPaper directly.
func NewPaperService(papers paperRepository, users paperUserRepository, teachers paperTeacherRepository,
	files paperStorage, queue gradingQueue, ocr grading.OCRClient, grader grading.Grader,
	validate *validator.Validate, logger *zap.Logger) *PaperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaperService{
		papers:    papers,
		users:     users,
		teachers:  teachers,
		files:     files,
		queue:     queue,
		ocr:       ocr,
		grader:    grader,
		validator: validate,
		logger:    logger,
	}
}

// Upload stores both documents, creates the paper in status uploaded, and
// enqueues the grading job. The student is resolved by roll number.
func (s *PaperService) Upload(ctx context.Context, req models.UploadPaperRequest, question, answer FileUpload, submittedBy string) (*models.Paper, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if req.ExamDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam date is required")
	}

	for _, f := range []FileUpload{question, answer} {
		if !storage.AllowedExtension(f.Filename, allowedUploadExtensions) {
			return nil, appErrors.Clone(appErrors.ErrInvalidFileType,
				fmt.Sprintf("unsupported file type %s", filepath.Ext(f.Filename)))
		}
	}

	student, err := s.users.FindStudentByRollNo(ctx, req.RollNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("no active student with roll number %s", req.RollNo))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}

	questionName := storage.GenerateFilename(question.Filename, "question")
	if _, err := s.files.SaveStream(questionName, question.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store question file")
	}

	answerName := storage.GenerateFilename(answer.Filename, "answer")
	if _, err := s.files.SaveStream(answerName, answer.Reader); err != nil {
		if cleanupErr := s.files.Delete(questionName); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned question file", zap.String("file", questionName), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store answer file")
	}

	paper := &models.Paper{
		StudentID:        student.ID,
		RollNo:           req.RollNo,
		StudentName:      student.Name,
		Section:          student.Section,
		Title:            req.Title,
		Subject:          req.Subject,
		ExamDate:         req.ExamDate,
		MaxMarks:         req.MaxMarks,
		QuestionFile:     questionName,
		AnswerFile:       answerName,
		OriginalFileName: answer.Filename,
		Rubric:           req.Rubric,
		Status:           models.StatusUploaded,
		SubmittedBy:      submittedBy,
	}

	if err := s.papers.Create(ctx, paper); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create paper")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: paper.ID, Type: JobTypeGradePaper, Payload: paper.ID}); err != nil {
			// The paper stays in status uploaded and can be re-queued.
			s.logger.Warn("failed to enqueue grading job", zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}

	return paper, nil
}

// ProcessPaper is the grading job handler: it extracts text from both
// documents, grades the combined transcript, and advances the paper to
// ai_graded. On failure the paper is reset to uploaded and the error is
// returned so the queue's retry policy applies.
func (s *PaperService) ProcessPaper(ctx context.Context, paperID string) error {
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return fmt.Errorf("load paper %s: %w", paperID, err)
	}

	ocrText, result, err := s.runPipeline(ctx, paper)
	if err != nil {
		if resetErr := s.papers.UpdateStatus(ctx, paperID, models.StatusUploaded); resetErr != nil {
			s.logger.Error("failed to reset paper after pipeline failure", zap.String("paper_id", paperID), zap.Error(resetErr))
		}
		return err
	}

	grade := &models.AIGrade{
		Score:    result.Score,
		Feedback: result.Feedback,
		Model:    result.Model,
		GradedAt: time.Now().UTC(),
	}
	if err := s.papers.SetAIResult(ctx, paperID, ocrText, grade); err != nil {
		return fmt.Errorf("persist ai result for %s: %w", paperID, err)
	}

	s.logger.Info("paper graded",
		zap.String("paper_id", paperID),
		zap.Float64("score", grade.Score),
		zap.String("model", grade.Model))
	return nil
}

func (s *PaperService) runPipeline(ctx context.Context, paper *models.Paper) (*models.OCRText, *grading.Result, error) {
	questions, err := s.ocr.ExtractText(ctx, s.files.Path(paper.QuestionFile))
	if err != nil {
		return nil, nil, fmt.Errorf("ocr question file: %w", err)
	}
	answers, err := s.ocr.ExtractText(ctx, s.files.Path(paper.AnswerFile))
	if err != nil {
		return nil, nil, fmt.Errorf("ocr answer file: %w", err)
	}

	combined := fmt.Sprintf("Questions:\n%s\n\nAnswers:\n%s", questions.Text, answers.Text)
	result, err := s.grader.Grade(ctx, combined, grading.Criteria{
		Subject:  paper.Subject,
		MaxMarks: paper.MaxMarks,
		Rubric:   paper.Rubric,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("grade paper: %w", err)
	}

	return &models.OCRText{Questions: questions.Text, Answers: answers.Text}, result, nil
}

// UpdateStatus advances a paper through the workflow. Reviews may only be
// attached by teachers; final grades by teachers or admins. Identity and
// timestamps on the attached sub-objects are stamped here, never accepted
// from the client.
func (s *PaperService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, paperID string, req models.UpdatePaperStatusRequest) (*models.Paper, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", req.Status))
	}

	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}

	now := time.Now().UTC()

	var review *models.TeacherReview
	if req.TeacherReview != nil {
		if claims.Role != models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may attach a review")
		}
		review = &models.TeacherReview{
			TeacherID:   claims.UserID,
			Corrections: req.TeacherReview.Corrections,
			Status:      req.TeacherReview.Status,
			ReviewedAt:  now,
		}
	}

	var final *models.FinalGrade
	if req.FinalGrade != nil {
		if claims.Role != models.RoleTeacher && claims.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers or admins may attach a final grade")
		}
		if req.FinalGrade.Score > paper.MaxMarks {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("score %.2f exceeds max marks %.2f", req.FinalGrade.Score, paper.MaxMarks))
		}
		final = &models.FinalGrade{
			Score:    req.FinalGrade.Score,
			Feedback: req.FinalGrade.Feedback,
			GradedBy: claims.UserID,
			GradedAt: now,
		}
	}

	if err := s.papers.SetReview(ctx, paperID, req.Status, review, final); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update paper")
	}

	updated, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload paper")
	}
	return updated, nil
}

// List returns papers scoped to the caller's role: students see their own,
// teachers see papers they reviewed or in their subjects, admins and SPOCs
// see everything the query-string filters allow.
func (s *PaperService) List(ctx context.Context, claims *models.JWTClaims, filter models.PaperFilter) ([]models.Paper, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
		filter.TeacherID = ""
		filter.TeacherSubjects = nil
	case models.RoleTeacher:
		filter.StudentID = ""
		filter.TeacherID = claims.UserID
		teacher, err := s.teachers.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
			}
		} else {
			filter.TeacherSubjects = teacher.Subjects
		}
	default:
		filter.StudentID = ""
		filter.TeacherID = ""
		filter.TeacherSubjects = nil
	}

	papers, total, err := s.papers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list papers")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize, 10)
	return papers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one paper. Students may only read their own submissions.
func (s *PaperService) Get(ctx context.Context, claims *models.JWTClaims, paperID string) (*models.Paper, error) {
	paper, err := s.papers.FindByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}

	if claims.Role == models.RoleStudent && paper.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "paper belongs to another student")
	}

	return paper, nil
}

// Download opens the stored answer document (question document when no
// answer exists) and returns the name it should be served under.
func (s *PaperService) Download(ctx context.Context, claims *models.JWTClaims, paperID string) (*os.File, string, error) {
	paper, err := s.Get(ctx, claims, paperID)
	if err != nil {
		return nil, "", err
	}

	stored := paper.AnswerFile
	if stored == "" {
		stored = paper.QuestionFile
	}
	if stored == "" {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "paper has no stored document")
	}

	file, err := s.files.Open(stored)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored document")
	}

	downloadName := paper.OriginalFileName
	if downloadName == "" {
		downloadName = filepath.Base(stored)
	}
	return file, downloadName, nil
}

// Results returns the released papers for a roll number. An empty result
// set is reported as not found so students cannot probe unreleased work.
func (s *PaperService) Results(ctx context.Context, rollNo string) ([]models.PaperResult, error) {
	results, err := s.papers.FindReleasedByRollNo(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no released results for roll number")
	}
	return results, nil
}
