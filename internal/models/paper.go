package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PaperStatus tags a paper's position in the evaluation workflow.
type PaperStatus string

const (
	StatusUploaded         PaperStatus = "uploaded"
	StatusAIGraded         PaperStatus = "ai_graded"
	StatusTeacherReviewing PaperStatus = "teacher_reviewing"
	StatusTeacherCorrected PaperStatus = "teacher_corrected"
	StatusFinalGraded      PaperStatus = "final_graded"
	StatusReleased         PaperStatus = "released"
)

// ValidStatus reports whether the status is one of the six workflow values.
func ValidStatus(s PaperStatus) bool {
	switch s {
	case StatusUploaded, StatusAIGraded, StatusTeacherReviewing,
		StatusTeacherCorrected, StatusFinalGraded, StatusReleased:
		return true
	}
	return false
}

// ReviewStatus is the outcome a teacher attaches to a review.
type ReviewStatus string

const (
	ReviewApproved      ReviewStatus = "approved"
	ReviewNeedsRevision ReviewStatus = "needs_revision"
)

// AIGrade is the automated scoring result, stored as a JSONB column.
type AIGrade struct {
	Score    float64   `json:"score"`
	Feedback string    `json:"feedback"`
	Model    string    `json:"model"`
	GradedAt time.Time `json:"graded_at"`
}

// TeacherReview is a teacher's correction pass, stored as a JSONB column.
type TeacherReview struct {
	TeacherID   string       `json:"teacher_id"`
	Corrections string       `json:"corrections"`
	Status      ReviewStatus `json:"status"`
	ReviewedAt  time.Time    `json:"reviewed_at"`
}

// FinalGrade is the released score, stored as a JSONB column.
type FinalGrade struct {
	Score    float64   `json:"score"`
	Feedback string    `json:"feedback"`
	GradedBy string    `json:"graded_by"`
	GradedAt time.Time `json:"graded_at"`
}

// OCRText holds the extracted text for both documents, stored as JSONB.
type OCRText struct {
	Questions string `json:"questions"`
	Answers   string `json:"answers"`
}

func (g AIGrade) Value() (driver.Value, error)       { return jsonbValue(g) }
func (g *AIGrade) Scan(src interface{}) error        { return jsonbScan(src, g) }
func (r TeacherReview) Value() (driver.Value, error) { return jsonbValue(r) }
func (r *TeacherReview) Scan(src interface{}) error  { return jsonbScan(src, r) }
func (f FinalGrade) Value() (driver.Value, error)    { return jsonbValue(f) }
func (f *FinalGrade) Scan(src interface{}) error     { return jsonbScan(src, f) }
func (o OCRText) Value() (driver.Value, error)       { return jsonbValue(o) }
func (o *OCRText) Scan(src interface{}) error        { return jsonbScan(src, o) }

func jsonbValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}

func jsonbScan(src, dest interface{}) error {
	if src == nil {
		return nil
	}
	switch raw := src.(type) {
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	}
	return fmt.Errorf("unsupported jsonb source type %T", src)
}

// Paper is the central workflow entity. Student identity fields are
// denormalised from the User at upload time; the record is never deleted,
// only status-advanced.
type Paper struct {
	ID               string         `db:"id" json:"id"`
	StudentID        string         `db:"student_id" json:"studentId"`
	RollNo           string         `db:"roll_no" json:"rollNo"`
	StudentName      string         `db:"student_name" json:"name"`
	Section          *string        `db:"section" json:"section,omitempty"`
	Title            string         `db:"title" json:"title"`
	Subject          string         `db:"subject" json:"subject"`
	ExamDate         time.Time      `db:"exam_date" json:"examDate"`
	MaxMarks         float64        `db:"max_marks" json:"maxMarks"`
	QuestionFile     string         `db:"question_file" json:"-"`
	AnswerFile       string         `db:"answer_file" json:"-"`
	OriginalFileName string         `db:"original_file_name" json:"originalFileName"`
	Rubric           string         `db:"rubric" json:"rubric,omitempty"`
	Status           PaperStatus    `db:"status" json:"status"`
	OCRText          *OCRText       `db:"ocr_text" json:"ocrText,omitempty"`
	AIGrade          *AIGrade       `db:"ai_grade" json:"aiGrade,omitempty"`
	TeacherReview    *TeacherReview `db:"teacher_review" json:"teacherReview,omitempty"`
	FinalGrade       *FinalGrade    `db:"final_grade" json:"finalGrade,omitempty"`
	SubmittedBy      string         `db:"submitted_by" json:"submittedBy"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// PaperFilter captures filtering criteria for listing papers. The role-scoping
// fields are populated by the service, never from the query string.
type PaperFilter struct {
	Status  string
	Subject string
	RollNo  string

	StudentID       string
	TeacherID       string
	TeacherSubjects []string

	Page     int
	PageSize int
}

// PaperResult is the released-paper projection for the public results view.
type PaperResult struct {
	ID         string      `db:"id" json:"id"`
	Title      string      `db:"title" json:"title"`
	Subject    string      `db:"subject" json:"subject"`
	ExamDate   time.Time   `db:"exam_date" json:"examDate"`
	MaxMarks   float64     `db:"max_marks" json:"maxMarks"`
	AIGrade    *AIGrade    `db:"ai_grade" json:"aiGrade,omitempty"`
	FinalGrade *FinalGrade `db:"final_grade" json:"finalGrade,omitempty"`
}
