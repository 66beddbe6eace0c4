package models

import "time"

// UploadPaperRequest carries the multipart form fields for a submission.
// The question and answer documents travel as file parts alongside it.
type UploadPaperRequest struct {
	RollNo   string    `form:"rollNo" validate:"required"`
	Title    string    `form:"title" validate:"required"`
	Subject  string    `form:"subject" validate:"required"`
	ExamDate time.Time `form:"-"`
	MaxMarks float64   `form:"maxMarks" validate:"required,gt=0"`
	Rubric   string    `form:"rubric"`
}

// TeacherReviewInput is the client-supplied part of a review; identity and
// timestamp are stamped server-side.
type TeacherReviewInput struct {
	Corrections string       `json:"corrections" validate:"required"`
	Status      ReviewStatus `json:"status" validate:"required,oneof=approved needs_revision"`
}

// FinalGradeInput is the client-supplied part of a final grade; identity and
// timestamp are stamped server-side.
type FinalGradeInput struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback"`
}

// UpdatePaperStatusRequest advances a paper through the workflow, optionally
// attaching a review or final grade.
type UpdatePaperStatusRequest struct {
	Status        PaperStatus         `json:"status" validate:"required"`
	TeacherReview *TeacherReviewInput `json:"teacherReview,omitempty"`
	FinalGrade    *FinalGradeInput    `json:"finalGrade,omitempty"`
}
