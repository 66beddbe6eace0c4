package models

import "time"

// AccessLevel scopes a SPOC's reach.
type AccessLevel string

const (
	AccessDepartment  AccessLevel = "department"
	AccessInstitution AccessLevel = "institution"
)

// Spoc extends a User with role=spoc. One-to-one with its backing user;
// managed students live in the spoc_students join table.
type Spoc struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"userId"`
	Department  string      `db:"department" json:"department"`
	AccessLevel AccessLevel `db:"access_level" json:"accessLevel"`
	Active      bool        `db:"active" json:"active"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// SpocFilter captures listing criteria for SPOC profiles.
type SpocFilter struct {
	Department string
	Page       int
	PageSize   int
}

// ReportFilter narrows the paper set aggregated into a SPOC report.
type ReportFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Subject   string
}

// SpocReport aggregates the papers of a SPOC's managed students.
type SpocReport struct {
	SpocID            string             `json:"spocId"`
	Department        string             `json:"department"`
	AccessLevel       AccessLevel        `json:"accessLevel"`
	TotalPapers       int                `json:"totalPapers"`
	TotalStudents     int                `json:"totalStudents"`
	PapersByStatus    map[string]int     `json:"papersByStatus"`
	PapersBySubject   map[string]int     `json:"papersBySubject"`
	AverageScore      float64            `json:"averageScore"`
	GradeDistribution map[string]int     `json:"gradesDistribution"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// GradeLetter maps a percentage to the fixed letter-grade thresholds.
func GradeLetter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B+"
	case percentage >= 60:
		return "B"
	case percentage >= 50:
		return "C+"
	case percentage >= 40:
		return "C"
	case percentage >= 30:
		return "D"
	default:
		return "F"
	}
}

// GradeLetters is the histogram key set in display order.
var GradeLetters = []string{"A+", "A", "B+", "B", "C+", "C", "D", "F"}
