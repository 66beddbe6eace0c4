package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher extends a User with role=teacher. Subjects and assigned papers
// are stored as Postgres text arrays.
type Teacher struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"userId"`
	EmployeeID     string         `db:"employee_id" json:"employeeId"`
	Subjects       pq.StringArray `db:"subjects" json:"subjects"`
	AssignedPapers pq.StringArray `db:"assigned_papers" json:"assignedPapers"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures listing criteria for teacher profiles.
type TeacherFilter struct {
	Subject  string
	Page     int
	PageSize int
}
