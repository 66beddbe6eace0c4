package models

import "time"

// UserRole enumerates the roles recognised by the RBAC layer.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
	RoleSpoc    UserRole = "spoc"
)

// ValidRole reports whether the role is one of the known values.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleSpoc:
		return true
	}
	return false
}

// Permission names gate individual operations on top of role checks.
const (
	PermManageUsers    = "manage_users"
	PermManageRoles    = "manage_roles"
	PermViewReports    = "view_reports"
	PermCreatePapers   = "create_papers"
	PermGradePapers    = "grade_papers"
	PermSubmitPapers   = "submit_papers"
	PermViewResults    = "view_results"
	PermManageStudents = "manage_students"
)

// rolePermissions is the static role to permission-set table.
var rolePermissions = map[UserRole][]string{
	RoleAdmin:   {PermManageUsers, PermManageRoles, PermViewReports},
	RoleTeacher: {PermCreatePapers, PermGradePapers, PermViewReports},
	RoleStudent: {PermSubmitPapers, PermViewResults},
	RoleSpoc:    {PermManageStudents, PermViewReports},
}

// HasPermission reports whether the role grants the permission.
func HasPermission(role UserRole, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
// RollNo is present for students only and unique when non-null.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         UserRole  `db:"role" json:"role"`
	RollNo       *string   `db:"roll_no" json:"rollNo,omitempty"`
	Section      *string   `db:"section" json:"section,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
