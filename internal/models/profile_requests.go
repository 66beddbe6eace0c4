package models

// CreateSpocRequest promotes an existing spoc-role user into a SPOC profile.
type CreateSpocRequest struct {
	UserID      string      `json:"userId" validate:"required"`
	Department  string      `json:"department" validate:"required"`
	AccessLevel AccessLevel `json:"accessLevel" validate:"required,oneof=department institution"`
}

// UpdateSpocRequest mutates a SPOC profile. Nil fields are left unchanged.
type UpdateSpocRequest struct {
	Department  *string      `json:"department,omitempty"`
	AccessLevel *AccessLevel `json:"accessLevel,omitempty" validate:"omitempty,oneof=department institution"`
	Active      *bool        `json:"active,omitempty"`
}

// CreateTeacherRequest promotes an existing teacher-role user into a
// teacher profile.
type CreateTeacherRequest struct {
	UserID     string   `json:"userId" validate:"required"`
	EmployeeID string   `json:"employeeId" validate:"required"`
	Subjects   []string `json:"subjects" validate:"required,min=1"`
}

// UpdateTeacherRequest mutates a teacher profile. Nil fields are left
// unchanged.
type UpdateTeacherRequest struct {
	Subjects []string `json:"subjects,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

// CreateSubjectRequest registers a new subject.
type CreateSubjectRequest struct {
	Name     string   `json:"name" validate:"required"`
	AdminIDs []string `json:"adminIds,omitempty"`
	SpocIDs  []string `json:"spocIds,omitempty"`
}

// AssignSubjectUsersRequest merges admin or SPOC user ids into a subject.
type AssignSubjectUsersRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1"`
}

// CreateTicketRequest raises a student query against a subject.
type CreateTicketRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	Question  string `json:"question" validate:"required"`
}

// RespondTicketRequest resolves or progresses a ticket.
type RespondTicketRequest struct {
	Response string       `json:"response" validate:"required"`
	Status   TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved"`
}

// UpdateUserRequest mutates a user account. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Section *string `json:"section,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

// AdminResetPasswordRequest replaces a user's password without the OTP flow.
// Admin-only.
type AdminResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}
