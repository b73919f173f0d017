package models

import "time"

// ProblemSetEnrollment is the per-user aggregate over one assignment. It is a
// derived read-model: mutated only by the reconciler, recomputable from the
// submission history at any time.
type ProblemSetEnrollment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ProblemSetID       uint      `gorm:"not null;uniqueIndex:idx_enrollment_set_user,priority:1" json:"problem_set_id"`
	UserID             uint      `gorm:"not null;uniqueIndex:idx_enrollment_set_user,priority:2" json:"user_id"`
	Progress           int       `gorm:"not null;default:0" json:"progress"`
	TotalSubmissions   int64     `gorm:"not null;default:0" json:"total_submissions"`
	CorrectSubmissions int64     `gorm:"not null;default:0" json:"correct_submissions"`
	EnrolledAt         time.Time `json:"enrolled_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EnrollmentCompletion is one member of an enrollment's completed-problem set.
// Set semantics come from the unique index: add is an insert that ignores
// conflicts, remove is a delete.
type EnrollmentCompletion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EnrollmentID uint      `gorm:"not null;uniqueIndex:idx_completion_member,priority:1" json:"enrollment_id"`
	ProblemID    uint      `gorm:"not null;uniqueIndex:idx_completion_member,priority:2" json:"problem_id"`
	CreatedAt    time.Time `json:"created_at"`
}
