package models

import "time"

// Reconciliation task states.
const (
	ReconciliationTaskPending = "pending"
	ReconciliationTaskDone    = "done"
	ReconciliationTaskDead    = "dead"
)

// ReconciliationTask is a durable outbox entry for an enrollment transition
// that failed to apply synchronously. The full before/after status pair is
// stored so a retry replays the identical, idempotent transition.
type ReconciliationTask struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	ProblemSetID   uint       `gorm:"not null;index" json:"problem_set_id"`
	ProblemID      uint       `gorm:"not null" json:"problem_id"`
	NewSlot        bool       `gorm:"not null;default:false" json:"new_slot"`
	Deleted        bool       `gorm:"not null;default:false" json:"deleted"`
	PreviousStatus *string    `gorm:"size:32" json:"previous_status"`
	NewStatus      string     `gorm:"size:32;not null" json:"new_status"`
	TotalProblems  int        `gorm:"not null;default:0" json:"total_problems"`
	State          string     `gorm:"size:16;not null;default:'pending';index" json:"state"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	LastError      string     `gorm:"type:text" json:"last_error"`
	NextAttemptAt  time.Time  `gorm:"index" json:"next_attempt_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
