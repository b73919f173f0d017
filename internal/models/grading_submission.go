package models

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Submission statuses. A submission is written with a terminal status and is
// replaced wholesale on resubmission, never transitioned incrementally.
const (
	SubmissionStatusPending     = "pending"
	SubmissionStatusAccepted    = "accepted"
	SubmissionStatusPartial     = "partial"
	SubmissionStatusWrongAnswer = "wrong_answer"
	SubmissionStatusError       = "error"
)

// Submission is one graded attempt. For assignment submissions the slot
// (user, problem, slot key) holds at most one row: a new attempt overwrites
// the prior one. Standalone practice submissions always append.
type Submission struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"not null;index;uniqueIndex:idx_submission_slot,priority:1,where:slot_key <> ''" json:"user_id"`
	ProblemID         uint           `gorm:"not null;index;uniqueIndex:idx_submission_slot,priority:2,where:slot_key <> ''" json:"problem_id"`
	ProblemInstanceID *uint          `gorm:"index" json:"problem_instance_id"`
	ProblemSetID      *uint          `gorm:"index" json:"problem_set_id"`
	SlotKey           string         `gorm:"size:64;not null;default:'';uniqueIndex:idx_submission_slot,priority:3,where:slot_key <> ''" json:"-"`
	Code              string         `gorm:"type:text;not null" json:"code"`
	Language          string         `gorm:"size:32;not null" json:"language"`
	Status            string         `gorm:"size:32;not null" json:"status"`
	PreviousStatus    *string        `gorm:"size:32" json:"-"`
	Score             float64        `gorm:"not null;default:0" json:"score"`
	RuntimeMs         int64          `gorm:"default:0" json:"runtime_ms"`
	MemoryKB          int64          `gorm:"default:0" json:"memory_kb"`
	Feedback          string         `gorm:"type:text" json:"feedback"`
	TestResults       datatypes.JSON `json:"test_results"`
	SubmittedAt       time.Time      `gorm:"not null" json:"submitted_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsAccepted reports whether all test cases passed.
func (s Submission) IsAccepted() bool {
	return s.Status == SubmissionStatusAccepted
}

// ScoreString renders the score as a percentage with two decimals.
func (s Submission) ScoreString() string {
	return fmt.Sprintf("%.2f", s.Score)
}

// SlotKeyFor derives the overwrite key for an assignment slot. The instance id
// wins over the set id so two instances of the same canonical problem in one
// set occupy distinct slots. Standalone submissions get an empty key and are
// exempt from the uniqueness constraint.
func SlotKeyFor(problemInstanceID, problemSetID *uint) string {
	if problemInstanceID != nil && *problemInstanceID != 0 {
		return "inst:" + strconv.FormatUint(uint64(*problemInstanceID), 10)
	}
	if problemSetID != nil && *problemSetID != 0 {
		return "set:" + strconv.FormatUint(uint64(*problemSetID), 10)
	}
	return ""
}

// StoredTestResult is the per-test verdict persisted on the submission row.
type StoredTestResult struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	ActualOutput   string `json:"actual_output,omitempty"`
	Error          string `json:"error,omitempty"`
	RuntimeMs      int64  `json:"runtime_ms"`
	MemoryKB       int64  `json:"memory_kb"`
	Hidden         bool   `json:"hidden"`
}
