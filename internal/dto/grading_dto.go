package dto

import (
	"encoding/json"
	"time"

	"github.com/solvearc/solvearc-api/internal/models"
)

// SubmissionCreateRequest is the payload for grading a code submission.
type SubmissionCreateRequest struct {
	ProblemID         uint   `json:"problem_id" validate:"required,gt=0"`
	Code              string `json:"code" validate:"required,min=1"`
	Language          string `json:"language" validate:"required"`
	ProblemInstanceID *uint  `json:"problem_instance_id,omitempty"`
	ProblemSetID      *uint  `json:"problem_set_id,omitempty"`
}

// SubmissionResponse represents a stored submission to API consumers. Score is
// rendered as a percentage string with two decimals.
type SubmissionResponse struct {
	ID                uint      `json:"id"`
	UserID            uint      `json:"user_id"`
	ProblemID         uint      `json:"problem_id"`
	ProblemInstanceID *uint     `json:"problem_instance_id,omitempty"`
	ProblemSetID      *uint     `json:"problem_set_id,omitempty"`
	Code              string    `json:"code,omitempty"`
	Language          string    `json:"language"`
	Status            string    `json:"status"`
	Score             string    `json:"score"`
	RuntimeMs         int64     `json:"runtime_ms"`
	MemoryKB          int64     `json:"memory_kb"`
	Feedback          string    `json:"feedback,omitempty"`
	SubmittedAt       time.Time `json:"submitted_at"`
}

// TestResultResponse is one per-test verdict. For hidden tests the inputs and
// outputs are stripped for non-privileged viewers; the verdict itself stays.
type TestResultResponse struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	ActualOutput   string `json:"actual_output,omitempty"`
	Error          string `json:"error,omitempty"`
	RuntimeMs      int64  `json:"runtime_ms"`
	MemoryKB       int64  `json:"memory_kb"`
	Hidden         bool   `json:"hidden"`
}

// SubmissionSummaryResponse condenses the grading outcome.
type SubmissionSummaryResponse struct {
	TotalTests  int  `json:"total_tests"`
	PassedTests int  `json:"passed_tests"`
	AllPassed   bool `json:"all_passed"`
}

// SubmissionCreateResponse is the full grading response.
type SubmissionCreateResponse struct {
	Submission  SubmissionResponse        `json:"submission"`
	TestResults []TestResultResponse      `json:"test_results"`
	Summary     SubmissionSummaryResponse `json:"summary"`
}

// EnrollmentResponse is the per-user aggregate over one problem set.
type EnrollmentResponse struct {
	ProblemSetID       uint   `json:"problem_set_id"`
	UserID             uint   `json:"user_id"`
	Progress           int    `json:"progress"`
	TotalSubmissions   int64  `json:"total_submissions"`
	CorrectSubmissions int64  `json:"correct_submissions"`
	CompletedProblems  []uint `json:"completed_problems"`
}

// NewSubmissionResponse builds a response DTO from a model.
func NewSubmissionResponse(submission models.Submission, includeCode bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:                submission.ID,
		UserID:            submission.UserID,
		ProblemID:         submission.ProblemID,
		ProblemInstanceID: submission.ProblemInstanceID,
		ProblemSetID:      submission.ProblemSetID,
		Language:          submission.Language,
		Status:            submission.Status,
		Score:             submission.ScoreString(),
		RuntimeMs:         submission.RuntimeMs,
		MemoryKB:          submission.MemoryKB,
		Feedback:          submission.Feedback,
		SubmittedAt:       submission.SubmittedAt,
	}
	if includeCode {
		response.Code = submission.Code
	}
	return response
}

// NewTestResultResponses maps stored per-test verdicts, stripping hidden test
// content unless the viewer is privileged.
func NewTestResultResponses(results []models.StoredTestResult, revealHidden bool) []TestResultResponse {
	responses := make([]TestResultResponse, 0, len(results))
	for _, result := range results {
		item := TestResultResponse{
			Passed:    result.Passed,
			RuntimeMs: result.RuntimeMs,
			MemoryKB:  result.MemoryKB,
			Hidden:    result.Hidden,
		}
		if !result.Hidden || revealHidden {
			item.Input = result.Input
			item.ExpectedOutput = result.ExpectedOutput
			item.ActualOutput = result.ActualOutput
			item.Error = result.Error
		}
		responses = append(responses, item)
	}
	return responses
}

// DecodeStoredTestResults unmarshals the submission's persisted verdicts.
func DecodeStoredTestResults(submission models.Submission) []models.StoredTestResult {
	if len(submission.TestResults) == 0 {
		return nil
	}
	var results []models.StoredTestResult
	if err := json.Unmarshal(submission.TestResults, &results); err != nil {
		return nil
	}
	return results
}

// NewEnrollmentResponse builds the aggregate DTO.
func NewEnrollmentResponse(enrollment models.ProblemSetEnrollment, completed []uint) EnrollmentResponse {
	if completed == nil {
		completed = []uint{}
	}
	return EnrollmentResponse{
		ProblemSetID:       enrollment.ProblemSetID,
		UserID:             enrollment.UserID,
		Progress:           enrollment.Progress,
		TotalSubmissions:   enrollment.TotalSubmissions,
		CorrectSubmissions: enrollment.CorrectSubmissions,
		CompletedProblems:  completed,
	}
}
