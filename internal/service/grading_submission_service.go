package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/dto"
	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
	"github.com/solvearc/solvearc-api/pkg/judge"
)

// ErrProblemNotFound indicates neither a standalone problem nor a matching
// assignment instance resolves for the request.
var ErrProblemNotFound = errors.New("problem not found")

// ErrProblemSetNotFound indicates the referenced problem set does not exist.
var ErrProblemSetNotFound = errors.New("problem set not found")

// ErrNoTestCases indicates the resolved problem carries no test cases.
var ErrNoTestCases = errors.New("problem has no test cases")

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller may not act on the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrGradingFailed indicates the judge could not grade the submission; nothing
// was persisted.
var ErrGradingFailed = errors.New("grading failed")

// SubmissionService grades, stores and deletes code submissions, keeping the
// owning enrollment reconciled as a side effect.
type SubmissionService interface {
	Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionCreateResponse, error)
	Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionCreateResponse, error)
	List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Delete(ctx context.Context, id uint, requesterID uint, role string) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	problemSets repository.ProblemSetRepository
	outbox      repository.ReconciliationOutboxRepository
	reconciler  ReconcilerService
	judge       judge.Client
	events      *GradingEvents
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	problemRepo repository.ProblemRepository,
	problemSetRepo repository.ProblemSetRepository,
	outboxRepo repository.ReconciliationOutboxRepository,
	reconciler ReconcilerService,
	judgeClient judge.Client,
	events *GradingEvents,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissionRepo,
		problems:    problemRepo,
		problemSets: problemSetRepo,
		outbox:      outboxRepo,
		reconciler:  reconciler,
		judge:       judgeClient,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// resolvedProblem is the intake output: problem metadata, ordered test cases
// and the assignment slot the submission targets, if any.
type resolvedProblem struct {
	ProblemID         uint
	Title             string
	TestCases         []judge.TestCase
	TimeLimitMs       int
	MemoryLimitKB     int
	ProblemInstanceID *uint
	ProblemSetID      *uint
	TotalProblems     int
}

func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionCreateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	resolved, err := s.resolve(ctx, payload)
	if err != nil {
		return dto.SubmissionCreateResponse{}, err
	}
	if len(resolved.TestCases) == 0 {
		return dto.SubmissionCreateResponse{}, ErrNoTestCases
	}

	language := strings.ToLower(strings.TrimSpace(payload.Language))
	report, err := s.judge.Execute(ctx, judge.ExecutionRequest{
		Code:          payload.Code,
		Language:      language,
		TestCases:     resolved.TestCases,
		TimeLimitMs:   resolved.TimeLimitMs,
		MemoryLimitKB: resolved.MemoryLimitKB,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Uint("problem_id", resolved.ProblemID).Msg("judge execution failed")
		return dto.SubmissionCreateResponse{}, errors.Join(ErrGradingFailed, err)
	}

	stored, status, score, runtime, memory := deriveResult(report)
	resultsJSON, err := json.Marshal(stored)
	if err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	submission := models.Submission{
		UserID:            userID,
		ProblemID:         resolved.ProblemID,
		ProblemInstanceID: resolved.ProblemInstanceID,
		ProblemSetID:      resolved.ProblemSetID,
		SlotKey:           models.SlotKeyFor(resolved.ProblemInstanceID, resolved.ProblemSetID),
		Code:              payload.Code,
		Language:          language,
		Status:            status,
		Score:             score,
		RuntimeMs:         runtime,
		MemoryKB:          memory,
		TestResults:       datatypes.JSON(resultsJSON),
		SubmittedAt:       s.now().UTC(),
	}

	outcome, err := s.submissions.Upsert(ctx, &submission)
	if err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	if resolved.ProblemSetID != nil {
		s.reconcile(ctx, Transition{
			UserID:         userID,
			ProblemSetID:   *resolved.ProblemSetID,
			ProblemID:      resolved.ProblemID,
			NewSlot:        outcome.Created,
			PreviousStatus: outcome.PreviousStatus,
			NewStatus:      status,
			TotalProblems:  resolved.TotalProblems,
		})
	}

	if s.events != nil {
		s.events.PublishSubmissionGraded(ctx, submission.ID, userID, resolved.ProblemID, resolved.ProblemSetID, status, score)
	}

	passed := 0
	for _, result := range stored {
		if result.Passed {
			passed++
		}
	}

	return dto.SubmissionCreateResponse{
		Submission:  dto.NewSubmissionResponse(submission, true),
		TestResults: dto.NewTestResultResponses(stored, false),
		Summary: dto.SubmissionSummaryResponse{
			TotalTests:  len(stored),
			PassedTests: passed,
			AllPassed:   report.AllPassed,
		},
	}, nil
}

// resolve locates the grading target. A standalone problem wins when it
// exists; otherwise the request must name an assignment instance, either
// directly or through its problem set. When resolution goes through an
// instance the discovered problem set id propagates to the store and the
// reconciler.
func (s *submissionService) resolve(ctx context.Context, payload dto.SubmissionCreateRequest) (resolvedProblem, error) {
	resolved := resolvedProblem{ProblemID: payload.ProblemID}

	problem, err := s.problems.GetWithTestCases(ctx, payload.ProblemID)
	standalone := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return resolvedProblem{}, err
	}

	if standalone {
		resolved.Title = problem.Title
		resolved.TimeLimitMs = problem.TimeLimitMs
		resolved.MemoryLimitKB = problem.MemoryLimitKB
		resolved.TestCases = canonicalTestCases(problem)
	}

	var instance *models.ProblemInstance
	switch {
	case payload.ProblemInstanceID != nil && *payload.ProblemInstanceID != 0:
		found, err := s.problemSets.GetInstance(ctx, *payload.ProblemInstanceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return resolvedProblem{}, ErrProblemNotFound
			}
			return resolvedProblem{}, err
		}
		instance = &found
	case payload.ProblemSetID != nil && *payload.ProblemSetID != 0:
		found, err := s.problemSets.FindInstanceByProblem(ctx, *payload.ProblemSetID, payload.ProblemID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return resolvedProblem{}, err
			}
			// A canonical problem can be assigned without a customized
			// instance; the set context alone defines the slot then.
			if !standalone {
				return resolvedProblem{}, ErrProblemNotFound
			}
		} else {
			instance = &found
		}
	default:
		if !standalone {
			return resolvedProblem{}, ErrProblemNotFound
		}
		return resolved, nil
	}

	setID := uint(0)
	switch {
	case instance != nil:
		setID = instance.ProblemSetID
		instanceID := instance.ID
		resolved.ProblemInstanceID = &instanceID
		if instance.CustomTitle != "" {
			resolved.Title = instance.CustomTitle
		}
		if instance.HasCustomTests() {
			custom, err := instance.DecodeTests()
			if err != nil {
				return resolvedProblem{}, err
			}
			cases := make([]judge.TestCase, 0, len(custom))
			for _, testCase := range custom {
				cases = append(cases, judge.TestCase{
					Input:          testCase.Input,
					ExpectedOutput: testCase.ExpectedOutput,
					Hidden:         testCase.Hidden,
				})
			}
			resolved.TestCases = cases
		}
	case payload.ProblemSetID != nil:
		setID = *payload.ProblemSetID
	}

	total, err := s.problemSets.CountInstances(ctx, setID)
	if err != nil {
		return resolvedProblem{}, err
	}
	if total == 0 {
		// An empty count for a directly-addressed set means the set itself
		// is gone or holds nothing gradable.
		if _, err := s.problemSets.GetByID(ctx, setID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return resolvedProblem{}, ErrProblemSetNotFound
			}
			return resolvedProblem{}, err
		}
	}

	resolved.ProblemSetID = &setID
	resolved.TotalProblems = int(total)
	return resolved, nil
}

func (s *submissionService) Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionCreateResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionCreateResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionCreateResponse{}, err
	}

	privileged := isPrivilegedRole(role)
	if submission.UserID != viewerID && !privileged {
		return dto.SubmissionCreateResponse{}, ErrSubmissionForbidden
	}

	stored := dto.DecodeStoredTestResults(submission)
	passed := 0
	for _, result := range stored {
		if result.Passed {
			passed++
		}
	}

	return dto.SubmissionCreateResponse{
		Submission:  dto.NewSubmissionResponse(submission, submission.UserID == viewerID || privileged),
		TestResults: dto.NewTestResultResponses(stored, privileged),
		Summary: dto.SubmissionSummaryResponse{
			TotalTests:  len(stored),
			PassedTests: passed,
			AllPassed:   len(stored) > 0 && passed == len(stored),
		},
	}, nil
}

func (s *submissionService) List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission, false))
	}
	return responses, nil
}

// Delete removes the submission and mirrors the accepted branch of the
// transition rule on the owning enrollment.
func (s *submissionService) Delete(ctx context.Context, id uint, requesterID uint, role string) error {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if submission.UserID != requesterID && !isPrivilegedRole(role) {
		return ErrSubmissionForbidden
	}

	deleted, err := s.submissions.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSubmissionNotFound
	}

	if submission.ProblemSetID != nil {
		total, err := s.problemSets.CountInstances(ctx, *submission.ProblemSetID)
		if err != nil {
			s.logger.Error().Err(err).Uint("problem_set_id", *submission.ProblemSetID).Msg("failed to size problem set for delete reconciliation")
			total = 0
		}
		previous := submission.Status
		s.reconcile(ctx, Transition{
			UserID:         submission.UserID,
			ProblemSetID:   *submission.ProblemSetID,
			ProblemID:      submission.ProblemID,
			Deleted:        true,
			PreviousStatus: &previous,
			NewStatus:      "",
			TotalProblems:  int(total),
		})
	}

	return nil
}

// reconcile applies the transition best-effort. A failure is logged and
// parked on the durable outbox for the retry worker; it never propagates to
// the submission write, which stays authoritative.
func (s *submissionService) reconcile(ctx context.Context, transition Transition) {
	err := s.reconciler.Apply(ctx, transition)
	if err == nil {
		return
	}
	s.logger.Error().Err(err).
		Uint("user_id", transition.UserID).
		Uint("problem_set_id", transition.ProblemSetID).
		Uint("problem_id", transition.ProblemID).
		Msg("enrollment reconciliation failed, queueing retry")

	if s.outbox == nil {
		return
	}
	task := models.ReconciliationTask{
		UserID:         transition.UserID,
		ProblemSetID:   transition.ProblemSetID,
		ProblemID:      transition.ProblemID,
		NewSlot:        transition.NewSlot,
		Deleted:        transition.Deleted,
		PreviousStatus: transition.PreviousStatus,
		NewStatus:      transition.NewStatus,
		TotalProblems:  transition.TotalProblems,
	}
	if err := s.outbox.Enqueue(ctx, &task); err != nil {
		s.logger.Error().Err(err).
			Uint("user_id", transition.UserID).
			Uint("problem_set_id", transition.ProblemSetID).
			Msg("failed to enqueue reconciliation retry")
	}
}

// deriveResult folds the per-test verdicts into the stored rows and the
// aggregate status/score: accepted when every test passes, wrong_answer when
// none do, partial in between. Runtime and memory report the worst test.
func deriveResult(report judge.ExecutionReport) ([]models.StoredTestResult, string, float64, int64, int64) {
	stored := make([]models.StoredTestResult, 0, len(report.PerTest))
	passed := 0
	var runtime, memory int64

	for _, result := range report.PerTest {
		if result.Passed {
			passed++
		}
		if result.RuntimeMs > runtime {
			runtime = result.RuntimeMs
		}
		if result.MemoryKB > memory {
			memory = result.MemoryKB
		}
		stored = append(stored, models.StoredTestResult{
			Passed:         result.Passed,
			Input:          result.Input,
			ExpectedOutput: result.ExpectedOutput,
			ActualOutput:   result.ActualOutput,
			Error:          result.Error,
			RuntimeMs:      result.RuntimeMs,
			MemoryKB:       result.MemoryKB,
			Hidden:         result.Hidden,
		})
	}

	total := len(report.PerTest)
	status := models.SubmissionStatusWrongAnswer
	score := 0.0
	if total > 0 {
		score = math.Round(float64(passed)/float64(total)*10000) / 100
		switch {
		case passed == total:
			status = models.SubmissionStatusAccepted
		case passed > 0:
			status = models.SubmissionStatusPartial
		}
	}

	return stored, status, score, runtime, memory
}

func canonicalTestCases(problem models.Problem) []judge.TestCase {
	cases := make([]judge.TestCase, 0, len(problem.TestCases))
	for _, testCase := range problem.TestCases {
		cases = append(cases, judge.TestCase{
			Input:          testCase.Input,
			ExpectedOutput: testCase.ExpectedOutput,
			Hidden:         testCase.Hidden,
		})
	}
	return cases
}

func isPrivilegedRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role == "teacher" || role == "admin"
}
