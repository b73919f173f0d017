package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/config"
	"github.com/solvearc/solvearc-api/internal/dto"
	"github.com/solvearc/solvearc-api/internal/handler"
	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
	"github.com/solvearc/solvearc-api/internal/router"
	"github.com/solvearc/solvearc-api/internal/service"
	"github.com/solvearc/solvearc-api/pkg/judge"
)

type fixedJudge struct {
	report judge.ExecutionReport
	err    error
}

func (f *fixedJudge) Execute(_ context.Context, req judge.ExecutionRequest) (judge.ExecutionReport, error) {
	if f.err != nil {
		return judge.ExecutionReport{}, f.err
	}
	report := judge.ExecutionReport{AllPassed: true}
	for _, testCase := range req.TestCases {
		report.PerTest = append(report.PerTest, judge.TestResult{
			Passed:         true,
			Input:          testCase.Input,
			ExpectedOutput: testCase.ExpectedOutput,
			ActualOutput:   testCase.ExpectedOutput,
			RuntimeMs:      12,
			Hidden:         testCase.Hidden,
		})
	}
	return report, nil
}

func setupGradingApp(t *testing.T, asUser uint, role string) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	entities := []interface{}{
		&models.Problem{}, &models.TestCase{}, &models.ProblemSet{}, &models.ProblemInstance{},
		&models.Submission{}, &models.ProblemSetEnrollment{}, &models.EnrollmentCompletion{}, &models.ReconciliationTask{},
	}
	require.NoError(t, db.Migrator().DropTable(entities...))
	require.NoError(t, db.AutoMigrate(entities...))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	problemRepo := repository.NewProblemRepository(db)
	problemSetRepo := repository.NewProblemSetRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	outboxRepo := repository.NewReconciliationOutboxRepository(db)

	reconciler := service.NewReconcilerService(enrollmentRepo, nil, logger)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, problemSetRepo, outboxRepo, reconciler, &fixedJudge{}, nil, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, validate, logger),
		EnrollmentHandler: handler.NewEnrollmentHandler(reconciler, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", asUser)
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app, db
}

func seedProblem(t *testing.T, db *gorm.DB) models.Problem {
	t.Helper()
	problem := models.Problem{
		Title: "Sum",
		TestCases: []models.TestCase{
			{Position: 0, Input: "1 2", ExpectedOutput: "3"},
			{Position: 1, Input: "4 5", ExpectedOutput: "9", Hidden: true},
		},
	}
	require.NoError(t, db.Create(&problem).Error)
	return problem
}

func TestSubmissionEndpointGradesAndReturnsResult(t *testing.T) {
	app, db := setupGradingApp(t, 1, "student")
	problem := seedProblem(t, db)

	payload, err := json.Marshal(dto.SubmissionCreateRequest{ProblemID: problem.ID, Code: "print(a+b)", Language: "python"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool                         `json:"success"`
		Data    dto.SubmissionCreateResponse `json:"data"`
		Message string                       `json:"message"`
	}
	decodeGradingResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, "submission graded", created.Message)
	require.NotZero(t, created.Data.Submission.ID)
	require.Equal(t, models.SubmissionStatusAccepted, created.Data.Submission.Status)
	require.Equal(t, "100.00", created.Data.Submission.Score)
	require.Len(t, created.Data.TestResults, 2)
	require.Empty(t, created.Data.TestResults[1].Input, "hidden test content stays hidden")
}

func TestSubmissionEndpointIntoSetUpdatesEnrollment(t *testing.T) {
	app, db := setupGradingApp(t, 1, "student")
	problem := seedProblem(t, db)

	set := models.ProblemSet{
		Title: "Week 1",
		Instances: []models.ProblemInstance{
			{ProblemID: problem.ID, Position: 0},
			{ProblemID: problem.ID + 100, Position: 1},
		},
	}
	require.NoError(t, db.Create(&set).Error)

	payload, err := json.Marshal(dto.SubmissionCreateRequest{ProblemID: problem.ID, Code: "print(a+b)", Language: "python", ProblemSetID: &set.ID})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	enrollmentReq := httptest.NewRequest("GET", "/api/v1/problem-sets/"+strconv.FormatUint(uint64(set.ID), 10)+"/enrollment", nil)
	enrollmentResp, err := app.Test(enrollmentReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, enrollmentResp.StatusCode)

	var enrollment struct {
		Success bool                   `json:"success"`
		Data    dto.EnrollmentResponse `json:"data"`
	}
	decodeGradingResponse(t, enrollmentResp, &enrollment)
	require.Equal(t, int64(1), enrollment.Data.TotalSubmissions)
	require.Equal(t, int64(1), enrollment.Data.CorrectSubmissions)
	require.Equal(t, []uint{problem.ID}, enrollment.Data.CompletedProblems)
	require.Equal(t, 50, enrollment.Data.Progress)
}

func TestSubmissionEndpointUnknownProblemReturns404(t *testing.T) {
	app, _ := setupGradingApp(t, 1, "student")

	payload, err := json.Marshal(dto.SubmissionCreateRequest{ProblemID: 999, Code: "x", Language: "python"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionListScopesStudentsToTheirOwnRows(t *testing.T) {
	app, db := setupGradingApp(t, 1, "student")
	problem := seedProblem(t, db)

	mine := models.Submission{UserID: 1, ProblemID: problem.ID, Code: "a", Language: "python", Status: models.SubmissionStatusAccepted}
	theirs := models.Submission{UserID: 2, ProblemID: problem.ID, Code: "b", Language: "python", Status: models.SubmissionStatusAccepted}
	require.NoError(t, db.Create(&mine).Error)
	require.NoError(t, db.Create(&theirs).Error)

	req := httptest.NewRequest("GET", "/api/v1/submissions?user_id=2", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list struct {
		Success bool                     `json:"success"`
		Data    []dto.SubmissionResponse `json:"data"`
	}
	decodeGradingResponse(t, resp, &list)
	require.Len(t, list.Data, 1)
	require.Equal(t, uint(1), list.Data[0].UserID, "the user_id filter is ignored for students")
}

func TestEnrollmentEndpointMissingEnrollmentReturns404(t *testing.T) {
	app, _ := setupGradingApp(t, 1, "student")

	req := httptest.NewRequest("GET", "/api/v1/problem-sets/42/enrollment", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func decodeGradingResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}
