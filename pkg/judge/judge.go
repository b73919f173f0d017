package judge

import "context"

// Client defines the behaviour of the external code-execution judge. The
// judge compiles and runs submitted code against the supplied test cases and
// reports a per-test verdict; sandboxing and resource limits are its concern,
// not the caller's.
type Client interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionReport, error)
}

// TestCase is one input/expected-output pair handed to the judge.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
}

// ExecutionRequest describes one grading run.
type ExecutionRequest struct {
	Code          string     `json:"code"`
	Language      string     `json:"language"`
	TestCases     []TestCase `json:"test_cases"`
	TimeLimitMs   int        `json:"time_limit_ms,omitempty"`
	MemoryLimitKB int        `json:"memory_limit_kb,omitempty"`
}

// TestResult is the judge's verdict for a single test case.
type TestResult struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Error          string `json:"error"`
	RuntimeMs      int64  `json:"runtime_ms"`
	MemoryKB       int64  `json:"memory_kb"`
	Hidden         bool   `json:"hidden"`
}

// ExecutionReport summarises one grading run.
type ExecutionReport struct {
	PerTest   []TestResult `json:"per_test"`
	AllPassed bool         `json:"all_passed"`
}
