package models

import "time"

// Problem is a canonical practice problem with its own test cases.
type Problem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Difficulty    string     `gorm:"size:32" json:"difficulty"`
	TimeLimitMs   int        `gorm:"default:2000" json:"time_limit_ms"`
	MemoryLimitKB int        `gorm:"default:262144" json:"memory_limit_kb"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	TestCases     []TestCase `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_cases"`
}

// TestCase is one input/expected-output pair attached to a canonical problem.
type TestCase struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ProblemID      uint   `gorm:"not null;index" json:"problem_id"`
	Position       int    `gorm:"not null;default:0" json:"position"`
	Input          string `gorm:"type:text" json:"input"`
	ExpectedOutput string `gorm:"type:text" json:"expected_output"`
	Hidden         bool   `gorm:"not null;default:false" json:"hidden"`
}
