package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ProblemSet is a named, ordered collection of problem instances assigned to
// enrolled users. The number of instances is the denominator for enrollment
// progress.
type ProblemSet struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	DueDate     *time.Time        `json:"due_date"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Instances   []ProblemInstance `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"instances"`
}

// TotalProblems returns the progress denominator for the set.
func (ps ProblemSet) TotalProblems() int {
	return len(ps.Instances)
}

// ProblemInstance is a possibly-customized copy of a canonical problem
// embedded in a problem set. Its own id is addressable by clients; the indexed
// ProblemSetID column doubles as the reverse index from instance to owning
// set, so slot resolution never scans sets.
type ProblemInstance struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ProblemSetID uint           `gorm:"not null;index" json:"problem_set_id"`
	ProblemID    uint           `gorm:"not null;index" json:"problem_id"`
	Position     int            `gorm:"not null;default:0" json:"position"`
	CustomTitle  string         `gorm:"size:255" json:"custom_title"`
	CustomTests  datatypes.JSON `json:"custom_tests"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HasCustomTests reports whether the instance overrides the canonical test cases.
func (pi ProblemInstance) HasCustomTests() bool {
	return len(pi.CustomTests) > 0 && string(pi.CustomTests) != "null" && string(pi.CustomTests) != "[]"
}

// InstanceTestCase is the shape of one customized test case stored on a
// problem instance.
type InstanceTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
}

// DecodeTests unmarshals the instance's customized test cases.
func (pi ProblemInstance) DecodeTests() ([]InstanceTestCase, error) {
	if !pi.HasCustomTests() {
		return nil, nil
	}
	var tests []InstanceTestCase
	if err := json.Unmarshal(pi.CustomTests, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}
