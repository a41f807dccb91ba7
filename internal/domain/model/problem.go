package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

// Problem is the central content record. Skeleton records carry only
// identity and title; the description, starter code, test cases and hints
// are filled in exactly once by the content service on first access.
type Problem struct {
	ID                 string            `json:"id"`
	Slug               string            `json:"slug"`
	Title              string            `json:"title"`
	Description        *string           `json:"description,omitempty"`
	Difficulty         ProblemDifficulty `json:"difficulty"`
	StarterCode        map[string]string `json:"starter_code,omitempty"` // language slug -> snippet
	TestCases          []ProblemTestCase `json:"test_cases,omitempty"`
	Hints              []string          `json:"hints,omitempty"`
	IsContentGenerated bool              `json:"is_content_generated"`
	CreatedByID        *string           `json:"created_by_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type ProblemTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Hydrated reports whether the record already carries usable generated
// content. Hydration is monotonic: once a record passes this check the
// content service never regenerates it.
func (p *Problem) Hydrated(minDescriptionChars int) bool {
	return p.Description != nil && len(*p.Description) >= minDescriptionChars
}
