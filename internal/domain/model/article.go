package model

import (
	"time"
)

// SolutionArticle is the generated editorial for a problem. At most one
// article exists per problem; writes are upserts with last-write-wins.
type SolutionArticle struct {
	ID        string    `json:"id"`
	ProblemID string    `json:"problem_id"`
	Content   string    `json:"content"` // markdown
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
