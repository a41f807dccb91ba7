package service

import (
	"context"
	"errors"
	"testing"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProblem_CreatesSkeletonWithSlug(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := NewProblemService(repo)

	p, err := svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{
		Title:      "Longest Common Subsequence",
		Difficulty: model.DifficultyHard,
	})
	require.NoError(t, err)
	assert.Equal(t, "longest-common-subsequence", p.Slug)
	assert.Nil(t, p.Description, "seeded records start un-hydrated")
	assert.False(t, p.IsContentGenerated)
	require.NotNil(t, p.CreatedByID)
	assert.Equal(t, "admin-1", *p.CreatedByID)
}

func TestSeedProblem_DefaultsDifficulty(t *testing.T) {
	svc := NewProblemService(newFakeProblemRepo())

	p, err := svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{Title: "Two Sum"})
	require.NoError(t, err)
	assert.Equal(t, model.DifficultyMedium, p.Difficulty)
}

func TestSeedProblem_RejectsBadInput(t *testing.T) {
	svc := NewProblemService(newFakeProblemRepo())

	_, err := svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{Title: "X", Difficulty: "Impossible"})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestSeedProblem_DuplicateTitleConflicts(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := NewProblemService(repo)

	_, err := svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{Title: "Two Sum"})
	require.NoError(t, err)
	_, err = svc.SeedProblem(context.Background(), "admin-1", SeedProblemRequest{Title: "Two Sum"})
	assert.True(t, errors.Is(err, common.ErrConflict))
}
