package service

import (
	"context"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"
	"prepmate/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ProblemService covers the non-generated problem surface: seeding
// skeleton records and listing the catalog. Content resolution lives in
// ContentService.
type ProblemService struct {
	problemRepo repository.ProblemRepository
}

func NewProblemService(problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: problemRepo}
}

type SeedProblemRequest struct {
	Title      string                  `json:"title"`
	Difficulty model.ProblemDifficulty `json:"difficulty"`
}

// SeedProblem creates a skeleton record: identity and title only. The
// description, starter code, test cases and hints are generated lazily on
// the first candidate read.
func (s *ProblemService) SeedProblem(ctx context.Context, userID string, req SeedProblemRequest) (*model.Problem, error) {
	if req.Title == "" {
		return nil, common.Errorf("title is required: %w", common.ErrValidation)
	}
	switch req.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	case "":
		req.Difficulty = model.DifficultyMedium
	default:
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}

	problem := &model.Problem{
		ID:          uuid.NewString(),
		Slug:        slug.Make(req.Title),
		Title:       req.Title,
		Difficulty:  req.Difficulty,
		CreatedByID: &userID,
	}
	if err := s.problemRepo.CreateProblem(ctx, problem); err != nil {
		return nil, err // common.ErrConflict on duplicate slug
	}
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, page, pageSize int, difficulty model.ProblemDifficulty, searchTerm string) ([]model.Problem, int, error) {
	limit := pageSize
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	return s.problemRepo.ListProblems(ctx, limit, offset, difficulty, searchTerm)
}
