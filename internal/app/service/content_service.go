package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"prepmate/internal/common"
	"prepmate/internal/common/llmtext"
	"prepmate/internal/domain/model"
	"prepmate/internal/domain/repository"
	"prepmate/internal/platform/llm"

	"github.com/google/uuid"
)

// Locker guards the outbound generation call per slug. Nil-able; without
// one the service still works, it just tolerates duplicate generations.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

// ContentService fills skeleton problem records and solution articles on
// first access. Consumers always get some usable value back: generated
// content when everything works, the stored skeleton when it does not.
type ContentService struct {
	problemRepo repository.ProblemRepository
	articleRepo repository.ArticleRepository
	gateway     llm.Gateway
	locker      Locker

	minDescriptionChars int
}

func NewContentService(
	problemRepo repository.ProblemRepository,
	articleRepo repository.ArticleRepository,
	gateway llm.Gateway,
	locker Locker,
	minDescriptionChars int,
) *ContentService {
	return &ContentService{
		problemRepo:         problemRepo,
		articleRepo:         articleRepo,
		gateway:             gateway,
		locker:              locker,
		minDescriptionChars: minDescriptionChars,
	}
}

// generatedProblemContent is the JSON shape requested from the provider.
type generatedProblemContent struct {
	Description string                  `json:"description"`
	StarterCode map[string]string       `json:"starter_code"`
	TestCases   []model.ProblemTestCase `json:"test_cases"`
	Hints       []string                `json:"hints"`
}

// ResolveProblem returns the problem for slug, generating its content on
// first access. A hydrated record is returned unchanged with no outbound
// call. Every generation-path failure degrades to the stored skeleton;
// the only errors surfaced are ErrNotFound and store read failures.
func (s *ContentService) ResolveProblem(ctx context.Context, problemSlug string) (*model.Problem, error) {
	if problemSlug == "" {
		return nil, common.Errorf("empty slug: %w", common.ErrValidation)
	}

	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err // common.ErrNotFound or store failure
	}

	if problem.Hydrated(s.minDescriptionChars) {
		return problem, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, problemSlug)
		if err != nil {
			// Lock backend down: proceed unguarded, duplicate generation
			// is wasteful but harmless.
			log.Printf("WARN: generation lock unavailable for %s: %v", problemSlug, err)
		} else if !ok {
			// Another request is already generating; serve the skeleton
			// rather than pay for a second call.
			log.Printf("INFO: generation already in flight for %s, serving skeleton", problemSlug)
			return problem, nil
		} else {
			defer release()
		}
	}

	generated, ok := s.generateProblemContent(ctx, problem)
	if !ok {
		return problem, nil
	}

	desc := generated.Description
	problem.Description = &desc
	problem.StarterCode = generated.StarterCode
	problem.TestCases = generated.TestCases
	problem.Hints = generated.Hints
	problem.IsContentGenerated = true

	if err := s.problemRepo.SaveGeneratedContent(ctx, problem); err != nil {
		// The content is already in hand; the next cold request retries
		// the persistence by regenerating.
		log.Printf("ERROR: failed to persist generated content for %s: %v", problemSlug, err)
	}
	return problem, nil
}

// generateProblemContent performs the single outbound call and the
// two-stage parse. ok is false on any failure; failures are logged, not
// returned, per the serve-partial-rather-than-fail policy.
func (s *ContentService) generateProblemContent(ctx context.Context, problem *model.Problem) (*generatedProblemContent, bool) {
	prompt := fmt.Sprintf(problemContentPromptTemplate, problem.Title, problem.Difficulty)
	raw, err := s.gateway.Generate(ctx, problemContentSystemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		log.Printf("WARN: content generation failed for %s: %v", problem.Slug, err)
		return nil, false
	}

	span, ok := llmtext.ExtractObject(raw)
	if !ok {
		log.Printf("WARN: no JSON object in generated content for %s", problem.Slug)
		return nil, false
	}

	var generated generatedProblemContent
	if err := llmtext.Decode(span, &generated); err != nil {
		log.Printf("WARN: unparsable generated content for %s: %v", problem.Slug, err)
		return nil, false
	}

	if strings.TrimSpace(generated.Description) == "" {
		log.Printf("WARN: generated content for %s missing description", problem.Slug)
		return nil, false
	}
	return &generated, true
}

// ResolveArticle returns the solution article for the problem with the
// given slug, generating and caching it on first access. Unlike problem
// content there is no partial record to fall back on, so a failed first
// generation surfaces as ErrServiceUnavailable.
func (s *ContentService) ResolveArticle(ctx context.Context, problemSlug string) (*model.SolutionArticle, error) {
	if problemSlug == "" {
		return nil, common.Errorf("empty slug: %w", common.ErrValidation)
	}

	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err
	}

	article, err := s.articleRepo.FindByProblemID(ctx, problem.ID)
	if err == nil {
		return article, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		log.Printf("WARN: article lookup failed for %s, regenerating: %v", problemSlug, err)
	}

	description := ""
	if problem.Description != nil {
		description = *problem.Description
	}
	prompt := fmt.Sprintf(articlePromptTemplate, problem.Title, description)
	raw, genErr := s.gateway.Generate(ctx, articleSystemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if genErr != nil {
		return nil, common.Errorf("article generation for %s: %v: %w", problemSlug, genErr, common.ErrServiceUnavailable)
	}

	content := llmtext.StripFences(raw)
	if strings.TrimSpace(content) == "" {
		return nil, common.Errorf("empty article generated for %s: %w", problemSlug, common.ErrServiceUnavailable)
	}

	article = &model.SolutionArticle{
		ID:        uuid.NewString(),
		ProblemID: problem.ID,
		Content:   content,
	}
	if err := s.articleRepo.Upsert(ctx, article); err != nil {
		// Serve the article anyway; the cache write retries next time.
		log.Printf("ERROR: failed to persist article for %s: %v", problemSlug, err)
	}
	return article, nil
}
