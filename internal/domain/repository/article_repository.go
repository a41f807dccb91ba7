package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"
)

type ArticleRepository interface {
	FindByProblemID(ctx context.Context, problemID string) (*model.SolutionArticle, error)

	// Upsert writes the article keyed on problem_id, last-write-wins.
	Upsert(ctx context.Context, article *model.SolutionArticle) error
}

type pgArticleRepository struct {
	db *sql.DB
}

func NewPgArticleRepository(db *sql.DB) ArticleRepository {
	return &pgArticleRepository{db: db}
}

func (r *pgArticleRepository) FindByProblemID(ctx context.Context, problemID string) (*model.SolutionArticle, error) {
	query := `SELECT id, problem_id, content, created_at, updated_at
	          FROM solution_articles WHERE problem_id = $1`
	a := &model.SolutionArticle{}
	err := r.db.QueryRowContext(ctx, query, problemID).Scan(
		&a.ID, &a.ProblemID, &a.Content, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgArticleRepository.FindByProblemID: %w", err)
	}
	return a, nil
}

func (r *pgArticleRepository) Upsert(ctx context.Context, a *model.SolutionArticle) error {
	query := `INSERT INTO solution_articles (id, problem_id, content)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (problem_id)
	          DO UPDATE SET content = EXCLUDED.content, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.ProblemID, a.Content); err != nil {
		return fmt.Errorf("pgArticleRepository.Upsert: %w", err)
	}
	return nil
}
