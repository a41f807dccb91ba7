package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prepmate/internal/common"
	"prepmate/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, searchTerm string) ([]model.Problem, int, error)

	// SaveGeneratedContent persists the generated fields for a skeleton
	// record. The write is conditional on is_content_generated = FALSE so a
	// hydrated record is never downgraded; re-entrant calls are no-ops.
	SaveGeneratedContent(ctx context.Context, problem *model.Problem) error
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	starterCode, err := json.Marshal(p.StarterCode)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem marshal starter code: %w", err)
	}
	testCases, err := json.Marshal(p.TestCases)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem marshal test cases: %w", err)
	}
	hints, err := json.Marshal(p.Hints)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem marshal hints: %w", err)
	}

	query := `INSERT INTO problems (id, slug, title, description, difficulty, starter_code, test_cases, hints, is_content_generated, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.ExecContext(ctx, query, p.ID, p.Slug, p.Title, p.Description, p.Difficulty, starterCode, testCases, hints, p.IsContentGenerated, p.CreatedByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

const problemColumns = `id, slug, title, description, difficulty, starter_code, test_cases, hints, is_content_generated, created_by, created_at, updated_at`

func (r *pgProblemRepository) scanProblem(row *sql.Row) (*model.Problem, error) {
	p := &model.Problem{}
	var starterCode, testCases, hints []byte
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Description, &p.Difficulty,
		&starterCode, &testCases, &hints,
		&p.IsContentGenerated, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(starterCode) > 0 {
		if err := json.Unmarshal(starterCode, &p.StarterCode); err != nil {
			return nil, fmt.Errorf("unmarshal starter code: %w", err)
		}
	}
	if len(testCases) > 0 {
		if err := json.Unmarshal(testCases, &p.TestCases); err != nil {
			return nil, fmt.Errorf("unmarshal test cases: %w", err)
		}
	}
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &p.Hints); err != nil {
			return nil, fmt.Errorf("unmarshal hints: %w", err)
		}
	}
	return p, nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE id = $1`
	p, err := r.scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE slug = $1`
	p, err := r.scanProblem(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, searchTerm string) ([]model.Problem, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`SELECT id, slug, title, difficulty, is_content_generated, created_at, updated_at FROM problems`)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(*) FROM problems`)

	var conditions []string
	var args []interface{}
	argID := 1

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}

	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR slug ILIKE $%d)", argID, argID+1))
		likeTerm := "%" + searchTerm + "%"
		args = append(args, likeTerm, likeTerm)
		argID += 2
	}

	if len(conditions) > 0 {
		whereClause := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery.WriteString(whereClause)
		countQuery.WriteString(whereClause)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Difficulty, &p.IsContentGenerated, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}

	return problems, total, nil
}

func (r *pgProblemRepository) SaveGeneratedContent(ctx context.Context, p *model.Problem) error {
	starterCode, err := json.Marshal(p.StarterCode)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SaveGeneratedContent marshal starter code: %w", err)
	}
	testCases, err := json.Marshal(p.TestCases)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SaveGeneratedContent marshal test cases: %w", err)
	}
	hints, err := json.Marshal(p.Hints)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SaveGeneratedContent marshal hints: %w", err)
	}

	// The guard keeps hydration monotonic under concurrent generation.
	query := `UPDATE problems SET
	            description = $1, starter_code = $2, test_cases = $3, hints = $4,
	            is_content_generated = TRUE, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5 AND is_content_generated = FALSE`
	_, err = r.db.ExecContext(ctx, query, p.Description, starterCode, testCases, hints, p.ID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SaveGeneratedContent: %w", err)
	}
	return nil
}
