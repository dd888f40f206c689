package postgres

import (
	"context"
	"database/sql"
	"errors"

	"voicebook/internal/model"
	"voicebook/internal/repository"
)

// RunPostgres is a PostgreSQL implementation of repository.RunRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RunPostgres struct {
	db *sql.DB
}

// NewRunPostgres creates a new RunPostgres repository.
func NewRunPostgres(db *sql.DB) *RunPostgres {
	return &RunPostgres{db: db}
}

var _ repository.RunRepository = (*RunPostgres)(nil)

const runColumns = `id, mode, document_file, audio_file, output_file, response_text, status, error_message, created_at, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var r model.Run
	if err := s.Scan(
		&r.ID,
		&r.Mode,
		&r.DocumentFile,
		&r.AudioFile,
		&r.OutputFile,
		&r.ResponseText,
		&r.Status,
		&r.ErrorMessage,
		&r.CreatedAt,
		&r.DurationMs,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new run row and returns the stored record.
func (r *RunPostgres) Create(ctx context.Context, run *model.Run) (*model.Run, error) {
	const q = `
		INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + runColumns
	row := r.db.QueryRowContext(ctx, q,
		run.ID,
		run.Mode,
		run.DocumentFile,
		run.AudioFile,
		run.OutputFile,
		run.ResponseText,
		run.Status,
		run.ErrorMessage,
		run.CreatedAt,
		run.DurationMs,
	)
	return scanRun(row)
}

// FindByID fetches a single run by its ID.
func (r *RunPostgres) FindByID(ctx context.Context, id string) (*model.Run, error) {
	const q = `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	return run, err
}

// List returns runs using LIMIT/OFFSET pagination and a total count.
func (r *RunPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Run], error) {
	const qCount = `SELECT COUNT(*) FROM pipeline_runs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + runColumns + `
		FROM pipeline_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Run]{
		Items: items,
		Total: total,
	}, nil
}
