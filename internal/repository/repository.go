// Package repository contains data access layer abstractions.
// Implementations can live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	"context"
	"errors"

	"voicebook/internal/model"
)

// ErrRunNotFound is returned when no journal entry matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunRepository journals pipeline runs. It records executions, never file metadata:
// filenames in the File Store stay the only description of stored files.
type RunRepository interface {
	// Create inserts a run row and returns the stored record.
	Create(ctx context.Context, run *model.Run) (*model.Run, error)

	// FindByID returns a run by its ID, or ErrRunNotFound.
	FindByID(ctx context.Context, id string) (*model.Run, error)

	// List returns a page of runs, newest first, with the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Run], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}

// NopRuns is used when no database is configured. Runs are accepted and forgotten.
type NopRuns struct{}

var _ RunRepository = NopRuns{}

func (NopRuns) Create(_ context.Context, run *model.Run) (*model.Run, error) {
	return run, nil
}

func (NopRuns) FindByID(context.Context, string) (*model.Run, error) {
	return nil, ErrRunNotFound
}

func (NopRuns) List(context.Context, PageQuery) (*PageResult[model.Run], error) {
	return &PageResult[model.Run]{Items: []model.Run{}}, nil
}
