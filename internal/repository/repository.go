// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite implements them.
package repository

import (
	"context"

	"github.com/sakif/jsmemes/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

// RunRepository stores execution records. Runs are append-only.
type RunRepository interface {
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRunsBySession(ctx context.Context, sessionID string, opts ListOptions) ([]model.Run, error)
}
