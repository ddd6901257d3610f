// Package service holds the business rules between the HTTP handlers (and
// CLI) and storage.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces rules, orchestrates
//	Repository      → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests inject
// hand-written mocks. They return apperror values; mapping those to status
// codes is the handler's job.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

const (
	MaxSnippetNameLength        = 100
	MaxSnippetDescriptionLength = 500
	DefaultListLimit            = 20
	MaxListLimit                = 100
)

// SnippetService handles saved snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new snippet.
//
// Code is held to the same length cap the executors enforce, so anything
// that can be saved can also be run. It is not checked against the denylist:
// saving a snippet that would be rejected is allowed, running it is not.
func (s *SnippetService) Create(ctx context.Context, name, code, description string) (*model.Snippet, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "snippet name is required")
	}
	if err := validateFields(name, code, description); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Name:        name,
		Code:        code,
		Description: description,
	}
	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
	)
	return snippet, nil
}

// GetByID returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	// NotFound is already an apperror; let it through as-is.
	return s.repo.GetByID(ctx, id)
}

// List returns a page of snippets, newest first. limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for zero.
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	snippets, err := s.repo.List(ctx, clampList(limit, offset))
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update replaces a snippet's fields. An empty name keeps the current one;
// code and description are always overwritten, so they can be cleared.
func (s *SnippetService) Update(ctx context.Context, id, name, code, description string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		snippet.Name = name
	}
	snippet.Code = code
	snippet.Description = strings.TrimSpace(description)

	if err := validateFields(snippet.Name, snippet.Code, snippet.Description); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
	)
	return snippet, nil
}

// Delete returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

func validateFields(name, code, description string) error {
	if utf8.RuneCountInString(name) > MaxSnippetNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}
	if utf8.RuneCountInString(description) > MaxSnippetDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxSnippetDescriptionLength))
	}
	if executor.SourceLength(code) > executor.MaxSourceLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", executor.MaxSourceLength))
	}
	return nil
}

func clampList(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}
