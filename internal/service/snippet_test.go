package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

// mockSnippetRepo is an in-memory repository.SnippetRepository. The service
// can't tell it apart from sqlite.DB, which is the point.
type mockSnippetRepo struct {
	snippets map[string]*model.Snippet
	nextID   int
	failWith error // returned by every call when set
	lastList repository.ListOptions
}

func newMockRepo() *mockSnippetRepo {
	return &mockSnippetRepo{
		snippets: make(map[string]*model.Snippet),
	}
}

func (m *mockSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	snippet.ID = fmt.Sprintf("mock-%d", m.nextID)
	// Store a copy so later edits by the caller don't leak in.
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	snippet, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	result := *snippet
	return &result, nil
}

func (m *mockSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	m.lastList = opts
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([]model.Snippet, 0, len(m.snippets))
	for _, s := range m.snippets {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if opts.Offset >= len(result) {
		return []model.Snippet{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockSnippetRepo) Update(_ context.Context, snippet *model.Snippet) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(m.snippets, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestService creates a SnippetService backed by the mock repository.
func newTestService(t *testing.T) (*SnippetService, *mockSnippetRepo) {
	t.Helper()
	repo := newMockRepo()
	return NewSnippetService(repo, testLogger()), repo
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, _ := newTestService(t)

	snippet, err := svc.Create(context.Background(), "hello world", "console.log('hi')", "a test")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("expected snippet to have an ID")
	}
	if snippet.Name != "hello world" {
		t.Errorf("Name = %q, want %q", snippet.Name, "hello world")
	}
	if snippet.Code != "console.log('hi')" {
		t.Errorf("Code = %q, want %q", snippet.Code, "console.log('hi')")
	}
}

func TestCreate_TrimsWhitespace(t *testing.T) {
	svc, _ := newTestService(t)

	snippet, err := svc.Create(context.Background(), "  spaced out  ", "code", "  desc  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.Name != "spaced out" {
		t.Errorf("Name = %q, want trimmed %q", snippet.Name, "spaced out")
	}
	if snippet.Description != "desc" {
		t.Errorf("Description = %q, want trimmed %q", snippet.Description, "desc")
	}
}

func TestCreate_KeepsCodeVerbatim(t *testing.T) {
	svc, _ := newTestService(t)

	code := "\n  console.log(1)\n"
	snippet, err := svc.Create(context.Background(), "indent", code, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snippet.Code != code {
		t.Errorf("Code = %q, want untouched %q", snippet.Code, code)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		snippetName string
		code        string
		description string
	}{
		{"empty name", "", "code", ""},
		{"whitespace-only name", "   ", "code", ""},
		{"name too long", strings.Repeat("a", MaxSnippetNameLength+1), "code", ""},
		{"description too long", "ok", "code", strings.Repeat("d", MaxSnippetDescriptionLength+1)},
		{"code too long", "ok", strings.Repeat("x", executor.MaxSourceLength+1), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)

			_, err := svc.Create(context.Background(), tt.snippetName, tt.code, tt.description)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
			if len(repo.snippets) != 0 {
				t.Error("nothing should be stored when validation fails")
			}
		})
	}
}

func TestCreate_CodeAtLimit(t *testing.T) {
	svc, _ := newTestService(t)

	// Astral characters count twice toward the cap.
	code := strings.Repeat("😀", executor.MaxSourceLength/2)
	if _, err := svc.Create(context.Background(), "emoji", code, ""); err != nil {
		t.Fatalf("Create() at exactly the cap error = %v", err)
	}
	if _, err := svc.Create(context.Background(), "emoji", code+"a", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("one past the cap: error = %v, want ErrValidation", err)
	}
}

func TestCreate_DoesNotApplyDenylist(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), "risky", "fetch('/x')", ""); err != nil {
		t.Errorf("saving denylisted code should be allowed, got %v", err)
	}
}

func TestCreate_RepositoryError(t *testing.T) {
	svc, repo := newTestService(t)
	repo.failWith = errors.New("disk full")

	_, err := svc.Create(context.Background(), "name", "code", "")
	if err == nil {
		t.Fatal("Create() should surface repository errors")
	}
	if !errors.Is(err, repo.failWith) {
		t.Errorf("error = %v, want it to wrap %v", err, repo.failWith)
	}
}

// =========================================================================
// GET BY ID
// =========================================================================

func TestGetByID_Success(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "test", "code", "")
	if err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}

	found, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "test" {
		t.Errorf("Name = %q, want %q", found.Name, "test")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_EmptyID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestList_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	snippets, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snippets) != 0 {
		t.Errorf("List() returned %d items, want 0", len(snippets))
	}
}

func TestList_ClampsBadValues(t *testing.T) {
	tests := []struct {
		limit, offset int
		want          repository.ListOptions
	}{
		{0, 0, repository.ListOptions{Limit: DefaultListLimit}},
		{-5, -10, repository.ListOptions{Limit: DefaultListLimit}},
		{MaxListLimit + 1, 3, repository.ListOptions{Limit: MaxListLimit, Offset: 3}},
		{7, 2, repository.ListOptions{Limit: 7, Offset: 2}},
	}

	for _, tt := range tests {
		svc, repo := newTestService(t)
		if _, err := svc.List(context.Background(), tt.limit, tt.offset); err != nil {
			t.Fatalf("List(%d, %d) error = %v", tt.limit, tt.offset, err)
		}
		if repo.lastList != tt.want {
			t.Errorf("List(%d, %d) asked repo for %+v, want %+v", tt.limit, tt.offset, repo.lastList, tt.want)
		}
	}
}

func TestList_Paginates(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		if _, err := svc.Create(context.Background(), fmt.Sprintf("s%d", i), "code", ""); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	page, err := svc.List(context.Background(), 2, 4)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("List(2, 4) returned %d items, want 1", len(page))
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate_Success(t *testing.T) {
	svc, _ := newTestService(t)

	created, _ := svc.Create(context.Background(), "original", "old code", "old desc")

	updated, err := svc.Update(context.Background(), created.ID, "new name", "new code", "new desc")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Name != "new name" {
		t.Errorf("Name = %q, want %q", updated.Name, "new name")
	}
	if updated.Code != "new code" {
		t.Errorf("Code = %q, want %q", updated.Code, "new code")
	}
	if updated.Description != "new desc" {
		t.Errorf("Description = %q, want %q", updated.Description, "new desc")
	}
}

func TestUpdate_EmptyNameKeepsCurrent(t *testing.T) {
	svc, _ := newTestService(t)

	created, _ := svc.Create(context.Background(), "keep me", "old", "desc")

	updated, err := svc.Update(context.Background(), created.ID, "", "new", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "keep me" {
		t.Errorf("Name = %q, want %q", updated.Name, "keep me")
	}
	if updated.Description != "" {
		t.Errorf("Description = %q, want it cleared", updated.Description)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "nonexistent", "name", "code", "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_CodeTooLong(t *testing.T) {
	svc, repo := newTestService(t)

	created, _ := svc.Create(context.Background(), "s", "short", "")

	_, err := svc.Update(context.Background(), created.ID, "", strings.Repeat("x", executor.MaxSourceLength+1), "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if repo.snippets[created.ID].Code != "short" {
		t.Error("a rejected update must not reach the repository")
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_Success(t *testing.T) {
	svc, _ := newTestService(t)

	created, _ := svc.Create(context.Background(), "to delete", "code", "")
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := svc.GetByID(context.Background(), created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

func TestDelete_EmptyID(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
