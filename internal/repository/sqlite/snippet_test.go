package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
)

// newTestDB opens a fresh in-memory database that is closed with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSnippet(t *testing.T, db *DB, name, code string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{Name: name, Code: code}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return snippet
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

// =========================================================================
// SNIPPET TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	snippet := &model.Snippet{Name: "Coercion", Code: "console.log([] + {})"}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if snippet.CreatedAt.IsZero() || snippet.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestSnippet(t, db, "fetch me", "return 42")

	found, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.ID != created.ID || found.Name != "fetch me" || found.Code != "return 42" {
		t.Errorf("GetByID() = %+v, want fields of %+v", found, created)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList_Empty(t *testing.T) {
	db := newTestDB(t)

	snippets, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if snippets == nil || len(snippets) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", snippets)
	}
}

func TestList_Pagination(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		createTestSnippet(t, db, "snippet", "console.log(1)")
	}

	tests := []struct {
		opts repository.ListOptions
		want int
	}{
		{repository.ListOptions{Limit: 2, Offset: 0}, 2},
		{repository.ListOptions{Limit: 2, Offset: 2}, 2},
		{repository.ListOptions{Limit: 2, Offset: 4}, 1},
		{repository.ListOptions{Limit: 2, Offset: -3}, 2},
	}
	seen := map[string]bool{}
	for _, tt := range tests[:3] {
		page, err := db.List(context.Background(), tt.opts)
		if err != nil {
			t.Fatalf("List(%+v) error = %v", tt.opts, err)
		}
		if len(page) != tt.want {
			t.Errorf("List(%+v) returned %d, want %d", tt.opts, len(page), tt.want)
		}
		for _, s := range page {
			if seen[s.ID] {
				t.Errorf("snippet %s appeared on two pages", s.ID)
			}
			seen[s.ID] = true
		}
	}

	page, err := db.List(context.Background(), tests[3].opts)
	if err != nil || len(page) != tests[3].want {
		t.Errorf("negative offset: got %d items, err %v", len(page), err)
	}
}

func TestList_DefaultLimit(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 25; i++ {
		createTestSnippet(t, db, "snippet", "1")
	}

	snippets, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snippets) != 20 {
		t.Errorf("List() default returned %d items, want 20", len(snippets))
	}
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	original := createTestSnippet(t, db, "original name", "console.log('v1')")

	original.Name = "updated name"
	original.Code = "console.log('v2')"
	original.Description = "now with a description"
	if err := db.Update(context.Background(), original); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := db.GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if found.Name != "updated name" || found.Code != "console.log('v2')" || found.Description != "now with a description" {
		t.Errorf("after update got %+v", found)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.Snippet{ID: "nonexistent", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	snippet := createTestSnippet(t, db, "to delete", "bye()")

	if err := db.Delete(context.Background(), snippet.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetByID(context.Background(), snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete: error = %v, want ErrNotFound", err)
	}
	if err := db.Delete(context.Background(), snippet.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
