package bookmarks_test

import (
	"context"
	"errors"
	"testing"

	"archivist/internal/bookmarks"
	"archivist/internal/testsupport"
)

func newStore(t *testing.T) *bookmarks.Store {
	t.Helper()
	jobsStore := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return bookmarks.NewStore(jobsStore.DB())
}

func TestAddAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.Add(ctx, bookmarks.Bookmark{
		Identifier: "nasa-apollo11",
		Title:      "Apollo 11 Archive",
		MediaType:  "movies",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	err = store.Add(ctx, bookmarks.Bookmark{Identifier: "voyager-golden-record"})
	if err != nil {
		t.Fatalf("add second: %v", err)
	}

	marks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("len = %d, want 2", len(marks))
	}
	if marks[0].Identifier != "voyager-golden-record" {
		t.Fatalf("marks[0] = %q, want newest first", marks[0].Identifier)
	}
	if marks[1].Title != "Apollo 11 Archive" {
		t.Fatalf("title = %q", marks[1].Title)
	}
}

func TestAddUpsertsByIdentifier(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, bookmarks.Bookmark{Identifier: "item", Title: "old"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Add(ctx, bookmarks.Bookmark{Identifier: "item", Title: "new", Note: "check later"}); err != nil {
		t.Fatalf("add again: %v", err)
	}

	marks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("len = %d, want 1", len(marks))
	}
	if marks[0].Title != "new" || marks[0].Note != "check later" {
		t.Fatalf("bookmark = %+v, want refreshed fields", marks[0])
	}
}

func TestAddRequiresIdentifier(t *testing.T) {
	store := newStore(t)

	if err := store.Add(context.Background(), bookmarks.Bookmark{Identifier: "  "}); err == nil {
		t.Fatal("expected error for blank identifier")
	}
}

func TestRemove(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, bookmarks.Bookmark{Identifier: "item"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Remove(ctx, "item"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "item"); !errors.Is(err, bookmarks.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
