package docstore

import (
	"testing"
)

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)

	d, err := s.Create("notes")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := s.Get(d.ID)
	if !ok {
		t.Fatal("expected document to be found")
	}
	if got.Name != "notes" {
		t.Fatalf("Name = %q, want notes", got.Name)
	}
}

func TestCreateWithIDUsesGivenID(t *testing.T) {
	s := newTestStore(t)

	d, err := s.CreateWithID(42, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if d.ID != 42 {
		t.Fatalf("ID = %d, want 42", d.ID)
	}
	if _, ok := s.Get(42); !ok {
		t.Fatal("document 42 not found after CreateWithID")
	}
}

func TestCreateAfterCreateWithIDAvoidsCollision(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateWithID(5, "peer-doc"); err != nil {
		t.Fatal(err)
	}
	d, err := s.Create("local-doc")
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == 5 {
		t.Fatal("Create reused an ID already taken by CreateWithID")
	}
}

func TestUpdateUnknownDocumentErrors(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Update(999, "x"); err == nil {
		t.Fatal("expected error updating unknown document")
	}
}

func TestUpdatePersistsContent(t *testing.T) {
	s := newTestStore(t)
	d, _ := s.Create("doc")

	updated, err := s.Update(d.ID, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Content != "hello world" {
		t.Fatalf("Content = %q, want %q", updated.Content, "hello world")
	}
}

func TestListReturnsAllDocuments(t *testing.T) {
	s := newTestStore(t)
	s.Create("a")
	s.Create("b")

	summaries := s.List()
	if len(summaries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(summaries))
	}
}

func TestSnapshotThenReopenRecoversState(t *testing.T) {
	dir := t.TempDir()
	s := mustOpen(t, dir)
	d, _ := s.Create("doc")
	s.Update(d.ID, "content before snapshot")
	if err := s.Snapshot(); err != nil {
		t.Fatal(err)
	}
	s.Update(d.ID, "content after snapshot, before reopen")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := mustOpen(t, dir)
	defer reopened.Close()
	got, ok := reopened.Get(d.ID)
	if !ok {
		t.Fatal("document missing after reopen")
	}
	if got.Content != "content after snapshot, before reopen" {
		t.Fatalf("Content after reopen = %q", got.Content)
	}
}

func TestReplayWALWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := mustOpen(t, dir)
	d, _ := s.Create("doc")
	s.Update(d.ID, "v1")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := mustOpen(t, dir)
	defer reopened.Close()
	got, ok := reopened.Get(d.ID)
	if !ok || got.Content != "v1" {
		t.Fatalf("Get after reopen = %+v, ok=%v", got, ok)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return mustOpen(t, t.TempDir())
}

func mustOpen(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New(%s): %v", dir, err)
	}
	return s
}
