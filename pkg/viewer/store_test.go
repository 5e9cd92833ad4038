package viewer

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "viewer.db")
	store, err := OpenStore(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

const testHash = "deadbeef"

func TestUpsertBookmarkIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	bm := &Bookmark{ID: bookmarkID(testHash, "loc-1"), DocHash: testHash, Locator: "loc-1", Title: "first"}
	if err := store.UpsertBookmark(bm); err != nil {
		t.Fatal(err)
	}
	bm.Title = "renamed"
	if err := store.UpsertBookmark(bm); err != nil {
		t.Fatal(err)
	}

	got, err := store.Bookmarks(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("bookmark count = %d, want 1", len(got))
	}
	if got[0].Title != "renamed" {
		t.Errorf("title = %q, want renamed", got[0].Title)
	}
}

func TestUpsertBookmarkReportsPreservedCreatedAt(t *testing.T) {
	store, _ := newTestStore(t)

	bm := &Bookmark{ID: bookmarkID(testHash, "loc-1"), DocHash: testHash, Locator: "loc-1"}
	if err := store.UpsertBookmark(bm); err != nil {
		t.Fatal(err)
	}

	// Age the row so a merge demonstrably keeps the original timestamp.
	if _, err := store.db.Exec(
		`UPDATE bookmarks SET created_at = '2020-06-01T12:00:00Z' WHERE id = ?`, bm.ID); err != nil {
		t.Fatal(err)
	}

	if err := store.UpsertBookmark(bm); err != nil {
		t.Fatal(err)
	}
	if bm.CreatedAt.Year() != 2020 {
		t.Errorf("CreatedAt = %v, want the preserved 2020 timestamp", bm.CreatedAt)
	}
	if bm.ModifiedAt.Before(bm.CreatedAt) {
		t.Errorf("ModifiedAt = %v predates CreatedAt = %v", bm.ModifiedAt, bm.CreatedAt)
	}
}

func TestDeleteBookmarkCascades(t *testing.T) {
	store, _ := newTestStore(t)

	parent := &Bookmark{ID: "bm_parent", DocHash: testHash, Locator: "0", Title: "Part I"}
	child := &Bookmark{ID: "bm_child", DocHash: testHash, Locator: "3", Title: "Chapter 1", ParentID: "bm_parent"}
	grandchild := &Bookmark{ID: "bm_grand", DocHash: testHash, Locator: "5", Title: "Section 1.1", ParentID: "bm_child"}
	for _, bm := range []*Bookmark{parent, child, grandchild} {
		if err := store.UpsertBookmark(bm); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.DeleteBookmark("bm_parent")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected deletion to report true")
	}

	got, err := store.Bookmarks(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("bookmarks after cascade = %d, want 0", len(got))
	}

	deleted, err = store.DeleteBookmark("bm_parent")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("second delete should report false")
	}
}

func TestBookmarkTreeAssembly(t *testing.T) {
	store, _ := newTestStore(t)

	for _, bm := range []*Bookmark{
		{ID: "bm_a", DocHash: testHash, Locator: "0", Title: "A"},
		{ID: "bm_b", DocHash: testHash, Locator: "1", Title: "B", ParentID: "bm_a"},
		{ID: "bm_c", DocHash: testHash, Locator: "2", Title: "C", ParentID: "bm_a"},
		{ID: "bm_d", DocHash: testHash, Locator: "3", Title: "D"},
	} {
		if err := store.UpsertBookmark(bm); err != nil {
			t.Fatal(err)
		}
	}

	roots, err := store.BookmarkTree(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	if roots[0].ID != "bm_a" || len(roots[0].Children) != 2 {
		t.Errorf("root bm_a has %d children, want 2", len(roots[0].Children))
	}
	if roots[1].ID != "bm_d" || len(roots[1].Children) != 0 {
		t.Errorf("root bm_d = %+v", roots[1])
	}
}

func TestBookmarkTreeOrphanBecomesRoot(t *testing.T) {
	store, path := newTestStore(t)

	// A dangling parent reference cannot be inserted through the store
	// while foreign keys are on; write it with a raw connection the way a
	// damaged database would carry it.
	raw, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	_, err = raw.Exec(`
		INSERT INTO bookmarks (id, doc_hash, locator, title, note, parent_id, created_at, modified_at)
		VALUES ('bm_orphan', ?, '7', 'Orphan', '', 'bm_gone', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
	`, testHash)
	if err != nil {
		t.Fatal(err)
	}

	roots, err := store.BookmarkTree(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != "bm_orphan" {
		t.Fatalf("orphan should surface at root, got %+v", roots)
	}
}

func TestProgressClampAndAbsence(t *testing.T) {
	store, _ := newTestStore(t)

	if _, found, err := store.Progress(testHash); err != nil || found {
		t.Fatalf("expected no progress, found=%v err=%v", found, err)
	}

	p, err := store.UpsertProgress(testHash, "loc-3", -5)
	if err != nil {
		t.Fatal(err)
	}
	if p.Percentage != 0 {
		t.Errorf("percentage = %v, want clamp to 0", p.Percentage)
	}

	p, err = store.UpsertProgress(testHash, "loc-9", 150)
	if err != nil {
		t.Fatal(err)
	}
	if p.Percentage != 100 {
		t.Errorf("percentage = %v, want clamp to 100", p.Percentage)
	}

	got, found, err := store.Progress(testHash)
	if err != nil || !found {
		t.Fatalf("progress lookup: found=%v err=%v", found, err)
	}
	if got.Locator != "loc-9" || got.Percentage != 100 {
		t.Errorf("stored progress = %+v", got)
	}
}

func TestAnnotationLifecycle(t *testing.T) {
	store, _ := newTestStore(t)

	a := &Annotation{
		ID:       newAnnotationID(),
		DocHash:  testHash,
		Locator:  "loc-2",
		Type:     "highlight",
		Content:  "key passage",
		Color:    "#ffea00",
		Position: positionPayload(`{"start":10,"end":42}`),
	}
	if err := store.UpsertAnnotation(a); err != nil {
		t.Fatal(err)
	}

	list, err := store.Annotations(testHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Type != "highlight" || string(list[0].Position) != `{"start":10,"end":42}` {
		t.Fatalf("annotations = %+v", list)
	}

	removed, err := store.DeleteAnnotation(a.ID)
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.DeleteAnnotation(a.ID)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestStoreCloseIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
}
