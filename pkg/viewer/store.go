package viewer

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Bookmark is a named save point in a document. PDF bookmarks nest via
// ParentID; EPUB bookmarks are flat and keep ParentID empty.
type Bookmark struct {
	ID         string      `json:"id"`
	DocHash    string      `json:"doc_hash"`
	Locator    string      `json:"locator"`
	Title      string      `json:"title,omitempty"`
	Note       string      `json:"note,omitempty"`
	ParentID   string      `json:"parent_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ModifiedAt time.Time   `json:"modified_at"`
	Children   []*Bookmark `json:"children,omitempty"`
}

// Annotation is a typed span or point within a document, independent of
// bookmarks. Position is an opaque format-specific payload.
type Annotation struct {
	ID         string          `json:"id"`
	DocHash    string          `json:"doc_hash"`
	Locator    string          `json:"locator"`
	Type       string          `json:"type"`
	Content    string          `json:"content,omitempty"`
	Color      string          `json:"color,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
}

// ReadingProgress is the single per-document progress record.
type ReadingProgress struct {
	DocHash    string    `json:"doc_hash"`
	Locator    string    `json:"locator"`
	Percentage float64   `json:"percentage"`
	LastRead   time.Time `json:"last_read"`
}

// Store persists bookmarks, annotations and reading progress in an
// embedded sqlite database keyed by document content hash. All writes are
// idempotent upserts.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id          TEXT PRIMARY KEY,
	doc_hash    TEXT NOT NULL,
	locator     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	note        TEXT NOT NULL DEFAULT '',
	parent_id   TEXT REFERENCES bookmarks(id) ON DELETE CASCADE,
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS annotations (
	id          TEXT PRIMARY KEY,
	doc_hash    TEXT NOT NULL,
	locator     TEXT NOT NULL,
	type        TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	position    TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reading_progress (
	doc_hash   TEXT PRIMARY KEY,
	locator    TEXT NOT NULL DEFAULT '',
	percentage REAL NOT NULL DEFAULT 0,
	last_read  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookmarks_doc_hash ON bookmarks(doc_hash);
CREATE INDEX IF NOT EXISTS idx_annotations_doc_hash ON annotations(doc_hash);
`

// OpenStore opens (and if needed initializes) the record store at path.
// Foreign keys stay enabled so deleting a PDF bookmark cascades to its
// descendants.
func OpenStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}, nil
}

// Close releases the database connection. Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) UpsertBookmark(bm *Bookmark) error {
	now := time.Now().UTC()
	bm.ModifiedAt = now
	_, err := s.db.Exec(`
		INSERT INTO bookmarks (id, doc_hash, locator, title, note, parent_id, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			locator = excluded.locator,
			title = excluded.title,
			note = excluded.note,
			parent_id = excluded.parent_id,
			modified_at = excluded.modified_at
	`, bm.ID, bm.DocHash, bm.Locator, bm.Title, bm.Note, nullable(bm.ParentID),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return err
	}

	// On a merge the conflict clause keeps the original created_at; read it
	// back so the returned struct reports what the row holds.
	var created string
	if err := s.db.QueryRow(`SELECT created_at FROM bookmarks WHERE id = ?`, bm.ID).Scan(&created); err != nil {
		return err
	}
	bm.CreatedAt, _ = time.Parse(time.RFC3339, created)

	s.log.Debug().Str("bookmark_id", bm.ID).Str("doc_hash", bm.DocHash).Msg("bookmark upserted")
	return nil
}

// DeleteBookmark removes a bookmark row. Descendants go with it through
// the foreign-key cascade. A missing id is not an error: the boolean
// reports whether a row was deleted.
func (s *Store) DeleteBookmark(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Bookmarks returns the flat bookmark list for a document, oldest first.
func (s *Store) Bookmarks(docHash string) ([]*Bookmark, error) {
	rows, err := s.db.Query(`
		SELECT id, doc_hash, locator, title, note, parent_id, created_at, modified_at
		FROM bookmarks
		WHERE doc_hash = ?
		ORDER BY created_at, id
	`, docHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := make([]*Bookmark, 0)
	for rows.Next() {
		var bm Bookmark
		var parent sql.NullString
		var created, modified string
		if err := rows.Scan(&bm.ID, &bm.DocHash, &bm.Locator, &bm.Title, &bm.Note,
			&parent, &created, &modified); err != nil {
			return nil, err
		}
		bm.ParentID = parent.String
		bm.CreatedAt, _ = time.Parse(time.RFC3339, created)
		bm.ModifiedAt, _ = time.Parse(time.RFC3339, modified)
		bookmarks = append(bookmarks, &bm)
	}
	return bookmarks, rows.Err()
}

// BookmarkTree assembles the parent/child hierarchy in two passes: an
// id-keyed map first, then child attachment by lookup. A bookmark whose
// parent id matches no row is kept as a root node.
func (s *Store) BookmarkTree(docHash string) ([]*Bookmark, error) {
	flat, err := s.Bookmarks(docHash)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Bookmark, len(flat))
	for _, bm := range flat {
		byID[bm.ID] = bm
	}

	roots := make([]*Bookmark, 0, len(flat))
	for _, bm := range flat {
		if bm.ParentID == "" {
			roots = append(roots, bm)
			continue
		}
		parent, ok := byID[bm.ParentID]
		if !ok {
			s.log.Debug().Str("bookmark_id", bm.ID).Str("parent_id", bm.ParentID).
				Msg("dangling parent reference, keeping bookmark at root")
			roots = append(roots, bm)
			continue
		}
		parent.Children = append(parent.Children, bm)
	}
	return roots, nil
}

func (s *Store) UpsertAnnotation(a *Annotation) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.ModifiedAt = now
	if len(a.Position) == 0 {
		a.Position = json.RawMessage("{}")
	}
	_, err := s.db.Exec(`
		INSERT INTO annotations (id, doc_hash, locator, type, content, color, position, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			locator = excluded.locator,
			type = excluded.type,
			content = excluded.content,
			color = excluded.color,
			position = excluded.position,
			modified_at = excluded.modified_at
	`, a.ID, a.DocHash, a.Locator, a.Type, a.Content, a.Color, string(a.Position),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	return err
}

func (s *Store) DeleteAnnotation(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Annotations(docHash string) ([]Annotation, error) {
	rows, err := s.db.Query(`
		SELECT id, doc_hash, locator, type, content, color, position, created_at, modified_at
		FROM annotations
		WHERE doc_hash = ?
		ORDER BY created_at, id
	`, docHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	annotations := make([]Annotation, 0)
	for rows.Next() {
		var a Annotation
		var position, created, modified string
		if err := rows.Scan(&a.ID, &a.DocHash, &a.Locator, &a.Type, &a.Content,
			&a.Color, &position, &created, &modified); err != nil {
			return nil, err
		}
		a.Position = json.RawMessage(position)
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		a.ModifiedAt, _ = time.Parse(time.RFC3339, modified)
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// UpsertProgress writes the per-document progress record. The percentage
// is clamped to [0,100] here, at write time; reads trust stored values.
func (s *Store) UpsertProgress(docHash, locator string, percentage float64) (ReadingProgress, error) {
	clamped := clampPercentage(percentage)
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO reading_progress (doc_hash, locator, percentage, last_read)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_hash) DO UPDATE SET
			locator = excluded.locator,
			percentage = excluded.percentage,
			last_read = excluded.last_read
	`, docHash, locator, clamped, now.Format(time.RFC3339))
	if err != nil {
		return ReadingProgress{}, err
	}
	return ReadingProgress{DocHash: docHash, Locator: locator, Percentage: clamped, LastRead: now}, nil
}

// Progress returns the stored record, or ok=false when none exists.
func (s *Store) Progress(docHash string) (ReadingProgress, bool, error) {
	var p ReadingProgress
	var lastRead string
	err := s.db.QueryRow(`
		SELECT doc_hash, locator, percentage, last_read
		FROM reading_progress
		WHERE doc_hash = ?
	`, docHash).Scan(&p.DocHash, &p.Locator, &p.Percentage, &lastRead)
	if err == sql.ErrNoRows {
		return ReadingProgress{}, false, nil
	}
	if err != nil {
		return ReadingProgress{}, false, err
	}
	p.LastRead, _ = time.Parse(time.RFC3339, lastRead)
	return p, true, nil
}

func clampPercentage(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
