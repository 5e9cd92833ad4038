package calibre

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// newTestLibrary creates a library directory with a metadata.db covering the
// subset of Calibre's schema this package reads.
func newTestLibrary(t *testing.T) (string, *DB) {
	t.Helper()
	dir := t.TempDir()

	raw, err := sql.Open("sqlite3", "file:"+filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	schema := `
	CREATE TABLE books (
		id INTEGER PRIMARY KEY, title TEXT NOT NULL, series_index REAL NOT NULL DEFAULT 1.0,
		pubdate TEXT NOT NULL DEFAULT '', isbn TEXT NOT NULL DEFAULT '', path TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL DEFAULT '', last_modified TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
	CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
	CREATE TABLE series (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE books_series_link (id INTEGER PRIMARY KEY, book INTEGER, series INTEGER);
	CREATE TABLE publishers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE books_publishers_link (id INTEGER PRIMARY KEY, book INTEGER, publisher INTEGER);
	CREATE TABLE languages (id INTEGER PRIMARY KEY, lang_code TEXT NOT NULL);
	CREATE TABLE books_languages_link (id INTEGER PRIMARY KEY, book INTEGER, lang_code INTEGER);
	CREATE TABLE ratings (id INTEGER PRIMARY KEY, rating INTEGER NOT NULL);
	CREATE TABLE books_ratings_link (id INTEGER PRIMARY KEY, book INTEGER, rating INTEGER);
	CREATE TABLE comments (id INTEGER PRIMARY KEY, book INTEGER, text TEXT NOT NULL);
	CREATE TABLE data (id INTEGER PRIMARY KEY, book INTEGER, format TEXT NOT NULL,
		name TEXT NOT NULL, uncompressed_size INTEGER NOT NULL DEFAULT 0);
	CREATE TABLE identifiers (id INTEGER PRIMARY KEY, book INTEGER, type TEXT NOT NULL, val TEXT NOT NULL);
	`
	if _, err := raw.Exec(schema); err != nil {
		t.Fatal(err)
	}

	seed := `
	INSERT INTO books (id, title, series_index, pubdate, isbn, path, timestamp, last_modified) VALUES
		(1, 'Practical Sourdough', 1.0, '2021-03-15', '9780000000001', 'R. Baker/Practical Sourdough (1)', '2021-04-01', '2021-04-01'),
		(2, 'Trail Guide', 2.0, '2023-08-10', '', 'M. Walker/Trail Guide (2)', '2023-09-01', '2023-09-01');
	INSERT INTO authors (id, name) VALUES (1, 'R. Baker'), (2, 'M. Walker');
	INSERT INTO books_authors_link (book, author) VALUES (1, 1), (2, 2);
	INSERT INTO tags (id, name) VALUES (1, 'baking'), (2, 'outdoors');
	INSERT INTO books_tags_link (book, tag) VALUES (1, 1), (2, 2);
	INSERT INTO series (id, name) VALUES (1, 'Field Guides');
	INSERT INTO books_series_link (book, series) VALUES (2, 1);
	INSERT INTO publishers (id, name) VALUES (1, 'Crumb House');
	INSERT INTO books_publishers_link (book, publisher) VALUES (1, 1);
	INSERT INTO languages (id, lang_code) VALUES (1, 'eng');
	INSERT INTO books_languages_link (book, lang_code) VALUES (1, 1), (2, 1);
	INSERT INTO ratings (id, rating) VALUES (1, 8);
	INSERT INTO books_ratings_link (book, rating) VALUES (1, 1);
	INSERT INTO comments (book, text) VALUES (1, 'A hands-on bread book.');
	INSERT INTO data (book, format, name, uncompressed_size) VALUES
		(1, 'EPUB', 'Practical Sourdough - R. Baker', 1200),
		(1, 'PDF', 'Practical Sourdough - R. Baker', 3400),
		(2, 'PDF', 'Trail Guide - M. Walker', 2100);
	INSERT INTO identifiers (book, type, val) VALUES (1, 'isbn', '9780000000001'), (1, 'goodreads', '123456');
	`
	if _, err := raw.Exec(seed); err != nil {
		t.Fatal(err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := OpenLibrary(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return dir, db
}

func TestSearchMatchesTitleAuthorTag(t *testing.T) {
	_, db := newTestLibrary(t)
	ctx := context.Background()

	byTitle, err := Search(ctx, db, "sourdough")
	if err != nil {
		t.Fatal(err)
	}
	if byTitle.TotalNum != 1 || len(byTitle.Books) != 1 || byTitle.Books[0].ID != 1 {
		t.Fatalf("title search = %+v", byTitle)
	}
	book := byTitle.Books[0]
	if len(book.Authors) != 1 || book.Authors[0] != "R. Baker" {
		t.Errorf("authors = %v", book.Authors)
	}
	if len(book.Formats) != 2 {
		t.Errorf("formats = %v", book.Formats)
	}
	if book.Publisher != "Crumb House" || book.Language != "eng" || book.Rating != 8 {
		t.Errorf("book = %+v", book)
	}

	byAuthor, err := Search(ctx, db, "walker")
	if err != nil {
		t.Fatal(err)
	}
	if byAuthor.TotalNum != 1 || byAuthor.Books[0].ID != 2 {
		t.Fatalf("author search = %+v", byAuthor)
	}
	if byAuthor.Books[0].Series != "Field Guides" || byAuthor.Books[0].SeriesIndex != 2.0 {
		t.Errorf("series = %+v", byAuthor.Books[0])
	}

	byTag, err := Search(ctx, db, "outdoors")
	if err != nil {
		t.Fatal(err)
	}
	if byTag.TotalNum != 1 || byTag.Books[0].ID != 2 {
		t.Fatalf("tag search = %+v", byTag)
	}

	none, err := Search(ctx, db, "no such thing")
	if err != nil {
		t.Fatal(err)
	}
	if none.TotalNum != 0 || len(none.Books) != 0 {
		t.Fatalf("empty search = %+v", none)
	}
}

func TestGetBookDetails(t *testing.T) {
	_, db := newTestLibrary(t)

	book, err := GetBook(context.Background(), db, 1)
	if err != nil {
		t.Fatal(err)
	}
	if book.Title != "Practical Sourdough" {
		t.Errorf("Title = %q", book.Title)
	}
	if book.Size != 4600 {
		t.Errorf("Size = %d, want sum of format sizes", book.Size)
	}
	if book.Comments != "A hands-on bread book." {
		t.Errorf("Comments = %q", book.Comments)
	}
	if book.Identifiers["goodreads"] != "123456" || book.Identifiers["isbn"] != "9780000000001" {
		t.Errorf("Identifiers = %v", book.Identifiers)
	}

	if _, err := GetBook(context.Background(), db, 99); err == nil {
		t.Error("missing book should error")
	}
}

func TestFormatPathResolution(t *testing.T) {
	dir, db := newTestLibrary(t)
	ctx := context.Background()

	got, err := FormatPath(ctx, db, dir, 1, "epub")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "R. Baker/Practical Sourdough (1)", "Practical Sourdough - R. Baker.epub")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}

	if _, err := FormatPath(ctx, db, dir, 2, "EPUB"); err == nil {
		t.Error("missing format should error")
	}
}

func TestViewableFormatPreference(t *testing.T) {
	dir, db := newTestLibrary(t)
	ctx := context.Background()

	// Book 1 has both formats; EPUB wins.
	path, format, err := ViewableFormatPath(ctx, db, dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if format != "EPUB" || filepath.Ext(path) != ".epub" {
		t.Errorf("format = %q path = %q", format, path)
	}

	// Book 2 only has a PDF.
	_, format, err = ViewableFormatPath(ctx, db, dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if format != "PDF" {
		t.Errorf("format = %q", format)
	}

	if _, _, err := ViewableFormatPath(ctx, db, dir, 99); err == nil {
		t.Error("book without viewable format should error")
	}
}
