// Package calibre provides read-only access to a Calibre library's
// metadata.db: search, book details, and format file location. It never
// writes to the Calibre schema.
package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

// OpenLibrary opens the metadata database inside a Calibre library
// directory. The connection is read-only; Calibre owns this schema.
func OpenLibrary(path string) (*DB, error) {
	dbPath := filepath.Join(path, "metadata.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// FormatPath resolves the on-disk file for a book in the given format
// (e.g. "EPUB", "PDF"). Paths in the data table are relative to the
// library root.
func FormatPath(ctx context.Context, db *DB, libraryPath string, bookID int, format string) (string, error) {
	format = strings.ToUpper(format)
	var bookPath, filename string
	err := db.QueryRowContext(ctx, `
		SELECT b.path, d.name
		FROM books b
		JOIN data d ON b.id = d.book
		WHERE b.id = ? AND d.format = ?
		LIMIT 1
	`, bookID, format).Scan(&bookPath, &filename)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no %s format for book %d", format, bookID)
	}
	if err != nil {
		return "", err
	}
	return filepath.Join(libraryPath, bookPath, filename+"."+strings.ToLower(format)), nil
}

// viewableFormats is the preference order for opening a book in the viewer.
var viewableFormats = []string{"EPUB", "PDF"}

// ViewableFormatPath picks the first format of a book the viewer supports.
func ViewableFormatPath(ctx context.Context, db *DB, libraryPath string, bookID int) (string, string, error) {
	for _, format := range viewableFormats {
		path, err := FormatPath(ctx, db, libraryPath, bookID, format)
		if err == nil {
			return path, format, nil
		}
	}
	return "", "", fmt.Errorf("book %d has no viewable format", bookID)
}
