package calibre

import (
	"context"
	"database/sql"
	"strings"
)

type Book struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors"`
	Tags         []string `json:"tags"`
	Series       string   `json:"series"`
	SeriesIndex  float64  `json:"series_index"`
	Formats      []string `json:"formats"`
	Publisher    string   `json:"publisher"`
	PubDate      string   `json:"pubdate"`
	Isbn         string   `json:"isbn"`
	Language     string   `json:"language"`
	Size         int      `json:"size"`
	Rating       int      `json:"rating"`
	Comments     string   `json:"comments"`
	Timestamp    string   `json:"timestamp"`
	LastModified string   `json:"last_modified"`
}

type SearchResult struct {
	Books    []Book `json:"books"`
	TotalNum int    `json:"total_num"`
}

// bookColumns and bookJoins are shared between search and detail lookup so
// both scan the same shape.
const bookColumns = `b.id, b.title, s.name, b.series_index, p.name, b.pubdate,
	b.isbn, l.lang_code, r.rating, c.text, b.timestamp, b.last_modified`

const bookJoins = `
	FROM books b
	LEFT JOIN books_series_link bsl ON b.id = bsl.book
	LEFT JOIN series s ON bsl.series = s.id
	LEFT JOIN books_publishers_link bpl ON b.id = bpl.book
	LEFT JOIN publishers p ON bpl.publisher = p.id
	LEFT JOIN books_languages_link bll ON b.id = bll.book
	LEFT JOIN languages l ON bll.lang_code = l.id
	LEFT JOIN books_ratings_link brl ON b.id = brl.book
	LEFT JOIN ratings r ON brl.rating = r.id
	LEFT JOIN comments c ON b.id = c.book`

const searchJoins = bookJoins + `
	LEFT JOIN books_authors_link bal ON b.id = bal.book
	LEFT JOIN authors a ON bal.author = a.id
	LEFT JOIN books_tags_link btl ON b.id = btl.book
	LEFT JOIN tags t ON btl.tag = t.id`

const searchFilter = ` WHERE LOWER(b.title) LIKE ? OR LOWER(a.name) LIKE ? OR LOWER(t.name) LIKE ? OR LOWER(c.text) LIKE ?`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBook reads one bookColumns row, normalizing NULLs to zero values.
func scanBook(row rowScanner, book *Book) error {
	var series, publisher, language, comments sql.NullString
	var rating sql.NullInt32
	err := row.Scan(&book.ID, &book.Title, &series, &book.SeriesIndex, &publisher,
		&book.PubDate, &book.Isbn, &language, &rating,
		&comments, &book.Timestamp, &book.LastModified)
	if err != nil {
		return err
	}
	book.Series = series.String
	book.Publisher = publisher.String
	book.Language = language.String
	book.Comments = comments.String
	book.Rating = int(rating.Int32)
	return nil
}

// loadRelations fills the link-table fields of a scanned book.
func loadRelations(ctx context.Context, db *DB, book *Book) error {
	var err error
	if book.Authors, err = authorsForBook(ctx, db, book.ID); err != nil {
		return err
	}
	if book.Tags, err = tagsForBook(ctx, db, book.ID); err != nil {
		return err
	}
	if book.Formats, err = formatsForBook(ctx, db, book.ID); err != nil {
		return err
	}
	return nil
}

// Search matches the query case-insensitively against title, author names,
// tags and comments. Calibre's own search grammar is much richer; this
// covers the common lookups the tool layer needs.
func Search(ctx context.Context, db *DB, query string) (*SearchResult, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	args := []any{pattern, pattern, pattern, pattern}

	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT `+bookColumns+searchJoins+searchFilter, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		var book Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		if err := loadRelations(ctx, db, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var totalNum int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT b.id)`+searchJoins+searchFilter, args...).Scan(&totalNum)
	if err != nil {
		return nil, err
	}

	return &SearchResult{Books: books, TotalNum: totalNum}, nil
}

func authorsForBook(ctx context.Context, db *DB, bookID int) ([]string, error) {
	return stringColumn(ctx, db, `
		SELECT a.name
		FROM authors a
		JOIN books_authors_link bal ON a.id = bal.author
		WHERE bal.book = ?
		ORDER BY bal.id
	`, bookID)
}

func tagsForBook(ctx context.Context, db *DB, bookID int) ([]string, error) {
	return stringColumn(ctx, db, `
		SELECT t.name
		FROM tags t
		JOIN books_tags_link btl ON t.id = btl.tag
		WHERE btl.book = ?
		ORDER BY t.name
	`, bookID)
}

func formatsForBook(ctx context.Context, db *DB, bookID int) ([]string, error) {
	return stringColumn(ctx, db, `
		SELECT format
		FROM data
		WHERE book = ?
	`, bookID)
}

func stringColumn(ctx context.Context, db *DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
