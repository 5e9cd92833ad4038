package calibre

import (
	"context"
	"database/sql"
	"fmt"
)

type BookDetails struct {
	Book
	Identifiers map[string]string `json:"identifiers"`
}

// GetBook returns the full record for one book id.
func GetBook(ctx context.Context, db *DB, id int) (*BookDetails, error) {
	var book BookDetails
	err := scanBook(db.QueryRowContext(ctx,
		`SELECT `+bookColumns+bookJoins+` WHERE b.id = ?`, id), &book.Book)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	// Size is the sum of stored format sizes.
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(uncompressed_size), 0)
		FROM data
		WHERE book = ?
	`, id).Scan(&book.Size)
	if err != nil {
		return nil, err
	}

	if err := loadRelations(ctx, db, &book.Book); err != nil {
		return nil, err
	}
	if book.Identifiers, err = identifiersForBook(ctx, db, id); err != nil {
		return nil, err
	}
	return &book, nil
}

func identifiersForBook(ctx context.Context, db *DB, bookID int) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT type, val
		FROM identifiers
		WHERE book = ?
	`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identifiers := make(map[string]string)
	for rows.Next() {
		var typ, val string
		if err := rows.Scan(&typ, &val); err != nil {
			return nil, err
		}
		identifiers[typ] = val
	}
	return identifiers, rows.Err()
}
