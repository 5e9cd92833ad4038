// Package viewer implements the document-viewer core: EPUB and PDF loading,
// TOC and metadata extraction, spine content resolution, and persistence of
// bookmarks, annotations and reading progress keyed by content hash.
package viewer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Metadata holds fields extracted from a loaded document. Unset fields stay
// at their zero value.
type Metadata struct {
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Creator     string     `json:"creator"`
	Publisher   string     `json:"publisher"`
	Language    string     `json:"language"`
	Description string     `json:"description"`
	Rights      string     `json:"rights"`
	Subject     string     `json:"subject"`
	Keywords    string     `json:"keywords"`
	Producer    string     `json:"producer"`
	Date        *time.Time `json:"date,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	PageCount   int        `json:"page_count"`
	FilePath    string     `json:"file_path"`
	FileHash    string     `json:"file_hash"`
	FileSize    int64      `json:"file_size"`
}

// TOCEntry is one navigable point. PDF outlines nest through Children;
// spine-derived EPUB entries are flat. Page is always zero-based.
type TOCEntry struct {
	Title    string     `json:"title"`
	Page     int        `json:"page"`
	Level    int        `json:"level"`
	Children []TOCEntry `json:"children,omitempty"`
}

// PageContent is a rendered page as returned to the dispatch and HTTP
// layers.
type PageContent struct {
	Content     string `json:"content"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
}

const hashChunkSize = 64 * 1024

// contentHash digests the full file in fixed-size chunks. The result
// depends only on content, never on path, so moved or renamed files keep
// their persisted records.
func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// bookmarkID derives the deterministic id for a bookmark from the document
// hash and a human-meaningful discriminator (EPUB: the locator; PDF:
// title and page). Re-adding the same semantic bookmark therefore merges
// instead of duplicating.
func bookmarkID(docHash, discriminator string) string {
	sum := sha256.Sum256([]byte(docHash + ":" + discriminator))
	return "bm_" + hex.EncodeToString(sum[:])[:16]
}

// newAnnotationID generates a fresh annotation id. Annotations have no
// semantic identity to derive from, so ids are random.
func newAnnotationID() string {
	return "an_" + uuid.NewString()
}

// positionPayload normalizes a caller-supplied position into stored JSON.
// Non-JSON input is kept as a JSON string rather than rejected; the payload
// is opaque to this layer.
func positionPayload(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
