package viewer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/benoute/calibre-viewer-mcp/pkg/pdfread"
)

// PDFViewer loads PDF documents through the internal reader. Locators are
// zero-based page numbers; bookmarks form a tree through ParentID.
type PDFViewer struct {
	session

	pageCount int
	toc       []TOCEntry
}

func NewPDFViewer(storePath string, log zerolog.Logger) *PDFViewer {
	return &PDFViewer{
		session: session{
			storePath: storePath,
			log:       log.With().Str("viewer", "pdf").Logger(),
		},
	}
}

func (v *PDFViewer) Format() Format {
	return FormatPDF
}

// Load parses the PDF at path, replacing any previously loaded document.
func (v *PDFViewer) Load(filePath string) error {
	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
		}
		return err
	}

	hash, err := contentHash(filePath)
	if err != nil {
		return err
	}

	reader, err := pdfread.ReadFile(filePath)
	if err != nil {
		return newFormatError(filePath, "unreadable pdf structure", err)
	}
	pages, err := reader.Pages()
	if err != nil {
		return newFormatError(filePath, "unreadable page tree", err)
	}

	if err := v.ensureStore(); err != nil {
		return err
	}

	v.pageCount = len(pages)
	v.toc = buildPDFTOC(reader.Outline(), v.pageCount)

	info := reader.Info()
	meta := Metadata{
		Title:     strings.TrimSpace(info.Title),
		Author:    strings.TrimSpace(info.Author),
		Creator:   strings.TrimSpace(info.Creator),
		Subject:   strings.TrimSpace(info.Subject),
		Keywords:  strings.TrimSpace(info.Keywords),
		Producer:  strings.TrimSpace(info.Producer),
		PageCount: v.pageCount,
		FilePath:  filePath,
		FileHash:  hash,
		FileSize:  stat.Size(),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	if d, ok := pdfread.ParseDate(info.CreationDate); ok {
		meta.Date = &d
	}
	if d, ok := pdfread.ParseDate(info.ModDate); ok {
		meta.Modified = &d
	}
	v.meta = &meta

	v.log.Info().Str("path", filePath).Str("hash", hash).Int("pages", v.pageCount).
		Msg("pdf loaded")
	return nil
}

// buildPDFTOC converts the native outline to TOC entries, mapping 1-based
// outline targets to the zero-based pages used everywhere internally. A
// document without an outline gets one flat entry per page.
func buildPDFTOC(outline []pdfread.OutlineItem, pageCount int) []TOCEntry {
	if len(outline) == 0 {
		toc := make([]TOCEntry, 0, pageCount)
		for i := 0; i < pageCount; i++ {
			toc = append(toc, TOCEntry{Title: fmt.Sprintf("Page %d", i+1), Page: i, Level: 1})
		}
		return toc
	}
	return convertOutline(outline, 1)
}

func convertOutline(items []pdfread.OutlineItem, level int) []TOCEntry {
	toc := make([]TOCEntry, 0, len(items))
	for _, item := range items {
		page := item.Page - 1
		if page < 0 {
			page = 0
		}
		entry := TOCEntry{Title: item.Title, Page: page, Level: level}
		if len(item.Children) > 0 {
			entry.Children = convertOutline(item.Children, level+1)
		}
		toc = append(toc, entry)
	}
	return toc
}

func (v *PDFViewer) TOC() ([]TOCEntry, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	return v.toc, nil
}

// Page validates the index and reports page position. Content rendering is
// a client concern for PDF; the payload carries no markup.
func (v *PDFViewer) Page(index int) (*PageContent, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	if index < 0 || index >= v.pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageNotFound, index, v.pageCount)
	}
	return &PageContent{CurrentPage: index, TotalPages: v.pageCount}, nil
}

// Bookmarks returns the bookmark hierarchy, orphaned parent references
// settling at root level.
func (v *PDFViewer) Bookmarks() ([]*Bookmark, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	return v.store.BookmarkTree(v.meta.FileHash)
}

// AddBookmark upserts a bookmark for a page. The id derives from the
// document hash plus title and page, so re-adding the same pair merges.
func (v *PDFViewer) AddBookmark(req BookmarkRequest) (*Bookmark, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("bookmark title is required")
	}
	if req.Page < 0 || req.Page >= v.pageCount {
		return nil, fmt.Errorf("bookmark page %d out of range [0,%d)", req.Page, v.pageCount)
	}
	bm := &Bookmark{
		ID:       bookmarkID(v.meta.FileHash, req.Title+":"+strconv.Itoa(req.Page)),
		DocHash:  v.meta.FileHash,
		Locator:  strconv.Itoa(req.Page),
		Title:    req.Title,
		Note:     req.Note,
		ParentID: req.ParentID,
	}
	if err := v.store.UpsertBookmark(bm); err != nil {
		return nil, err
	}
	return bm, nil
}

// Close resets to Unloaded; persisted records survive. Idempotent.
func (v *PDFViewer) Close() error {
	v.pageCount = 0
	v.toc = nil
	return v.reset()
}
