package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gotree "github.com/disiqueira/gotree/v3"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/benoute/calibre-viewer-mcp/pkg/calibre"
	"github.com/benoute/calibre-viewer-mcp/pkg/viewer"
)

// resultCache memoizes library search results for a short window. It is
// owned by the app rather than living at package level so each server
// instance caches independently.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]resultCacheEntry
}

type resultCacheEntry struct {
	results   *calibre.SearchResult
	timestamp time.Time
}

const resultCacheTTL = time.Minute

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]resultCacheEntry)}
}

func (c *resultCache) get(key string) (*calibre.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Since(entry.timestamp) >= resultCacheTTL {
		return nil, false
	}
	return entry.results, true
}

func (c *resultCache) put(key string, results *calibre.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resultCacheEntry{results: results, timestamp: time.Now()}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

type searchBooksInput struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type searchBooksOutput struct {
	Results *calibre.SearchResult `json:"results"`
}

type getBookInput struct {
	ID int `json:"id"`
}

type openBookViewerInput struct {
	BookID int    `json:"book_id"`
	Format string `json:"format,omitempty"`
}

type openBookViewerOutput struct {
	BookID   int              `json:"book_id"`
	Format   string           `json:"format"`
	Metadata *viewer.Metadata `json:"metadata"`
}

type viewerInput struct {
	BookID int `json:"book_id"`
}

type getViewerTOCOutput struct {
	Entries []viewer.TOCEntry `json:"entries"`
}

type getPageContentInput struct {
	BookID int `json:"book_id"`
	Page   int `json:"page"`
}

type addBookmarkInput struct {
	BookID   int    `json:"book_id"`
	Locator  string `json:"locator,omitempty"`
	Title    string `json:"title,omitempty"`
	Page     int    `json:"page,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

type listBookmarksOutput struct {
	Bookmarks []*viewer.Bookmark `json:"bookmarks"`
}

type removeRecordInput struct {
	BookID int    `json:"book_id"`
	ID     string `json:"id"`
}

type removeRecordOutput struct {
	Removed bool `json:"removed"`
}

type updateProgressInput struct {
	BookID     int     `json:"book_id"`
	Locator    string  `json:"locator"`
	Percentage float64 `json:"percentage"`
}

type getProgressOutput struct {
	Progress *viewer.ReadingProgress `json:"progress,omitempty"`
	Found    bool                    `json:"found"`
}

type addAnnotationInput struct {
	BookID   int    `json:"book_id"`
	Locator  string `json:"locator"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Color    string `json:"color,omitempty"`
	Position string `json:"position,omitempty"`
}

type listAnnotationsOutput struct {
	Annotations []viewer.Annotation `json:"annotations"`
}

type searchContentInput struct {
	BookID int    `json:"book_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type searchContentOutput struct {
	Matches []viewer.TextMatch `json:"matches"`
}

type setViewerSettingInput struct {
	BookID int    `json:"book_id"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

type setViewerSettingOutput struct {
	Key string `json:"key"`
}

type closeViewerOutput struct {
	Closed bool `json:"closed"`
}

// viewerFor resolves the live viewer for a book id. Viewers are opened
// explicitly through open_book_viewer; other tools only look them up.
func (a *app) viewerFor(bookID int) (viewer.Viewer, error) {
	v, ok := a.viewers.Get(strconv.Itoa(bookID))
	if !ok {
		return nil, fmt.Errorf("no open viewer for book %d; call open_book_viewer first", bookID)
	}
	return v, nil
}

func (a *app) searchBooks(ctx context.Context, req *mcp.CallToolRequest, input searchBooksInput) (
	*mcp.CallToolResult,
	*searchBooksOutput,
	error,
) {
	results, ok := a.searchCache.get(input.Query)
	if !ok {
		var err error
		results, err = calibre.Search(ctx, a.db, input.Query)
		if err != nil {
			return errResult(err), nil, nil
		}
		a.searchCache.put(input.Query, results)
	}

	// Apply limit and offset
	books := results.Books
	if input.Offset > 0 {
		if input.Offset >= len(books) {
			books = []calibre.Book{}
		} else {
			books = books[input.Offset:]
		}
	}
	if input.Limit > 0 && len(books) > input.Limit {
		books = books[:input.Limit]
	}

	limitedResults := &calibre.SearchResult{
		Books:    books,
		TotalNum: results.TotalNum,
	}

	// Format the display text
	var contentLines []string
	contentLines = append(contentLines, fmt.Sprintf("Search results for '%s':", input.Query))
	contentLines = append(contentLines, "")
	for i, book := range limitedResults.Books {
		contentLines = append(
			contentLines,
			fmt.Sprintf("%d. %s by %s (ID: %d)", i+1, book.Title, strings.Join(book.Authors, ", "), book.ID),
		)
		if len(book.Tags) > 0 {
			contentLines = append(contentLines, fmt.Sprintf("   Tags: %s", strings.Join(book.Tags, ", ")))
		}
		if book.Series != "" {
			contentLines = append(contentLines, fmt.Sprintf("   Series: %s #%g", book.Series, book.SeriesIndex))
		}
		contentLines = append(contentLines, fmt.Sprintf("   Formats: %s", strings.Join(book.Formats, ", ")))
		contentLines = append(contentLines, "")
	}
	contentLines = append(contentLines, fmt.Sprintf("Total results: %d", limitedResults.TotalNum))

	return textResult(strings.Join(contentLines, "\n")), &searchBooksOutput{Results: limitedResults}, nil
}

func (a *app) getBook(ctx context.Context, req *mcp.CallToolRequest, input getBookInput) (
	*mcp.CallToolResult,
	*calibre.BookDetails,
	error,
) {
	book, err := calibre.GetBook(ctx, a.db, input.ID)
	if err != nil {
		return errResult(err), nil, nil
	}

	// Format the display text
	var contentLines []string
	contentLines = append(contentLines, fmt.Sprintf("# %s", book.Title))
	contentLines = append(contentLines, "")
	contentLines = append(contentLines, fmt.Sprintf("**Authors:** %s", strings.Join(book.Authors, ", ")))
	if len(book.Tags) > 0 {
		contentLines = append(contentLines, fmt.Sprintf("**Tags:** %s", strings.Join(book.Tags, ", ")))
	}
	if book.Series != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Series:** %s #%g", book.Series, book.SeriesIndex))
	}
	contentLines = append(contentLines, fmt.Sprintf("**Publisher:** %s", book.Publisher))
	contentLines = append(contentLines, fmt.Sprintf("**Publication Date:** %s", book.PubDate))
	if book.Isbn != "" {
		contentLines = append(contentLines, fmt.Sprintf("**ISBN:** %s", book.Isbn))
	}
	for typ, val := range book.Identifiers {
		contentLines = append(contentLines, fmt.Sprintf("**Identifier (%s):** %s", typ, val))
	}
	contentLines = append(contentLines, fmt.Sprintf("**Language:** %s", book.Language))
	contentLines = append(contentLines, fmt.Sprintf("**Size:** %d bytes", book.Size))
	if book.Rating > 0 {
		contentLines = append(contentLines, fmt.Sprintf("**Rating:** %d/5", book.Rating))
	}
	contentLines = append(contentLines, fmt.Sprintf("**Formats:** %s", strings.Join(book.Formats, ", ")))
	if book.Comments != "" {
		contentLines = append(contentLines, "")
		contentLines = append(contentLines, "**Comments:**")
		contentLines = append(contentLines, book.Comments)
	}

	return textResult(strings.Join(contentLines, "\n")), book, nil
}

func (a *app) openBookViewer(ctx context.Context, req *mcp.CallToolRequest, input openBookViewerInput) (
	*mcp.CallToolResult,
	*openBookViewerOutput,
	error,
) {
	var filePath, format string
	var err error
	if input.Format != "" {
		format = strings.ToUpper(input.Format)
		filePath, err = calibre.FormatPath(ctx, a.db, a.cfg.LibraryPath, input.BookID, format)
	} else {
		filePath, format, err = calibre.ViewableFormatPath(ctx, a.db, a.cfg.LibraryPath, input.BookID)
	}
	if err != nil {
		return errResult(err), nil, nil
	}

	v, err := a.viewers.Open(strconv.Itoa(input.BookID), filePath)
	if err != nil {
		return errResult(err), nil, nil
	}
	a.metrics.ViewerLoads.WithLabelValues(string(v.Format())).Inc()

	meta, err := v.Metadata()
	if err != nil {
		return errResult(err), nil, nil
	}

	text := fmt.Sprintf("Opened '%s' (%s, %d pages) for book %d", meta.Title, format, meta.PageCount, input.BookID)
	return textResult(text), &openBookViewerOutput{
		BookID:   input.BookID,
		Format:   string(v.Format()),
		Metadata: meta,
	}, nil
}

func (a *app) getViewerMetadata(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*viewer.Metadata,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	meta, err := v.Metadata()
	if err != nil {
		return errResult(err), nil, nil
	}

	var contentLines []string
	contentLines = append(contentLines, fmt.Sprintf("# %s", meta.Title))
	contentLines = append(contentLines, "")
	if meta.Author != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Author:** %s", meta.Author))
	}
	if meta.Creator != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Creator:** %s", meta.Creator))
	}
	if meta.Publisher != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Publisher:** %s", meta.Publisher))
	}
	if meta.Language != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Language:** %s", meta.Language))
	}
	if meta.Subject != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Subject:** %s", meta.Subject))
	}
	if meta.Producer != "" {
		contentLines = append(contentLines, fmt.Sprintf("**Producer:** %s", meta.Producer))
	}
	contentLines = append(contentLines, fmt.Sprintf("**Pages:** %d", meta.PageCount))
	contentLines = append(contentLines, fmt.Sprintf("**File size:** %d bytes", meta.FileSize))
	contentLines = append(contentLines, fmt.Sprintf("**Content hash:** %s", meta.FileHash))
	if meta.Description != "" {
		contentLines = append(contentLines, "")
		contentLines = append(contentLines, meta.Description)
	}

	return textResult(strings.Join(contentLines, "\n")), meta, nil
}

func (a *app) getViewerTOC(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*getViewerTOCOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	toc, err := v.TOC()
	if err != nil {
		return errResult(err), nil, nil
	}
	meta, err := v.Metadata()
	if err != nil {
		return errResult(err), nil, nil
	}

	return textResult(tocText(meta.Title, toc)), &getViewerTOCOutput{Entries: toc}, nil
}

func tocText(title string, entries []viewer.TOCEntry) string {
	root := gotree.New(title)
	var add func(t gotree.Tree, entries []viewer.TOCEntry)
	add = func(t gotree.Tree, entries []viewer.TOCEntry) {
		for _, e := range entries {
			node := t.Add(fmt.Sprintf("%s (page %d)", e.Title, e.Page))
			add(node, e.Children)
		}
	}
	add(root, entries)
	return root.Print()
}

func (a *app) getPageContent(ctx context.Context, req *mcp.CallToolRequest, input getPageContentInput) (
	*mcp.CallToolResult,
	*viewer.PageContent,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	page, err := v.Page(input.Page)
	if err != nil {
		return errResult(err), nil, nil
	}
	a.metrics.PageFetches.Inc()

	text := page.Content
	if text == "" {
		text = fmt.Sprintf("Page %d of %d (no extractable text content)", page.CurrentPage+1, page.TotalPages)
	}
	return textResult(text), page, nil
}

func (a *app) addBookmark(ctx context.Context, req *mcp.CallToolRequest, input addBookmarkInput) (
	*mcp.CallToolResult,
	*viewer.Bookmark,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	bm, err := v.AddBookmark(viewer.BookmarkRequest{
		Locator:  input.Locator,
		Title:    input.Title,
		Page:     input.Page,
		ParentID: input.ParentID,
		Note:     input.Note,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Bookmark %s saved at %s", bm.ID, bm.Locator)), bm, nil
}

func (a *app) listBookmarks(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*listBookmarksOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	bookmarks, err := v.Bookmarks()
	if err != nil {
		return errResult(err), nil, nil
	}

	if len(bookmarks) == 0 {
		return textResult("No bookmarks."), &listBookmarksOutput{Bookmarks: bookmarks}, nil
	}
	return textResult(bookmarkText(bookmarks)), &listBookmarksOutput{Bookmarks: bookmarks}, nil
}

func bookmarkText(bookmarks []*viewer.Bookmark) string {
	root := gotree.New("Bookmarks")
	var add func(t gotree.Tree, bookmarks []*viewer.Bookmark)
	add = func(t gotree.Tree, bookmarks []*viewer.Bookmark) {
		for _, bm := range bookmarks {
			label := bm.Title
			if label == "" {
				label = bm.Locator
			}
			node := t.Add(fmt.Sprintf("%s [%s]", label, bm.ID))
			add(node, bm.Children)
		}
	}
	add(root, bookmarks)
	return root.Print()
}

func (a *app) removeBookmark(ctx context.Context, req *mcp.CallToolRequest, input removeRecordInput) (
	*mcp.CallToolResult,
	*removeRecordOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	removed, err := v.RemoveBookmark(input.ID)
	if err != nil {
		return errResult(err), nil, nil
	}
	text := fmt.Sprintf("Bookmark %s removed.", input.ID)
	if !removed {
		text = fmt.Sprintf("No bookmark with id %s.", input.ID)
	}
	return textResult(text), &removeRecordOutput{Removed: removed}, nil
}

func (a *app) updateReadingProgress(ctx context.Context, req *mcp.CallToolRequest, input updateProgressInput) (
	*mcp.CallToolResult,
	*viewer.ReadingProgress,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	p, err := v.UpdateProgress(input.Locator, input.Percentage)
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Progress saved: %.1f%% at %s", p.Percentage, p.Locator)), &p, nil
}

func (a *app) getReadingProgress(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*getProgressOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	p, found, err := v.Progress()
	if err != nil {
		return errResult(err), nil, nil
	}
	if !found {
		return textResult("No reading progress recorded."), &getProgressOutput{Found: false}, nil
	}
	text := fmt.Sprintf("%.1f%% read, last at %s on %s", p.Percentage, p.Locator, p.LastRead.Format(time.RFC3339))
	return textResult(text), &getProgressOutput{Progress: &p, Found: true}, nil
}

func (a *app) addAnnotation(ctx context.Context, req *mcp.CallToolRequest, input addAnnotationInput) (
	*mcp.CallToolResult,
	*viewer.Annotation,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	if input.Locator == "" {
		return errResult(fmt.Errorf("annotation locator is required")), nil, nil
	}
	if input.Type == "" {
		return errResult(fmt.Errorf("annotation type is required")), nil, nil
	}
	annotation, err := v.AddAnnotation(viewer.AnnotationRequest{
		Locator:  input.Locator,
		Type:     input.Type,
		Content:  input.Content,
		Color:    input.Color,
		Position: input.Position,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Annotation %s (%s) saved at %s", annotation.ID, annotation.Type, annotation.Locator)),
		annotation, nil
}

func (a *app) listAnnotations(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*listAnnotationsOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	annotations, err := v.Annotations()
	if err != nil {
		return errResult(err), nil, nil
	}

	var contentLines []string
	if len(annotations) == 0 {
		contentLines = append(contentLines, "No annotations.")
	}
	for _, annotation := range annotations {
		contentLines = append(contentLines,
			fmt.Sprintf("%s [%s] at %s", annotation.ID, annotation.Type, annotation.Locator))
		if annotation.Content != "" {
			contentLines = append(contentLines, fmt.Sprintf("  %s", annotation.Content))
		}
	}
	return textResult(strings.Join(contentLines, "\n")), &listAnnotationsOutput{Annotations: annotations}, nil
}

func (a *app) removeAnnotation(ctx context.Context, req *mcp.CallToolRequest, input removeRecordInput) (
	*mcp.CallToolResult,
	*removeRecordOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	removed, err := v.RemoveAnnotation(input.ID)
	if err != nil {
		return errResult(err), nil, nil
	}
	text := fmt.Sprintf("Annotation %s removed.", input.ID)
	if !removed {
		text = fmt.Sprintf("No annotation with id %s.", input.ID)
	}
	return textResult(text), &removeRecordOutput{Removed: removed}, nil
}

func (a *app) searchBookContent(ctx context.Context, req *mcp.CallToolRequest, input searchContentInput) (
	*mcp.CallToolResult,
	*searchContentOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	searcher, ok := v.(viewer.ContentSearcher)
	if !ok {
		return errResult(fmt.Errorf("%s viewer does not support content search", v.Format())), nil, nil
	}
	matches, err := searcher.SearchText(input.Query, input.Limit, input.Offset)
	if err != nil {
		return errResult(err), nil, nil
	}

	// Format the display text
	var contentLines []string
	contentLines = append(contentLines, fmt.Sprintf("Search results for '%s' in book %d:", input.Query, input.BookID))
	contentLines = append(contentLines, "")
	if len(matches) == 0 {
		contentLines = append(contentLines, "No matches found.")
	} else {
		for _, match := range matches {
			contentLines = append(contentLines, fmt.Sprintf("Page %d: %s", match.Page, match.PageTitle))
			contentLines = append(contentLines, fmt.Sprintf("  %s", match.Snippet))
			contentLines = append(contentLines, "")
		}
	}
	return textResult(strings.Join(contentLines, "\n")), &searchContentOutput{Matches: matches}, nil
}

func (a *app) setViewerSetting(ctx context.Context, req *mcp.CallToolRequest, input setViewerSettingInput) (
	*mcp.CallToolResult,
	*setViewerSettingOutput,
	error,
) {
	v, err := a.viewerFor(input.BookID)
	if err != nil {
		return errResult(err), nil, nil
	}
	configurable, ok := v.(viewer.Configurable)
	if !ok {
		return errResult(fmt.Errorf("%s viewer does not support display settings", v.Format())), nil, nil
	}
	if err := configurable.SetSetting(input.Key, input.Value); err != nil {
		return errResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("Setting %s updated.", input.Key)), &setViewerSettingOutput{Key: input.Key}, nil
}

func (a *app) closeViewer(ctx context.Context, req *mcp.CallToolRequest, input viewerInput) (
	*mcp.CallToolResult,
	*closeViewerOutput,
	error,
) {
	closed := a.viewers.Close(strconv.Itoa(input.BookID))
	text := fmt.Sprintf("Viewer for book %d closed.", input.BookID)
	if !closed {
		text = fmt.Sprintf("No open viewer for book %d.", input.BookID)
	}
	return textResult(text), &closeViewerOutput{Closed: closed}, nil
}

// addTool registers a tool with per-call metrics around the handler.
func addTool[In, Out any](a *app, server *mcp.Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, input In) (
		*mcp.CallToolResult, Out, error,
	) {
		result, output, err := handler(ctx, req, input)
		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		a.metrics.ToolCalls.WithLabelValues(tool.Name, status).Inc()
		return result, output, err
	})
}

// setupMCPServer creates and configures the MCP server with library and
// viewer tools.
func (a *app) setupMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "calibre-viewer-mcp", Version: "v1.0.0"}, nil)

	addTool(a, server, &mcp.Tool{
		Name: "search_books",
		Description: "Search for books in the Calibre library by title, author, tags, or other metadata. " +
			"Returns a list of matching books with basic information. Supports limit and offset for fast pagination through results.",
	}, a.searchBooks)

	addTool(a, server, &mcp.Tool{
		Name:        "get_book",
		Description: "Retrieve detailed information about a specific book by its ID from the Calibre library",
	}, a.getBook)

	addTool(a, server, &mcp.Tool{
		Name: "open_book_viewer",
		Description: "Open a book from the Calibre library in a viewer. Picks EPUB over PDF unless a format " +
			"is given. The viewer stays open for the other viewer tools until close_viewer is called.",
	}, a.openBookViewer)

	addTool(a, server, &mcp.Tool{
		Name:        "get_viewer_metadata",
		Description: "Get the document metadata (title, creator, page count, content hash) of an open viewer",
	}, a.getViewerMetadata)

	addTool(a, server, &mcp.Tool{
		Name:        "get_viewer_toc",
		Description: "Get the table of contents of an open viewer. PDF outlines nest; EPUB entries follow reading order.",
	}, a.getViewerTOC)

	addTool(a, server, &mcp.Tool{
		Name:        "get_page_content",
		Description: "Get the content of one page of an open viewer by zero-based page index",
	}, a.getPageContent)

	addTool(a, server, &mcp.Tool{
		Name: "add_bookmark",
		Description: "Add a bookmark to the open viewer's document. EPUB bookmarks take a locator; " +
			"PDF bookmarks take a title and zero-based page and may nest under parent_id. " +
			"Bookmarking the same position twice updates the existing bookmark.",
	}, a.addBookmark)

	addTool(a, server, &mcp.Tool{
		Name:        "list_bookmarks",
		Description: "List the bookmarks of the open viewer's document. PDF bookmarks come back as a tree.",
	}, a.listBookmarks)

	addTool(a, server, &mcp.Tool{
		Name:        "remove_bookmark",
		Description: "Remove a bookmark by id. Nested child bookmarks are removed with their parent.",
	}, a.removeBookmark)

	addTool(a, server, &mcp.Tool{
		Name:        "update_reading_progress",
		Description: "Save the reading position (locator and percentage) for the open viewer's document",
	}, a.updateReadingProgress)

	addTool(a, server, &mcp.Tool{
		Name:        "get_reading_progress",
		Description: "Get the saved reading position for the open viewer's document",
	}, a.getReadingProgress)

	addTool(a, server, &mcp.Tool{
		Name:        "add_annotation",
		Description: "Add an annotation (highlight, note, underline) at a locator in the open viewer's document",
	}, a.addAnnotation)

	addTool(a, server, &mcp.Tool{
		Name:        "list_annotations",
		Description: "List the annotations of the open viewer's document",
	}, a.listAnnotations)

	addTool(a, server, &mcp.Tool{
		Name:        "remove_annotation",
		Description: "Remove an annotation by id",
	}, a.removeAnnotation)

	addTool(a, server, &mcp.Tool{
		Name: "search_book_content",
		Description: "Search for text within the content of the open viewer's document and return matching " +
			"paragraphs with page information. Supports limit and offset for fast pagination - use offset to walk through results.",
	}, a.searchBookContent)

	addTool(a, server, &mcp.Tool{
		Name:        "set_viewer_setting",
		Description: "Change a display setting (font_size, font_family, theme, line_height, margin) of an open EPUB viewer",
	}, a.setViewerSetting)

	addTool(a, server, &mcp.Tool{
		Name:        "close_viewer",
		Description: "Close the viewer for a book. Bookmarks, annotations and reading progress are kept.",
	}, a.closeViewer)

	return server
}
