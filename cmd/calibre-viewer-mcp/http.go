package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benoute/calibre-viewer-mcp/pkg/calibre"
	"github.com/benoute/calibre-viewer-mcp/pkg/viewer"
)

// routes builds the http-mode mux: the MCP handler at the root plus the
// viewer pages, the viewer JSON API, EPUB resource serving, metrics and
// health.
func (a *app) routes(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", mcpHandler)
	mux.HandleFunc("GET /view/book/{id}", a.handleViewBook)
	mux.HandleFunc("GET /api/viewer/page", a.handleViewerPage)
	mux.HandleFunc("POST /api/viewer/settings", a.handleViewerSettings)
	mux.HandleFunc("GET "+viewer.ResourceRoute+"/", a.handleEPUBResource)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// errorStatus maps viewer errors onto HTTP statuses.
func errorStatus(err error) int {
	var formatErr *viewer.FormatError
	switch {
	case errors.Is(err, viewer.ErrFileNotFound), errors.Is(err, viewer.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, viewer.ErrNotLoaded):
		return http.StatusConflict
	case errors.As(err, &formatErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

var viewerPageTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="{{.Language}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body data-book-id="{{.BookID}}" data-format="{{.Format}}" data-pages="{{.PageCount}}">
<h1>{{.Title}}</h1>
<p>{{.Creator}}</p>
<div id="page"></div>
<script>
const bookId = document.body.dataset.bookId;
let page = 0;
async function showPage(n) {
	const res = await fetch('/api/viewer/page?book_id=' + bookId + '&page=' + n);
	const body = await res.json();
	if (!body.success) return;
	page = n;
	document.getElementById('page').innerHTML = body.page.content;
}
document.addEventListener('keydown', (e) => {
	if (e.key === 'ArrowRight') showPage(page + 1);
	if (e.key === 'ArrowLeft' && page > 0) showPage(page - 1);
});
showPage(0);
</script>
</body>
</html>
`))

type viewerPageData struct {
	BookID    int
	Title     string
	Creator   string
	Language  string
	Format    string
	PageCount int
}

// handleViewBook opens (or reuses) the viewer for a book and serves the
// reader shell.
func (a *app) handleViewBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid book id", http.StatusBadRequest)
		return
	}

	filePath, format, err := calibre.ViewableFormatPath(r.Context(), a.db, a.cfg.LibraryPath, bookID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	v, err := a.viewers.Open(strconv.Itoa(bookID), filePath)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	a.metrics.ViewerLoads.WithLabelValues(string(v.Format())).Inc()

	meta, err := v.Metadata()
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	viewerPageTemplate.Execute(w, viewerPageData{
		BookID:    bookID,
		Title:     meta.Title,
		Creator:   meta.Creator,
		Language:  meta.Language,
		Format:    format,
		PageCount: meta.PageCount,
	})
}

func (a *app) handleViewerPage(w http.ResponseWriter, r *http.Request) {
	bookID := r.URL.Query().Get("book_id")
	pageIndex, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid page index"))
		return
	}

	v, ok := a.viewers.Get(bookID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("no open viewer for book %s", bookID))
		return
	}
	page, err := v.Page(pageIndex)
	if err != nil {
		writeJSONError(w, errorStatus(err), err)
		return
	}
	a.metrics.PageFetches.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page": map[string]any{
			"content":      page.Content,
			"current_page": page.CurrentPage,
			"total_pages":  page.TotalPages,
		},
	})
}

type settingsRequest struct {
	BookID   string         `json:"book_id"`
	Settings map[string]any `json:"settings"`
}

func (a *app) handleViewerSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	v, ok := a.viewers.Get(req.BookID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("no open viewer for book %s", req.BookID))
		return
	}
	configurable, ok := v.(viewer.Configurable)
	if !ok {
		writeJSONError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("%s viewer does not support display settings", v.Format()))
		return
	}

	for key, value := range req.Settings {
		if err := configurable.SetSetting(key, value); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleEPUBResource serves archive bytes referenced by rewritten page
// content. Rewritten URLs carry no book key, so the handler asks each open
// viewer that can serve resources; archive paths are effectively unique
// across books.
func (a *app) handleEPUBResource(w http.ResponseWriter, r *http.Request) {
	resourcePath := strings.TrimPrefix(r.URL.Path, viewer.ResourceRoute+"/")
	if resourcePath == "" || resourcePath == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	for _, key := range a.viewers.Keys() {
		v, ok := a.viewers.Get(key)
		if !ok {
			continue
		}
		provider, ok := v.(viewer.ResourceProvider)
		if !ok {
			continue
		}
		data, contentType, err := provider.Resource(resourcePath)
		if err != nil {
			continue
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
		return
	}
	http.NotFound(w, r)
}
