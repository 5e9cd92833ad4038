package viewer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Format identifies a supported document format.
type Format string

const (
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
)

// BookmarkRequest carries the caller-supplied parts of a bookmark. Locator
// addresses EPUB text positions; Title/Page address PDF pages (zero-based).
// ParentID nests PDF bookmarks and is rejected for EPUB.
type BookmarkRequest struct {
	Locator  string `json:"locator,omitempty"`
	Title    string `json:"title,omitempty"`
	Page     int    `json:"page,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

// AnnotationRequest carries the caller-supplied parts of an annotation.
type AnnotationRequest struct {
	Locator  string `json:"locator"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Color    string `json:"color,omitempty"`
	Position string `json:"position,omitempty"`
}

// TextMatch is one content-search hit.
type TextMatch struct {
	Page      int    `json:"page"`
	PageTitle string `json:"page_title"`
	Snippet   string `json:"snippet"`
}

// Viewer is the two-state (Unloaded/Loaded) document viewer. Every query
// operation returns ErrNotLoaded before a successful Load or after Close.
// Load on a Loaded viewer replaces the in-memory document; persisted
// records are keyed by content hash and survive both Load and Close.
type Viewer interface {
	Load(path string) error
	Close() error
	Format() Format
	Metadata() (*Metadata, error)
	TOC() ([]TOCEntry, error)
	Page(index int) (*PageContent, error)
	Bookmarks() ([]*Bookmark, error)
	AddBookmark(req BookmarkRequest) (*Bookmark, error)
	RemoveBookmark(id string) (bool, error)
	Progress() (ReadingProgress, bool, error)
	UpdateProgress(locator string, percentage float64) (ReadingProgress, error)
	Annotations() ([]Annotation, error)
	AddAnnotation(req AnnotationRequest) (*Annotation, error)
	RemoveAnnotation(id string) (bool, error)
}

// Configurable is the capability interface for viewers that accept display
// settings. Callers check for it by type assertion instead of probing for
// optional methods.
type Configurable interface {
	SetSetting(key string, value any) error
}

// ContentSearcher is the capability interface for viewers that can search
// their rendered text content.
type ContentSearcher interface {
	SearchText(query string, limit, offset int) ([]TextMatch, error)
}

// ResourceProvider is the capability interface for viewers that can serve
// auxiliary resources (images, stylesheets, fonts) referenced by their pages.
type ResourceProvider interface {
	Resource(p string) (data []byte, contentType string, err error)
}

// session holds the state shared by all viewer formats: the persistence
// store (scoped to the load→close lifetime) and the loaded metadata. A nil
// meta pointer is the Unloaded state.
type session struct {
	storePath string
	log       zerolog.Logger
	store     *Store
	meta      *Metadata
}

func (s *session) loaded() bool {
	return s.meta != nil
}

func (s *session) requireLoaded() error {
	if !s.loaded() {
		return ErrNotLoaded
	}
	return nil
}

func (s *session) ensureStore() error {
	if s.store != nil {
		return nil
	}
	store, err := OpenStore(s.storePath, s.log)
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

// reset returns the session to its unloaded defaults. Idempotent.
func (s *session) reset() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
		s.store = nil
	}
	s.meta = nil
	return err
}

func (s *session) Metadata() (*Metadata, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	meta := *s.meta
	return &meta, nil
}

func (s *session) Progress() (ReadingProgress, bool, error) {
	if err := s.requireLoaded(); err != nil {
		return ReadingProgress{}, false, err
	}
	return s.store.Progress(s.meta.FileHash)
}

func (s *session) UpdateProgress(locator string, percentage float64) (ReadingProgress, error) {
	if err := s.requireLoaded(); err != nil {
		return ReadingProgress{}, err
	}
	return s.store.UpsertProgress(s.meta.FileHash, locator, percentage)
}

func (s *session) Annotations() ([]Annotation, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return s.store.Annotations(s.meta.FileHash)
}

func (s *session) AddAnnotation(req AnnotationRequest) (*Annotation, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	a := &Annotation{
		ID:       newAnnotationID(),
		DocHash:  s.meta.FileHash,
		Locator:  req.Locator,
		Type:     req.Type,
		Content:  req.Content,
		Color:    req.Color,
		Position: positionPayload(req.Position),
	}
	if err := s.store.UpsertAnnotation(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *session) RemoveAnnotation(id string) (bool, error) {
	if err := s.requireLoaded(); err != nil {
		return false, err
	}
	return s.store.DeleteAnnotation(id)
}

func (s *session) RemoveBookmark(id string) (bool, error) {
	if err := s.requireLoaded(); err != nil {
		return false, err
	}
	return s.store.DeleteBookmark(id)
}

// Open constructs and loads the viewer matching the file's extension.
func Open(path, storePath string, log zerolog.Logger) (Viewer, error) {
	var v Viewer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		v = NewEPUBViewer(storePath, log)
	case ".pdf":
		v = NewPDFViewer(storePath, log)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
	if err := v.Load(path); err != nil {
		return nil, err
	}
	return v, nil
}

// Manager owns the live viewer instances for a serving context, keyed by
// caller-chosen ids (book ids at the tool and HTTP layers). It replaces the
// module-level viewer cache of earlier designs: lifecycle is explicit and
// the manager is passed to whoever needs it. The mutex only guards the map;
// individual viewers follow the single-caller access model.
type Manager struct {
	storePath string
	log       zerolog.Logger

	mu      sync.Mutex
	viewers map[string]Viewer
}

func NewManager(storePath string, log zerolog.Logger) *Manager {
	return &Manager{
		storePath: storePath,
		log:       log.With().Str("component", "viewer").Logger(),
		viewers:   make(map[string]Viewer),
	}
}

// Open loads path under the given key, reusing an already-open viewer and
// replacing one that points at a different file.
func (m *Manager) Open(key, path string) (Viewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.viewers[key]; ok {
		if meta, err := v.Metadata(); err == nil && meta.FilePath == path {
			return v, nil
		}
		v.Close()
		delete(m.viewers, key)
	}

	v, err := Open(path, m.storePath, m.log)
	if err != nil {
		return nil, err
	}
	m.viewers[key] = v
	m.log.Info().Str("key", key).Str("path", path).Str("format", string(v.Format())).Msg("viewer opened")
	return v, nil
}

// Keys returns the keys of all live viewers.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.viewers))
	for key := range m.viewers {
		keys = append(keys, key)
	}
	return keys
}

// Get returns the live viewer for key, if any.
func (m *Manager) Get(key string) (Viewer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.viewers[key]
	return v, ok
}

// Close closes and forgets the viewer for key. Reports whether one existed.
func (m *Manager) Close(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.viewers[key]
	if !ok {
		return false
	}
	v.Close()
	delete(m.viewers, key)
	return true
}

// CloseAll closes every live viewer.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.viewers {
		v.Close()
		delete(m.viewers, key)
	}
}
