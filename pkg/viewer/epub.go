package viewer

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const containerPath = "META-INF/container.xml"

// OCF container document, namespace-qualified.
type ocfContainer struct {
	XMLName   xml.Name      `xml:"urn:oasis:names:tc:opendocument:xmlns:container container"`
	Rootfiles []ocfRootfile `xml:"rootfiles>rootfile"`
}

type ocfRootfile struct {
	FullPath string `xml:"full-path,attr"`
}

// OPF package document. Metadata elements come from the Dublin Core
// vocabulary; absent elements leave fields empty.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title       string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Publisher   string `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Language    string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Description string `xml:"http://purl.org/dc/elements/1.1/ description"`
	Rights      string `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Itemrefs []opfItemref `xml:"itemref"`
}

type opfItemref struct {
	Idref string `xml:"idref,attr"`
}

// manifestItem is a manifest entry with its href resolved relative to the
// root file's directory.
type manifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

type spineItem struct {
	ID    string
	Href  string
	Title string
}

// epubSettings are the display settings the content resolver injects.
type epubSettings struct {
	FontSize   int
	FontFamily string
	Theme      string
	LineHeight float64
	Margin     int
}

func defaultEPUBSettings() epubSettings {
	return epubSettings{
		FontSize:   16,
		FontFamily: "Arial, sans-serif",
		Theme:      "light",
		LineHeight: 1.6,
		Margin:     2,
	}
}

// EPUBViewer loads EPUB containers and resolves spine content. Bookmarks
// are flat; locators are canonical fragment identifier strings.
type EPUBViewer struct {
	session
	settings epubSettings

	archive *zip.ReadCloser
	rootDir string

	manifest map[string]manifestItem
	spine    []spineItem

	// navItem records a manifest entry carrying the "nav" property.
	// Parsing the navigation document for a nested TOC is an extension
	// point; the TOC is derived from spine order.
	navItem string
}

func NewEPUBViewer(storePath string, log zerolog.Logger) *EPUBViewer {
	return &EPUBViewer{
		session: session{
			storePath: storePath,
			log:       log.With().Str("viewer", "epub").Logger(),
		},
		settings: defaultEPUBSettings(),
	}
}

func (v *EPUBViewer) Format() Format {
	return FormatEPUB
}

// Load parses the EPUB at path, replacing any previously loaded document.
// Persisted records are untouched; they are keyed by content hash.
func (v *EPUBViewer) Load(filePath string) error {
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

	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return newFormatError(filePath, "not a zip container", err)
	}

	pkg, rootDir, err := parsePackage(&archive.Reader, filePath)
	if err != nil {
		archive.Close()
		return err
	}

	if err := v.ensureStore(); err != nil {
		archive.Close()
		return err
	}

	// Load succeeded; swap in the new document state.
	if v.archive != nil {
		v.archive.Close()
	}
	v.archive = archive
	v.rootDir = rootDir
	v.manifest = make(map[string]manifestItem, len(pkg.Manifest.Items))
	v.navItem = ""
	for _, item := range pkg.Manifest.Items {
		mi := manifestItem{
			ID:        item.ID,
			Href:      resolveHref(rootDir, item.Href),
			MediaType: item.MediaType,
		}
		if item.Properties != "" {
			mi.Properties = strings.Fields(item.Properties)
			for _, p := range mi.Properties {
				if p == "nav" {
					v.navItem = item.ID
				}
			}
		}
		v.manifest[item.ID] = mi
	}

	v.spine = v.spine[:0]
	for _, itemref := range pkg.Spine.Itemrefs {
		item, ok := v.manifest[itemref.Idref]
		if !ok {
			continue
		}
		v.spine = append(v.spine, spineItem{
			ID:    item.ID,
			Href:  item.Href,
			Title: fmt.Sprintf("Page %d", len(v.spine)+1),
		})
	}

	meta := Metadata{
		Title:       strings.TrimSpace(pkg.Metadata.Title),
		Creator:     strings.TrimSpace(pkg.Metadata.Creator),
		Publisher:   strings.TrimSpace(pkg.Metadata.Publisher),
		Language:    strings.TrimSpace(pkg.Metadata.Language),
		Description: strings.TrimSpace(pkg.Metadata.Description),
		Rights:      strings.TrimSpace(pkg.Metadata.Rights),
		PageCount:   len(v.spine),
		FilePath:    filePath,
		FileHash:    hash,
		FileSize:    stat.Size(),
	}
	if d, err := time.Parse("2006-01-02", strings.TrimSpace(pkg.Metadata.Date)); err == nil {
		meta.Date = &d
	}
	v.meta = &meta

	v.log.Info().Str("path", filePath).Str("hash", hash).Int("spine_items", len(v.spine)).
		Msg("epub loaded")
	return nil
}

func parsePackage(archive *zip.Reader, filePath string) (*opfPackage, string, error) {
	containerFile, err := archive.Open(containerPath)
	if err != nil {
		return nil, "", newFormatError(filePath, "missing "+containerPath, err)
	}
	var container ocfContainer
	err = xml.NewDecoder(containerFile).Decode(&container)
	containerFile.Close()
	if err != nil {
		return nil, "", newFormatError(filePath, "malformed container.xml", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, "", newFormatError(filePath, "no rootfile declared", nil)
	}

	rootPath := container.Rootfiles[0].FullPath
	rootFile, err := archive.Open(rootPath)
	if err != nil {
		return nil, "", newFormatError(filePath, "rootfile not in archive: "+rootPath, err)
	}
	data, err := io.ReadAll(rootFile)
	rootFile.Close()
	if err != nil {
		return nil, "", newFormatError(filePath, "unreadable rootfile", err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, "", newFormatError(filePath, "malformed package document", err)
	}

	rootDir := ""
	if i := strings.LastIndex(rootPath, "/"); i >= 0 {
		rootDir = rootPath[:i]
	}
	return &pkg, rootDir, nil
}

func resolveHref(rootDir, href string) string {
	if rootDir == "" {
		return path.Clean(href)
	}
	return path.Join(rootDir, href)
}

// TOC is derived from spine order: one flat entry per spine item labeled
// "Page N".
func (v *EPUBViewer) TOC() ([]TOCEntry, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	toc := make([]TOCEntry, 0, len(v.spine))
	for i, item := range v.spine {
		toc = append(toc, TOCEntry{Title: item.Title, Page: i, Level: 1})
	}
	return toc, nil
}

func (v *EPUBViewer) Bookmarks() ([]*Bookmark, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	return v.store.Bookmarks(v.meta.FileHash)
}

// AddBookmark upserts a bookmark at the given locator. The id derives from
// the document hash and locator, so the same position bookmarked twice
// merges into one row.
func (v *EPUBViewer) AddBookmark(req BookmarkRequest) (*Bookmark, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	if req.Locator == "" {
		return nil, fmt.Errorf("bookmark locator is required")
	}
	if req.ParentID != "" {
		return nil, fmt.Errorf("epub bookmarks do not nest")
	}
	bm := &Bookmark{
		ID:      bookmarkID(v.meta.FileHash, req.Locator),
		DocHash: v.meta.FileHash,
		Locator: req.Locator,
		Title:   req.Title,
		Note:    req.Note,
	}
	if err := v.store.UpsertBookmark(bm); err != nil {
		return nil, err
	}
	return bm, nil
}

// SetSetting implements Configurable for display settings used by the
// content resolver's injected stylesheet.
func (v *EPUBViewer) SetSetting(key string, value any) error {
	switch key {
	case "font_size":
		n, ok := asInt(value)
		if !ok || n <= 0 {
			return fmt.Errorf("font_size must be a positive integer")
		}
		v.settings.FontSize = n
	case "font_family":
		s, ok := value.(string)
		if !ok || s == "" {
			return fmt.Errorf("font_family must be a non-empty string")
		}
		v.settings.FontFamily = s
	case "theme":
		s, ok := value.(string)
		if !ok || (s != "light" && s != "dark" && s != "sepia") {
			return fmt.Errorf("theme must be light, dark or sepia")
		}
		v.settings.Theme = s
	case "line_height":
		f, ok := asFloat(value)
		if !ok || f <= 0 {
			return fmt.Errorf("line_height must be a positive number")
		}
		v.settings.LineHeight = f
	case "margin":
		n, ok := asInt(value)
		if !ok || n < 0 {
			return fmt.Errorf("margin must be a non-negative integer")
		}
		v.settings.Margin = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Close releases the archive handle and store connection and resets the
// viewer to Unloaded. Safe to call repeatedly.
func (v *EPUBViewer) Close() error {
	if v.archive != nil {
		v.archive.Close()
		v.archive = nil
	}
	v.manifest = nil
	v.spine = nil
	v.rootDir = ""
	v.navItem = ""
	v.settings = defaultEPUBSettings()
	return v.reset()
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
