package viewer

import (
	"fmt"
	"io"
	"mime"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ResourceRoute is the path prefix rewritten resource references are routed
// through; the HTTP layer serves archive bytes under it.
const ResourceRoute = "/epub/resource"

// Page returns the rendered content of the spine item at index. An index
// outside the spine range or an item that does not decode as UTF-8 yields
// ErrPageNotFound; the document stays loaded either way.
func (v *EPUBViewer) Page(index int) (*PageContent, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, err
	}
	data, err := v.spineBytes(index)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: spine item %d is not valid UTF-8", ErrContentDecode, index)
	}
	content := rewriteContent(string(data), path.Dir(v.spine[index].Href), v.settings)
	return &PageContent{
		Content:     content,
		CurrentPage: index,
		TotalPages:  len(v.spine),
	}, nil
}

func (v *EPUBViewer) spineBytes(index int) ([]byte, error) {
	if index < 0 || index >= len(v.spine) {
		return nil, fmt.Errorf("%w: spine index %d of %d", ErrPageNotFound, index, len(v.spine))
	}
	f, err := v.archive.Open(v.spine[index].Href)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, v.spine[index].Href)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, v.spine[index].Href)
	}
	return data, nil
}

// Resource serves raw archive bytes for a rewritten reference. The path is
// the archive-relative one produced by rewriteContent; the content type comes
// from the manifest when the item is declared there, otherwise from the
// file extension.
func (v *EPUBViewer) Resource(p string) ([]byte, string, error) {
	if err := v.requireLoaded(); err != nil {
		return nil, "", err
	}
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "." || strings.HasPrefix(p, "..") {
		return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
	}
	f, err := v.archive.Open(p)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
	}

	contentType := ""
	for _, item := range v.manifest {
		if item.Href == p {
			contentType = item.MediaType
			break
		}
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(p))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

var (
	rewriteTagRe = regexp.MustCompile(`(?i)<(?:a|img|link|script)\b[^>]*>`)
	refAttrRe    = regexp.MustCompile(`(?i)(href|src)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	headOpenRe   = regexp.MustCompile(`(?i)<head\b[^>]*>`)
	headCloseRe  = regexp.MustCompile(`(?i)</head>`)
	baseTagRe    = regexp.MustCompile(`(?i)<base\b`)
)

// rewriteContent prepares a spine document for display: relative href/src
// references on anchor, image, link and script tags are routed through the
// resource path scoped to the item's directory; a base tag is injected when
// absent; the viewer stylesheet is appended.
func rewriteContent(content, baseDir string, settings epubSettings) string {
	out := rewriteTagRe.ReplaceAllStringFunc(content, func(tag string) string {
		return refAttrRe.ReplaceAllStringFunc(tag, func(attr string) string {
			m := refAttrRe.FindStringSubmatch(attr)
			attrName := m[1]
			val, quote := m[2], `"`
			if m[2] == "" && m[3] != "" {
				val, quote = m[3], `'`
			}
			if !needsRewrite(val) {
				return attr
			}
			return attrName + `=` + quote + resourcePath(baseDir, val) + quote
		})
	})

	if !baseTagRe.MatchString(out) {
		baseTag := `<base href="` + resourcePath(baseDir, "") + `/">`
		if loc := headOpenRe.FindStringIndex(out); loc != nil {
			out = out[:loc[1]] + baseTag + out[loc[1]:]
		} else {
			out = baseTag + out
		}
	}

	style := viewerStylesheet(settings)
	if loc := headCloseRe.FindStringIndex(out); loc != nil {
		out = out[:loc[0]] + style + out[loc[0]:]
	} else {
		out += style
	}
	return out
}

// needsRewrite leaves absolute URLs, bare fragments, data URIs and
// already-absolute paths untouched.
func needsRewrite(val string) bool {
	switch {
	case val == "",
		strings.HasPrefix(val, "#"),
		strings.HasPrefix(val, "http://"),
		strings.HasPrefix(val, "https://"),
		strings.HasPrefix(val, "data:"),
		strings.HasPrefix(val, "/"):
		return false
	}
	return true
}

func resourcePath(baseDir, val string) string {
	return path.Join(ResourceRoute, baseDir, val)
}

// viewerStylesheet renders the injected baseline styling from the current
// display settings.
func viewerStylesheet(s epubSettings) string {
	fg, bg := "#111", "#fff"
	switch s.Theme {
	case "dark":
		fg, bg = "#ddd", "#1e1e1e"
	case "sepia":
		fg, bg = "#5b4636", "#f4ecd8"
	}
	return fmt.Sprintf(`<style>
body {
	margin: 0 auto;
	padding: %dem;
	max-width: 800px;
	font-family: %s;
	font-size: %dpx;
	line-height: %.2f;
	color: %s;
	background: %s;
}
img { max-width: 100%%; height: auto; }
</style>`, s.Margin, s.FontFamily, s.FontSize, s.LineHeight, fg, bg)
}
