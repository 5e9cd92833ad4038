package viewer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// buildPDF assembles a classic-xref PDF from numbered object bodies.
// Object numbers are assigned 1..len(objects) in order.
func buildPDF(objects []string, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, trailerExtra, start)
	return buf.Bytes()
}

func outlinedPDF() []byte {
	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R /Outlines 6 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R 5 0 R] /Count 3 >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Outlines /First 7 0 R /Last 8 0 R >>",
		"<< /Title (Part I) /Dest [3 0 R /Fit] /Next 8 0 R /First 9 0 R /Last 9 0 R >>",
		"<< /Title (Part II) /Dest [5 0 R /Fit] >>",
		"<< /Title (Chapter 1) /Dest [4 0 R /Fit] /Parent 7 0 R >>",
		"<< /Title (Trail Guide) /Author (M. Walker) /Creator (penwriter 3.0) /Producer (penlib 2.1) /CreationDate (D:20230810120000Z) >>",
	}, " /Info 10 0 R")
}

func plainPDF() []byte {
	return buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 2 0 R >>",
		"<< /Type /Page /Parent 2 0 R >>",
	}, "")
}

func newTestPDF(t *testing.T, data []byte, name string) (*PDFViewer, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	v := NewPDFViewer(filepath.Join(dir, "viewer.db"), zerolog.Nop())
	if err := v.Load(path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { v.Close() })
	return v, path
}

func TestPDFLoadMetadata(t *testing.T) {
	v, path := newTestPDF(t, outlinedPDF(), "guide.pdf")

	meta, err := v.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "Trail Guide" {
		t.Errorf("Title = %q", meta.Title)
	}
	// Author, Creator and Producer are distinct fields and none shadows
	// another.
	if meta.Author != "M. Walker" {
		t.Errorf("Author = %q", meta.Author)
	}
	if meta.Creator != "penwriter 3.0" {
		t.Errorf("Creator = %q", meta.Creator)
	}
	if meta.Producer != "penlib 2.1" {
		t.Errorf("Producer = %q", meta.Producer)
	}
	if meta.PageCount != 3 {
		t.Errorf("PageCount = %d", meta.PageCount)
	}
	if meta.Date == nil || meta.Date.Year() != 2023 {
		t.Errorf("Date = %v", meta.Date)
	}
	if meta.FilePath != path {
		t.Errorf("FilePath = %q", meta.FilePath)
	}
}

func TestPDFTitleFallsBackToFilename(t *testing.T) {
	v, _ := newTestPDF(t, plainPDF(), "meeting-notes.pdf")
	meta, err := v.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "meeting-notes" {
		t.Errorf("Title = %q, want filename stem", meta.Title)
	}
}

func TestPDFTOCFromOutline(t *testing.T) {
	v, _ := newTestPDF(t, outlinedPDF(), "guide.pdf")

	toc, err := v.TOC()
	if err != nil {
		t.Fatal(err)
	}
	if len(toc) != 2 {
		t.Fatalf("toc roots = %d, want 2", len(toc))
	}
	// Outline targets are 1-based in the file; the viewer is zero-based.
	if toc[0].Title != "Part I" || toc[0].Page != 0 || toc[0].Level != 1 {
		t.Errorf("toc[0] = %+v", toc[0])
	}
	if len(toc[0].Children) != 1 {
		t.Fatalf("Part I children = %d", len(toc[0].Children))
	}
	if child := toc[0].Children[0]; child.Title != "Chapter 1" || child.Page != 1 || child.Level != 2 {
		t.Errorf("child = %+v", child)
	}
	if toc[1].Title != "Part II" || toc[1].Page != 2 {
		t.Errorf("toc[1] = %+v", toc[1])
	}
}

func TestPDFTOCSynthesizedWithoutOutline(t *testing.T) {
	v, _ := newTestPDF(t, plainPDF(), "plain.pdf")

	toc, err := v.TOC()
	if err != nil {
		t.Fatal(err)
	}
	if len(toc) != 2 {
		t.Fatalf("toc entries = %d, want 2", len(toc))
	}
	if toc[0].Title != "Page 1" || toc[0].Page != 0 {
		t.Errorf("toc[0] = %+v", toc[0])
	}
	if toc[1].Title != "Page 2" || toc[1].Page != 1 {
		t.Errorf("toc[1] = %+v", toc[1])
	}
}

func TestPDFPageRange(t *testing.T) {
	v, _ := newTestPDF(t, plainPDF(), "plain.pdf")

	if _, err := v.Page(-1); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := v.Page(2); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("err = %v", err)
	}
	page, err := v.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	if page.CurrentPage != 1 || page.TotalPages != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestPDFBookmarkNesting(t *testing.T) {
	v, _ := newTestPDF(t, outlinedPDF(), "guide.pdf")

	parent, err := v.AddBookmark(BookmarkRequest{Title: "Part I", Page: 0})
	if err != nil {
		t.Fatal(err)
	}
	child, err := v.AddBookmark(BookmarkRequest{Title: "Chapter 1", Page: 1, ParentID: parent.ID})
	if err != nil {
		t.Fatal(err)
	}
	if child.Locator != "1" {
		t.Errorf("child locator = %q, want page number string", child.Locator)
	}

	roots, err := v.Bookmarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].ID != child.ID {
		t.Errorf("tree = %+v", roots[0])
	}

	// Removing the parent takes the child with it.
	removed, err := v.RemoveBookmark(parent.ID)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	roots, err = v.Bookmarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 0 {
		t.Errorf("bookmarks after cascade = %+v", roots)
	}
}

func TestPDFBookmarkValidation(t *testing.T) {
	v, _ := newTestPDF(t, plainPDF(), "plain.pdf")

	if _, err := v.AddBookmark(BookmarkRequest{Page: 0}); err == nil {
		t.Error("missing title accepted")
	}
	if _, err := v.AddBookmark(BookmarkRequest{Title: "x", Page: 9}); err == nil {
		t.Error("out-of-range page accepted")
	}
	if _, err := v.AddBookmark(BookmarkRequest{Title: "x", Page: -1}); err == nil {
		t.Error("negative page accepted")
	}
}

func TestPDFSameBookmarkMerges(t *testing.T) {
	v, _ := newTestPDF(t, plainPDF(), "plain.pdf")

	first, err := v.AddBookmark(BookmarkRequest{Title: "resume", Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.AddBookmark(BookmarkRequest{Title: "resume", Page: 1, Note: "updated"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
	roots, err := v.Bookmarks()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].Note != "updated" {
		t.Errorf("bookmarks = %+v", roots)
	}
}

func TestPDFLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(path, []byte("no pdf here"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := NewPDFViewer(filepath.Join(dir, "viewer.db"), zerolog.Nop())
	err := v.Load(path)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}
