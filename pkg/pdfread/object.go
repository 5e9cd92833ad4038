// Package pdfread is a minimal read-only PDF parser: classic cross-reference
// tables, the document information dictionary, the page tree, and the
// outline hierarchy. It does not decode content streams; it exists to give
// the viewer layer metadata, page count and a table of contents.
package pdfread

// Object is any PDF object value. Concrete types: Null, Bool, Integer,
// Real, String, Name, Array, Dict, Ref.
type Object interface{}

type (
	// Null is the PDF null object.
	Null struct{}

	// Bool is a PDF boolean.
	Bool bool

	// Integer is a PDF integer.
	Integer int64

	// Real is a PDF real number.
	Real float64

	// String is a decoded PDF string (literal or hex), with UTF-16BE
	// text strings already converted to UTF-8.
	String string

	// Name is a PDF name with #xx escapes resolved, without the slash.
	Name string

	// Array is a PDF array.
	Array []Object

	// Dict is a PDF dictionary.
	Dict map[Name]Object

	// Ref is an indirect object reference.
	Ref struct {
		Num int
		Gen int
	}
)

func (d Dict) name(key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

func (d Dict) str(key Name) (string, bool) {
	s, ok := d[key].(String)
	return string(s), ok
}

func (d Dict) int(key Name) (int64, bool) {
	switch v := d[key].(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}
