package pdfread

import (
	"bytes"
	"fmt"
	"os"
)

// Reader exposes the parsed structure of one PDF file. It is not safe for
// concurrent use.
type Reader struct {
	data    []byte
	xref    map[int]int64
	trailer Dict
	cache   map[int]Object
}

// ReadFile parses the file at path.
func ReadFile(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(data)
}

// New parses an in-memory PDF.
func New(data []byte) (*Reader, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", errSyntax)
	}
	r := &Reader{
		data:    data,
		xref:    make(map[int]int64),
		trailer: make(Dict),
		cache:   make(map[int]Object),
	}
	if err := r.parseXref(); err != nil {
		return nil, err
	}
	return r, nil
}

// Trailer returns the merged trailer dictionary.
func (r *Reader) Trailer() Dict {
	return r.trailer
}

// object parses the indirect object with the given number. Missing or
// malformed objects come back as Null.
func (r *Reader) object(num int) Object {
	if obj, ok := r.cache[num]; ok {
		return obj
	}
	r.cache[num] = Null{} // breaks reference cycles during parse
	off, ok := r.xref[num]
	if !ok || off < 0 || off >= int64(len(r.data)) {
		return Null{}
	}
	l := &lexer{data: r.data, pos: int(off)}
	objNum := l.keyword()
	gen := l.keyword()
	if objNum != fmt.Sprint(num) || gen == "" {
		return Null{}
	}
	if err := l.expectKeyword("obj"); err != nil {
		return Null{}
	}
	obj, err := l.parseObject()
	if err != nil {
		return Null{}
	}
	r.cache[num] = obj
	return obj
}

const maxRefDepth = 32

// Resolve chases indirect references down to a direct object.
func (r *Reader) Resolve(obj Object) Object {
	for i := 0; i < maxRefDepth; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		obj = r.object(ref.Num)
	}
	return Null{}
}

func (r *Reader) dict(obj Object) (Dict, bool) {
	d, ok := r.Resolve(obj).(Dict)
	return d, ok
}

func (r *Reader) catalog() (Dict, error) {
	root, ok := r.dict(r.trailer["Root"])
	if !ok {
		return nil, fmt.Errorf("%w: document catalog not found", errSyntax)
	}
	return root, nil
}

// Info holds the document information dictionary fields. Dates stay in the
// raw D: form; ParseDate interprets them.
type Info struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
}

// Info reads the trailer's information dictionary. Absent fields are empty.
func (r *Reader) Info() Info {
	var info Info
	d, ok := r.dict(r.trailer["Info"])
	if !ok {
		return info
	}
	get := func(key Name) string {
		s, _ := r.Resolve(d[key]).(String)
		return string(s)
	}
	info.Title = get("Title")
	info.Author = get("Author")
	info.Subject = get("Subject")
	info.Keywords = get("Keywords")
	info.Creator = get("Creator")
	info.Producer = get("Producer")
	info.CreationDate = get("CreationDate")
	info.ModDate = get("ModDate")
	return info
}
