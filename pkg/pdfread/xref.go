package pdfread

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// parseXref locates the startxref pointer and walks the classic
// cross-reference table chain. Files without a classic table (1.5+
// cross-reference streams) or with a damaged one go through the object
// scan fallback instead.
func (r *Reader) parseXref() error {
	offset, ok := r.findStartXref()
	if !ok {
		return r.scanObjects()
	}
	seen := map[int64]bool{}
	for {
		if offset < 0 || offset >= int64(len(r.data)) || seen[offset] {
			return r.scanObjects()
		}
		seen[offset] = true

		l := &lexer{data: r.data, pos: int(offset)}
		if err := l.expectKeyword("xref"); err != nil {
			return r.scanObjects()
		}
		trailer, err := r.parseXrefSections(l)
		if err != nil {
			return r.scanObjects()
		}
		for k, v := range trailer {
			if _, exists := r.trailer[k]; !exists {
				r.trailer[k] = v
			}
		}
		prev, ok := trailer.int("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if _, ok := r.trailer["Root"]; !ok {
		return r.scanObjects()
	}
	return nil
}

func (r *Reader) parseXrefSections(l *lexer) (Dict, error) {
	for {
		l.skipSpace()
		save := l.pos
		kw := l.keyword()
		if kw == "trailer" {
			obj, err := l.parseObject()
			if err != nil {
				return nil, err
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("%w: trailer is not a dictionary", errSyntax)
			}
			return trailer, nil
		}

		start, err := strconv.Atoi(kw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad xref section at %d", errSyntax, save)
		}
		count, err := strconv.Atoi(l.keyword())
		if err != nil {
			return nil, fmt.Errorf("%w: bad xref section count", errSyntax)
		}
		for i := 0; i < count; i++ {
			off, err := strconv.ParseInt(l.keyword(), 10, 64)
			if err != nil {
				return nil, err
			}
			if _, err := strconv.Atoi(l.keyword()); err != nil {
				return nil, err
			}
			flag := l.keyword()
			if flag != "n" && flag != "f" {
				return nil, fmt.Errorf("%w: bad xref entry flag %q", errSyntax, flag)
			}
			num := start + i
			// Entries from newer tables were recorded first and win.
			if _, exists := r.xref[num]; !exists && flag == "n" {
				r.xref[num] = off
			}
		}
	}
}

func (r *Reader) findStartXref() (int64, bool) {
	tail := r.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, false
	}
	l := &lexer{data: tail, pos: idx + len("startxref")}
	off, err := strconv.ParseInt(l.keyword(), 10, 64)
	if err != nil {
		return 0, false
	}
	return off, true
}

var objHeaderRe = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj\b`)

// scanObjects rebuilds the cross-reference map by scanning the whole file
// for indirect object headers. Later definitions override earlier ones,
// matching incremental-update semantics. Objects packed inside object
// streams are not recovered.
func (r *Reader) scanObjects() error {
	r.xref = make(map[int]int64)
	for _, m := range objHeaderRe.FindAllSubmatchIndex(r.data, -1) {
		// Reject matches whose number run continues leftwards (e.g. the
		// tail of a larger token).
		if m[2] > 0 && isRegular(r.data[m[2]-1]) {
			continue
		}
		num, err := strconv.Atoi(string(r.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		r.xref[num] = int64(m[0])
	}
	if len(r.xref) == 0 {
		return fmt.Errorf("%w: no indirect objects found", errSyntax)
	}

	// Prefer an explicit trailer for Root/Info; the newest one wins.
	for _, idx := range allIndices(r.data, []byte("trailer")) {
		l := &lexer{data: r.data, pos: idx + len("trailer")}
		obj, err := l.parseObject()
		if err != nil {
			continue
		}
		if trailer, ok := obj.(Dict); ok {
			for k, v := range trailer {
				r.trailer[k] = v
			}
		}
	}
	if _, ok := r.trailer["Root"]; ok {
		return nil
	}

	// No usable trailer: find the catalog directly.
	for num := range r.xref {
		if dict, ok := r.object(num).(Dict); ok {
			if typ, ok := dict.name("Type"); ok && typ == "Catalog" {
				r.trailer["Root"] = Ref{Num: num}
				return nil
			}
		}
	}
	return fmt.Errorf("%w: document catalog not found", errSyntax)
}

func allIndices(data, sep []byte) []int {
	var out []int
	for base := 0; ; {
		idx := bytes.Index(data[base:], sep)
		if idx < 0 {
			return out
		}
		out = append(out, base+idx)
		base += idx + len(sep)
	}
}
