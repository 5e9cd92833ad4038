package pdfread

import "fmt"

// OutlineItem is one native outline (bookmark) entry. Page is the 1-based
// target page as PDF viewers present it; zero means the target could not be
// resolved.
type OutlineItem struct {
	Title    string
	Page     int
	Children []OutlineItem
}

const (
	maxPageTreeDepth = 64
	maxOutlineItems  = 10000
)

// Pages walks the page tree and returns page object references in document
// order.
func (r *Reader) Pages() ([]Ref, error) {
	cat, err := r.catalog()
	if err != nil {
		return nil, err
	}
	rootRef, ok := cat["Pages"].(Ref)
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no page tree", errSyntax)
	}
	var pages []Ref
	visited := map[Ref]bool{}
	if err := r.walkPages(rootRef, visited, 0, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *Reader) walkPages(ref Ref, visited map[Ref]bool, depth int, out *[]Ref) error {
	if depth > maxPageTreeDepth || visited[ref] {
		return fmt.Errorf("%w: malformed page tree", errSyntax)
	}
	visited[ref] = true

	node, ok := r.dict(ref)
	if !ok {
		return fmt.Errorf("%w: page tree node %d is not a dictionary", errSyntax, ref.Num)
	}
	typ, _ := node.name("Type")
	switch typ {
	case "Page":
		*out = append(*out, ref)
		return nil
	case "Pages":
		kids, _ := r.Resolve(node["Kids"]).(Array)
		for _, kid := range kids {
			kidRef, ok := kid.(Ref)
			if !ok {
				continue
			}
			if err := r.walkPages(kidRef, visited, depth+1, out); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unexpected page tree node type %q", errSyntax, typ)
}

// Outline returns the native outline hierarchy, empty when the document has
// none.
func (r *Reader) Outline() []OutlineItem {
	cat, err := r.catalog()
	if err != nil {
		return nil
	}
	outlines, ok := r.dict(cat["Outlines"])
	if !ok {
		return nil
	}
	pages, err := r.Pages()
	if err != nil {
		return nil
	}
	pageNum := make(map[Ref]int, len(pages))
	for i, ref := range pages {
		pageNum[ref] = i + 1
	}

	count := 0
	return r.walkOutline(outlines["First"], cat, pageNum, map[Ref]bool{}, &count)
}

func (r *Reader) walkOutline(first Object, cat Dict, pageNum map[Ref]int, visited map[Ref]bool, count *int) []OutlineItem {
	var items []OutlineItem
	node := first
	for {
		ref, ok := node.(Ref)
		if !ok || visited[ref] || *count >= maxOutlineItems {
			return items
		}
		visited[ref] = true
		*count++

		d, ok := r.dict(ref)
		if !ok {
			return items
		}
		title, _ := d.str("Title")
		item := OutlineItem{
			Title: title,
			Page:  r.destPage(d, cat, pageNum),
		}
		item.Children = r.walkOutline(d["First"], cat, pageNum, visited, count)
		items = append(items, item)
		node = d["Next"]
	}
}

// destPage resolves an outline item's destination to a 1-based page
// number. Supports direct destination arrays, GoTo actions, and named
// destinations registered in the catalog /Dests dictionary.
func (r *Reader) destPage(item Dict, cat Dict, pageNum map[Ref]int) int {
	dest := r.Resolve(item["Dest"])
	if _, isNull := dest.(Null); isNull || dest == nil {
		if action, ok := r.dict(item["A"]); ok {
			if s, _ := action.name("S"); s == "GoTo" {
				dest = r.Resolve(action["D"])
			}
		}
	}

	// Named destination: one lookup level through /Dests.
	if name, ok := destKey(dest); ok {
		dests, ok := r.dict(cat["Dests"])
		if !ok {
			return 0
		}
		dest = r.Resolve(dests[name])
		if d, ok := dest.(Dict); ok {
			dest = r.Resolve(d["D"])
		}
	}

	arr, ok := dest.(Array)
	if !ok || len(arr) == 0 {
		return 0
	}
	pageRef, ok := arr[0].(Ref)
	if !ok {
		return 0
	}
	return pageNum[pageRef]
}

func destKey(dest Object) (Name, bool) {
	switch v := dest.(type) {
	case Name:
		return v, true
	case String:
		return Name(v), true
	}
	return "", false
}
