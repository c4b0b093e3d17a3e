package parser

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// LinkDest is the destination of an inline link or image in a markdown
// source. src[Start:Stop] is the destination as written, without angle
// brackets. Dest has backslash escapes removed.
type LinkDest struct {
	Start, Stop int
	Angled      bool
	Dest        string
}

// MarkdownLinks locates the destinations of inline links and images in
// src, in source order. Text inside code spans, code blocks and raw HTML is
// never reported. Reference definitions and autolinks are left out.
func MarkdownLinks(src []byte) []LinkDest {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	dests := make(map[string]bool)
	var skip []text.Segment
	addLines := func(lines *text.Segments) {
		if lines == nil {
			return
		}
		for i := range lines.Len() {
			skip = append(skip, lines.At(i))
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			dests[string(util.UnescapePunctuations(node.Destination))] = true
		case *ast.Image:
			dests[string(util.UnescapePunctuations(node.Destination))] = true
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					skip = append(skip, t.Segment)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			addLines(node.Segments)
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			addLines(n.Lines())
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if len(dests) == 0 {
		return nil
	}

	inSkipped := func(at int) bool {
		for _, s := range skip {
			if at >= s.Start && at < s.Stop {
				return true
			}
		}
		return false
	}

	var links []LinkDest
	for i := 0; ; {
		j := bytes.Index(src[i:], []byte("]("))
		if j < 0 {
			break
		}
		at := i + j
		i = at + 2
		if escaped(src, at) || inSkipped(at) {
			continue
		}
		l, ok := scanDestination(src, at+2)
		if !ok || !dests[l.Dest] {
			continue
		}
		links = append(links, l)
		i = l.Stop
	}
	return links
}

// scanDestination reads a link destination starting at i, the byte after
// "](", the way goldmark does.
func scanDestination(src []byte, i int) (LinkDest, bool) {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < len(src) && src[i] == '\n' {
		i++
		for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
			i++
		}
	}
	if i >= len(src) {
		return LinkDest{}, false
	}

	if src[i] == '<' {
		start := i + 1
		for k := start; k < len(src) && src[k] != '\n'; k++ {
			if src[k] == '\\' && k+1 < len(src) && util.IsPunct(src[k+1]) {
				k++
				continue
			}
			if src[k] == '>' {
				return newLinkDest(src, start, k, true), true
			}
		}
		return LinkDest{}, false
	}

	opened := 0
	k := i
loop:
	for ; k < len(src); k++ {
		switch c := src[k]; {
		case c == '\\' && k+1 < len(src) && util.IsPunct(src[k+1]):
			k++
		case c == '(':
			opened++
		case c == ')':
			opened--
			if opened < 0 {
				break loop
			}
		case util.IsSpace(c):
			break loop
		}
	}
	if k == i {
		return LinkDest{}, false
	}
	return newLinkDest(src, i, k, false), true
}

func newLinkDest(src []byte, start, stop int, angled bool) LinkDest {
	return LinkDest{
		Start:  start,
		Stop:   stop,
		Angled: angled,
		Dest:   string(util.UnescapePunctuations(src[start:stop])),
	}
}

// escaped reports whether the byte at i follows an odd run of backslashes.
func escaped(src []byte, i int) bool {
	n := 0
	for k := i - 1; k >= 0 && src[k] == '\\'; k-- {
		n++
	}
	return n%2 == 1
}
