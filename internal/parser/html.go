package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/pagekeep/internal/document"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PayloadID is the id of the hidden span holding the page document.
const PayloadID = "page_json_str"

// ErrNoPayload is returned when a page has no embedded document.
var ErrNoPayload = errors.New("page document not found")

// pageTemplate is the skeleton every rendered page starts from.
const pageTemplate = `<!DOCTYPE html><html><head><title></title><meta charset="UTF-8"/><script src="/wc.js"></script>
<link rel="stylesheet" href="/wc.css"/>
<style type="text/css"></style>
</head><body onload="bodyOnload()"><span id="page_json_str" style="display: none"></span></body></html>
`

// ParseHTML parses page bytes into a DOM tree.
func ParseHTML(src []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractDocument reads the document embedded in the payload span of doc.
func ExtractDocument(doc *html.Node) (*document.Document, error) {
	span := findPayload(doc)
	if span == nil {
		return nil, ErrNoPayload
	}
	text := span.FirstChild
	if text == nil || text.Type != html.TextNode {
		return nil, fmt.Errorf("%w: payload span has no text", ErrNoPayload)
	}
	d, err := document.Parse([]byte(text.Data))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Render builds page bytes for d: the page template with <title> set to the
// document title and the document JSON as the payload span's only child.
func Render(d *document.Document) ([]byte, error) {
	payload, err := d.Marshal()
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(pageTemplate))
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	if title := findElement(doc, atom.Title); title != nil {
		title.AppendChild(&html.Node{Type: html.TextNode, Data: d.Title()})
	}

	span := findPayload(doc)
	if span == nil {
		return nil, ErrNoPayload
	}
	for c := span.FirstChild; c != nil; c = span.FirstChild {
		span.RemoveChild(c)
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: string(payload)})

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func findPayload(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Span && attr(n, "id") == PayloadID {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findPayload(c); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}
