// Package html provides the element tree for content documents that are not
// well-formed XML. It is backed by golang.org/x/net/html and follows the
// HTML5 parsing algorithm, so the serialized output is HTML, not XHTML.
package html

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
)

// Document is a parsed HTML document.
type Document struct {
	root *html.Node
}

// Element is a dom.Element backed by an html element node.
type Element struct {
	node *html.Node
}

var (
	_ dom.Document = (*Document)(nil)
	_ dom.Element  = Element{}
)

// Parse parses HTML markup. The HTML5 algorithm accepts any input, so errors
// only come from the reader.
func Parse(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &Document{root: root}, nil
}

// ElementsByClass walks the tree in document order.
func (d *Document) ElementsByClass(class string) []dom.Element {
	var result []dom.Element
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && dom.HasClassToken(attr(n, "class"), class) {
			result = append(result, Element{node: n})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(d.root)
	return result
}

// Serialize renders the tree as HTML.
func (d *Document) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return nil, fmt.Errorf("serializing HTML: %w", err)
	}
	return buf.Bytes(), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func wrap(n *html.Node) dom.Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return Element{node: n}
}

func (e Element) Kind() dom.Kind {
	return dom.KindOf(e.node.Data)
}

func (e Element) Tag() string {
	return e.node.Data
}

func (e Element) ClassName() string {
	return attr(e.node, "class")
}

func (e Element) HasClass(class string) bool {
	return dom.HasClassToken(e.ClassName(), class)
}

func (e Element) SetClassName(class string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == "class" {
			e.node.Attr[i].Val = class
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: "class", Val: class})
}

func (e Element) Text() string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(e.node)
	return b.String()
}

func (e Element) SetText(text string) {
	for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
		e.node.RemoveChild(c)
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (e Element) Parent() dom.Element {
	return wrap(e.node.Parent)
}

func (e Element) NextElementSibling() dom.Element {
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return Element{node: s}
		}
	}
	return nil
}

func (e Element) detach(other dom.Element) (*html.Node, error) {
	o, ok := other.(Element)
	if !ok {
		return nil, dom.ErrForeignElement
	}
	if e.node.Parent == nil {
		return nil, dom.ErrInvalidMove
	}
	for a := e.node; a != nil; a = a.Parent {
		if a == o.node {
			return nil, dom.ErrInvalidMove
		}
	}
	if o.node.Parent != nil {
		o.node.Parent.RemoveChild(o.node)
	}
	return o.node, nil
}

// InsertAfter moves other to immediately follow e.
func (e Element) InsertAfter(other dom.Element) error {
	n, err := e.detach(other)
	if err != nil {
		return err
	}
	e.node.Parent.InsertBefore(n, e.node.NextSibling)
	return nil
}

// InsertBefore moves other to immediately precede e.
func (e Element) InsertBefore(other dom.Element) error {
	n, err := e.detach(other)
	if err != nil {
		return err
	}
	e.node.Parent.InsertBefore(n, e.node)
	return nil
}

// Position is unknown for this backend; the tokenizer does not expose it.
func (e Element) Position() dom.Position {
	return dom.Position{}
}

func (e Element) Markup() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.node); err != nil {
		return ""
	}
	return buf.String()
}
