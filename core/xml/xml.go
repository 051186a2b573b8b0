// Package xml provides the XHTML element tree used for EPUB content documents.
// It wraps antchfx/xmlquery nodes behind the dom.Document and dom.Element
// interfaces and serializes them back without reformatting.
//
// Security Notes:
//   - Parsing uses Go's xml.Decoder through xmlquery, which never fetches
//     external entities. Only the predefined HTML entity table is expanded.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
)

// Document represents a parsed XHTML document.
type Document struct {
	root *xmlquery.Node
}

// Element is a dom.Element backed by an xmlquery element node.
// It is a comparable value: two Elements for the same node are ==.
type Element struct {
	node *xmlquery.Node
}

var (
	_ dom.Document = (*Document)(nil)
	_ dom.Element  = Element{}
)

// Parse parses well-formed XHTML. HTML named entities (&nbsp; etc.) are
// accepted; anything else that is not well-formed XML is an error.
func Parse(data []byte) (*Document, error) {
	return parse(data, true)
}

// ParseLenient parses markup with the decoder's non-strict mode, auto-closing
// HTML void elements. It is meant for XHTML files with minor defects.
func ParseLenient(data []byte) (*Document, error) {
	return parse(data, false)
}

func parse(data []byte, strict bool) (*Document, error) {
	opts := xmlquery.ParserOptions{
		WithLineNumbers: true,
		Decoder: &xmlquery.DecoderOptions{
			Strict: strict,
			Entity: xml.HTMLEntity,
		},
	}
	if !strict {
		opts.Decoder.AutoClose = xml.HTMLAutoClose
	}
	root, err := xmlquery.ParseWithOptions(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("parsing XHTML: %w", err)
	}
	return &Document{root: root}, nil
}

// classQueries caches compiled class selectors.
var classQueries sync.Map // class name -> *xpath.Expr

func classSelector(class string) (*xpath.Expr, error) {
	if expr, ok := classQueries.Load(class); ok {
		return expr.(*xpath.Expr), nil
	}
	if strings.ContainsAny(class, "'\" \t\n") {
		return nil, fmt.Errorf("invalid class name %q", class)
	}
	expr, err := xpath.Compile(fmt.Sprintf(
		"//*[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", class))
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	classQueries.Store(class, expr)
	return expr, nil
}

// ElementsByClass returns all elements whose class list contains class,
// in document order.
func (d *Document) ElementsByClass(class string) []dom.Element {
	expr, err := classSelector(class)
	if err != nil {
		return nil
	}
	nodes := xmlquery.QuerySelectorAll(d.root, expr)
	result := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, Element{node: n})
	}
	return result
}

// XPath executes an XPath query and returns matching elements.
func (d *Document) XPath(expr string) ([]Element, error) {
	// Compile the expression to check for errors
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	var result []Element
	for _, n := range xmlquery.QuerySelectorAll(d.root, compiled) {
		if n.Type == xmlquery.ElementNode {
			result = append(result, Element{node: n})
		}
	}
	return result, nil
}

// Serialize converts the document back to XHTML bytes. Whitespace is kept as
// parsed and childless elements are written as self-closing tags.
func (d *Document) Serialize() ([]byte, error) {
	if d.root == nil {
		return nil, fmt.Errorf("serializing XHTML: empty document")
	}
	var buf bytes.Buffer
	err := d.root.WriteWithOptions(&buf,
		xmlquery.WithPreserveSpace(),
		xmlquery.WithEmptyTagSupport(),
	)
	if err != nil {
		return nil, fmt.Errorf("serializing XHTML: %w", err)
	}
	return buf.Bytes(), nil
}

func wrap(n *xmlquery.Node) dom.Element {
	if n == nil || n.Type != xmlquery.ElementNode {
		return nil
	}
	return Element{node: n}
}

// Kind implements dom.Element.
func (e Element) Kind() dom.Kind {
	return dom.KindOf(e.node.Data)
}

// Tag returns the local element name.
func (e Element) Tag() string {
	return e.node.Data
}

// ClassName returns the raw class attribute.
func (e Element) ClassName() string {
	return e.node.SelectAttr("class")
}

// HasClass reports whether class is one of the element's class tokens.
func (e Element) HasClass(class string) bool {
	return dom.HasClassToken(e.ClassName(), class)
}

// SetClassName replaces the class attribute.
func (e Element) SetClassName(class string) {
	e.node.SetAttr("class", class)
}

// Text returns the text content of the element and its descendants.
func (e Element) Text() string {
	return e.node.InnerText()
}

// SetText replaces the element's children with a single text node.
func (e Element) SetText(text string) {
	for child := e.node.FirstChild; child != nil; {
		next := child.NextSibling
		xmlquery.RemoveFromTree(child)
		child = next
	}
	xmlquery.AddChild(e.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

// Parent returns the parent element, or nil for the root element.
func (e Element) Parent() dom.Element {
	return wrap(e.node.Parent)
}

// NextElementSibling returns the next sibling that is an element.
func (e Element) NextElementSibling() dom.Element {
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == xmlquery.ElementNode {
			return Element{node: s}
		}
	}
	return nil
}

func (e Element) movable(other dom.Element) (*xmlquery.Node, error) {
	o, ok := other.(Element)
	if !ok {
		return nil, dom.ErrForeignElement
	}
	for a := e.node; a != nil; a = a.Parent {
		if a == o.node {
			return nil, dom.ErrInvalidMove
		}
	}
	return o.node, nil
}

// InsertAfter moves other to immediately follow e.
func (e Element) InsertAfter(other dom.Element) error {
	n, err := e.movable(other)
	if err != nil {
		return err
	}
	xmlquery.RemoveFromTree(n)
	xmlquery.AddImmediateSibling(e.node, n)
	return nil
}

// InsertBefore moves other to immediately precede e.
func (e Element) InsertBefore(other dom.Element) error {
	n, err := e.movable(other)
	if err != nil {
		return err
	}
	xmlquery.RemoveFromTree(n)
	if prev := e.node.PrevSibling; prev != nil {
		xmlquery.AddImmediateSibling(prev, n)
		return nil
	}
	n.Parent = e.node.Parent
	n.PrevSibling = nil
	n.NextSibling = e.node
	e.node.PrevSibling = n
	if n.Parent != nil {
		n.Parent.FirstChild = n
	}
	return nil
}

// Position returns the source line. Columns are not tracked by xmlquery.
func (e Element) Position() dom.Position {
	return dom.Position{Line: e.node.GetLineNumber()}
}

// Markup returns the serialized element.
func (e Element) Markup() string {
	return e.node.OutputXMLWithOptions(
		xmlquery.WithOutputSelf(),
		xmlquery.WithPreserveSpace(),
		xmlquery.WithEmptyTagSupport(),
	)
}

// Attr returns the value of a specific attribute.
func (e Element) Attr(name string) string {
	return e.node.SelectAttr(name)
}
