// Package dom defines the element-tree abstraction the footnote engine works
// on. Concrete trees live in core/xml (well-formed XHTML) and core/html
// (tag-soup HTML).
package dom

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrForeignElement is returned when an element from another tree
	// implementation is passed to a mutation method.
	ErrForeignElement = errors.New("element belongs to a different document backend")
	// ErrInvalidMove is returned when an element would be moved inside itself.
	ErrInvalidMove = errors.New("cannot move an element relative to itself or its descendant")
)

// Kind classifies an element by the structural role of its tag.
type Kind int

const (
	// KindOther is any element that is not a structural container.
	KindOther Kind = iota
	// KindParagraph is a <p> element.
	KindParagraph
	// KindDivision is a <div> element.
	KindDivision
	// KindHeading is an <h1> .. <h6> element.
	KindHeading
)

// IsBlock reports whether elements of this kind can own footnote markers.
func (k Kind) IsBlock() bool {
	return k == KindParagraph || k == KindDivision || k == KindHeading
}

func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindDivision:
		return "division"
	case KindHeading:
		return "heading"
	default:
		return "other"
	}
}

// KindOf maps a local tag name to its Kind. Matching is case-insensitive.
func KindOf(tag string) Kind {
	switch strings.ToLower(tag) {
	case "p":
		return KindParagraph
	case "div":
		return KindDivision
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return KindHeading
	default:
		return KindOther
	}
}

// Position is a source location. Zero values mean unknown.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Element is a mutable element node borrowed from a Document.
//
// Implementations must be comparable so that two Elements referring to the
// same node compare equal with ==.
type Element interface {
	Kind() Kind
	Tag() string
	ClassName() string
	HasClass(class string) bool
	SetClassName(class string)

	// Text returns the concatenated text content of the element.
	Text() string
	// SetText replaces all children with a single text node.
	SetText(text string)

	// Parent returns the parent element, or nil at the root.
	Parent() Element
	// NextElementSibling skips text and comment nodes.
	NextElementSibling() Element

	// InsertBefore detaches e from its current place and inserts it
	// immediately before the receiver.
	InsertBefore(e Element) error
	// InsertAfter detaches e from its current place and inserts it
	// immediately after the receiver.
	InsertAfter(e Element) error

	Position() Position
	// Markup returns the serialized element including its own tags.
	Markup() string
}

// Document is a parsed markup document.
type Document interface {
	// ElementsByClass returns every element carrying class, in document order.
	ElementsByClass(class string) []Element
	// Serialize renders the (possibly mutated) tree back to markup.
	Serialize() ([]byte, error)
}

// HasClassToken reports whether a whitespace separated class attribute
// contains class.
func HasClassToken(classAttr, class string) bool {
	for _, token := range strings.Fields(classAttr) {
		if token == class {
			return true
		}
	}
	return false
}

// Ancestor returns the nearest proper ancestor of e for which match reports
// true, or nil.
func Ancestor(e Element, match func(Element) bool) Element {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if match(p) {
			return p
		}
	}
	return nil
}

// NextSiblingWithClass scans forward from e and returns the first following
// sibling element that carries class, or nil.
func NextSiblingWithClass(e Element, class string) Element {
	for s := e.NextElementSibling(); s != nil; s = s.NextElementSibling() {
		if s.HasClass(class) {
			return s
		}
	}
	return nil
}
