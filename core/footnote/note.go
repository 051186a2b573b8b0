// Package footnote pairs footnote reference markers with their definitions
// and renumbers or repositions them.
//
// A marker is any element with class "note-id". Its block is the nearest
// paragraph, division or heading ancestor. Markers whose block carries class
// "note" are definitions; all others are references. Definitions are matched
// to pending references by decoded ordinal.
//
// Typical use, one Engine per document:
//
//	res := footnote.Process(doc, footnote.BlockEnd, footnote.Options{File: name})
//	if res.Dirty {
//		out, err := doc.Serialize()
//		...
//	}
package footnote

import (
	"github.com/FocuswithJustin/FootnoteTool/core/dom"
)

// Fixed class conventions.
const (
	ClassMarker = "note-id"
	ClassNote   = "note"
	ClassPart   = "part"
)

// Status is the pairing state of a Note.
type Status int

const (
	StatusPending Status = iota
	StatusPaired
	StatusOrphan
)

func (s Status) String() string {
	switch s {
	case StatusPaired:
		return "paired"
	case StatusOrphan:
		return "orphan"
	default:
		return "pending"
	}
}

// Note is a reference marker and, once matched, its definition.
type Note struct {
	OriginNum    int // ordinal decoded from the reference marker
	ClusterNum   int // run of references this note belongs to, from 1
	NewNum       int // number assigned by repositioning, 0 if untouched
	WholeFileSeq int // document order among references, from 1

	RefBlock  dom.Element
	RefMarker dom.Element
	DefBlock  dom.Element
	DefMarker dom.Element

	Status Status
}

// Role tells whether an orphan marker was a reference or a definition.
type Role int

const (
	RoleReference Role = iota
	RoleDefinition
)

func (r Role) String() string {
	if r == RoleDefinition {
		return "definition"
	}
	return "reference"
}

// Orphan is a marker that could not be paired. Orphans stay in the tree
// untouched.
type Orphan struct {
	Marker  dom.Element
	Block   dom.Element
	Ordinal int
	Role    Role
	Err     error
}

// Layout is the detected placement of definitions.
type Layout int

const (
	// LayoutInterleaved means definitions follow the references they close
	// before later references start.
	LayoutInterleaved Layout = iota
	// LayoutPageEnd means all definitions come after all references.
	LayoutPageEnd
)

func (l Layout) String() string {
	if l == LayoutPageEnd {
		return "page-end"
	}
	return "interleaved"
}

// Pairing is the output of the pairing walk.
type Pairing struct {
	// Notes holds matched notes in definition-match order.
	Notes []*Note
	// Orphans holds markers rejected during the walk, in document order.
	Orphans []Orphan
	// Unmatched holds references still pending at the end of the walk,
	// in document order.
	Unmatched []*Note
	Layout    Layout
}

// Paired returns the notes eligible for renumbering and repositioning.
func (p *Pairing) Paired() []*Note {
	out := make([]*Note, 0, len(p.Notes))
	for _, n := range p.Notes {
		if n.Status == StatusPaired {
			out = append(out, n)
		}
	}
	return out
}
