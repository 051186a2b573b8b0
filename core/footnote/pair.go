package footnote

import (
	"sort"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
	"github.com/FocuswithJustin/FootnoteTool/core/numeral"
)

// walk is the state of one document-order pass over all markers.
type walk struct {
	pending map[int]*Note

	prevRefBlock dom.Element
	prevRef      *Note
	prevMatched  *Note

	cluster   int
	seq       int
	completed int
	// closed is set when a pairing completes and cleared by the next
	// reference, which then starts a new cluster.
	closed  bool
	pageEnd bool

	out *Pairing
}

func isBlock(e dom.Element) bool {
	return e.Kind().IsBlock()
}

// Pair walks every marker of doc in document order and matches definitions
// to references. It never fails: markers it cannot place become orphans or
// are skipped, and each such event is reported as a diagnostic.
func (e *Engine) Pair(doc dom.Document) *Pairing {
	w := &walk{
		pending: make(map[int]*Note),
		cluster: 1,
		pageEnd: true,
		out:     &Pairing{},
	}

	for _, marker := range doc.ElementsByClass(ClassMarker) {
		block := dom.Ancestor(marker, isBlock)
		if block == nil {
			e.report(KindStructural, marker, ErrNoBlock, "marker is not inside a paragraph, division or heading")
			continue
		}
		ordinal := numeral.Decode(marker.Text())
		if ordinal == 0 {
			e.report(KindDecode, marker, ErrUndecodable, "invalid note number %q", marker.Text())
			continue
		}
		if block.HasClass(ClassNote) {
			e.definition(w, block, marker, ordinal)
		} else {
			e.reference(w, block, marker, ordinal)
		}
	}

	for _, n := range w.pending {
		w.out.Unmatched = append(w.out.Unmatched, n)
	}
	sort.Slice(w.out.Unmatched, func(i, j int) bool {
		return w.out.Unmatched[i].WholeFileSeq < w.out.Unmatched[j].WholeFileSeq
	})
	for _, n := range w.out.Unmatched {
		e.report(KindUnmatchedReference, n.RefMarker, ErrUnmatchedReference, "note %d has no definition", n.OriginNum)
	}

	if w.pageEnd {
		w.out.Layout = LayoutPageEnd
	} else {
		w.out.Layout = LayoutInterleaved
	}
	return w.out
}

func (e *Engine) reference(w *walk, block, marker dom.Element, ordinal int) {
	if w.closed {
		w.cluster++
		w.closed = false
	}
	w.seq++
	note := &Note{
		OriginNum:    ordinal,
		ClusterNum:   w.cluster,
		WholeFileSeq: w.seq,
		RefBlock:     block,
		RefMarker:    marker,
		Status:       StatusPending,
	}

	prev := 0
	if w.prevRef != nil {
		prev = w.prevRef.OriginNum
	}
	if block != w.prevRefBlock {
		if ordinal != 1 && ordinal != prev+1 {
			e.report(KindSequencing, marker, ErrOutOfOrder, "reference %d out of order, expected 1 or %d", ordinal, prev+1)
		}
	} else if ordinal != prev+1 {
		e.report(KindSequencing, marker, ErrOutOfOrder, "reference %d out of order, expected %d", ordinal, prev+1)
	}

	// The newer reference replaces the pending one even though it is the
	// marker flagged as orphan; the older reference can no longer be matched.
	if _, dup := w.pending[ordinal]; dup {
		e.report(KindDuplicateReference, marker, ErrDuplicateReference, "duplicate reference %d", ordinal)
		note.Status = StatusOrphan
		w.out.Orphans = append(w.out.Orphans, Orphan{
			Marker: marker, Block: block, Ordinal: ordinal, Role: RoleReference, Err: ErrDuplicateReference,
		})
	}
	w.pending[ordinal] = note

	if w.completed > 0 {
		w.pageEnd = false
	}
	w.prevRefBlock = block
	w.prevRef = note
}

func (e *Engine) definition(w *walk, block, marker dom.Element, ordinal int) {
	if w.prevMatched != nil && block == w.prevMatched.DefBlock {
		e.report(KindDuplicateDefinition, marker, ErrDuplicateDefinition, "definition %d shares a block with definition %d", ordinal, w.prevMatched.OriginNum)
		w.out.Orphans = append(w.out.Orphans, Orphan{
			Marker: marker, Block: block, Ordinal: ordinal, Role: RoleDefinition, Err: ErrDuplicateDefinition,
		})
		return
	}

	note, ok := w.pending[ordinal]
	if !ok {
		e.report(KindUnmatchedDefinition, marker, ErrUnmatchedDefinition, "no reference found for definition %d", ordinal)
		w.out.Orphans = append(w.out.Orphans, Orphan{
			Marker: marker, Block: block, Ordinal: ordinal, Role: RoleDefinition, Err: ErrUnmatchedDefinition,
		})
		return
	}
	delete(w.pending, ordinal)

	note.DefBlock = block
	note.DefMarker = marker
	if note.Status == StatusPending {
		note.Status = StatusPaired
	}
	if got := numeral.Decode(note.RefMarker.Text()); got != note.OriginNum {
		e.report(KindOrdinalMismatch, marker, ErrOrdinalMismatch, "reference reads %d but note is %d", got, note.OriginNum)
	}

	prev := 0
	if w.prevMatched != nil {
		prev = w.prevMatched.OriginNum
	}
	if ordinal != prev+1 {
		e.report(KindSequencing, marker, ErrOutOfOrder, "definition %d out of order, expected %d", ordinal, prev+1)
	}

	w.out.Notes = append(w.out.Notes, note)
	w.prevMatched = note
	w.completed++
	w.closed = true
}
