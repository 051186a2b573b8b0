package footnote

import (
	"strings"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
	"github.com/FocuswithJustin/FootnoteTool/core/numeral"
)

// Reposition applies policy to the paired notes of p. Orphans, unmatched
// references and notes whose reference was flagged as duplicate are left
// alone.
func (e *Engine) Reposition(p *Pairing, policy Policy) *Result {
	strategy := policy.Strategy(p.Layout)
	notes := p.Paired()

	switch strategy {
	case StrategyInline:
		e.inline(notes)
	case StrategyBlockEnd:
		e.blockEnd(notes)
	case StrategyPartEnd:
		e.partEnd(notes)
	default:
		e.renumber(notes)
	}

	return &Result{
		Pairing:     p,
		Policy:      policy,
		Strategy:    strategy,
		Dirty:       e.dirty,
		MaxSeq:      e.maxSeq,
		Diagnostics: e.Diagnostics(),
	}
}

// renumber restarts numbering at every cluster boundary and moves nothing.
func (e *Engine) renumber(notes []*Note) {
	counter := 0
	for i, n := range notes {
		if i == 0 || n.ClusterNum != notes[i-1].ClusterNum {
			counter = 1
		} else {
			counter++
		}
		e.assign(n, counter)
	}
}

// blockEnd places each block's definitions, in order, right after the block.
func (e *Engine) blockEnd(notes []*Note) {
	var (
		block   dom.Element
		last    dom.Element
		counter int
	)
	for _, n := range notes {
		if n.RefBlock != block {
			block = n.RefBlock
			counter = 1
			e.moveAfter(n.RefBlock, n)
		} else {
			counter++
			e.moveAfter(last, n)
		}
		last = n.DefBlock
		e.assign(n, counter)
	}
}

// partEnd places definitions before the next part boundary following the
// reference block, or after the block when no boundary follows it. Notes
// sharing a boundary (or a reference block) form one group.
func (e *Engine) partEnd(notes []*Note) {
	for i := 0; i < len(notes); {
		boundary := dom.NextSiblingWithClass(notes[i].RefBlock, ClassPart)
		key := partKey(notes[i].RefBlock, boundary)
		j := i + 1
		for j < len(notes) && partKey(notes[j].RefBlock, dom.NextSiblingWithClass(notes[j].RefBlock, ClassPart)) == key {
			j++
		}
		group := notes[i:j]

		placed := boundary != nil && chained(group, boundary)
		var last dom.Element
		for k, n := range group {
			switch {
			case placed:
			case k > 0:
				e.moveAfter(last, n)
			case boundary != nil:
				e.moveBefore(boundary, n)
			default:
				e.moveAfter(n.RefBlock, n)
			}
			last = n.DefBlock
			e.assign(n, k+1)
		}
		i = j
	}
}

func partKey(ref, boundary dom.Element) dom.Element {
	if boundary != nil {
		return boundary
	}
	return ref
}

// chained reports whether the group's definitions already run, in order,
// directly up to boundary.
func chained(group []*Note, boundary dom.Element) bool {
	for k, n := range group {
		want := boundary
		if k+1 < len(group) {
			want = group[k+1].DefBlock
		}
		if n.DefBlock.NextElementSibling() != want {
			return false
		}
	}
	return true
}

// inline replaces each reference marker with its definition's text and tags
// it as a note. Definitions stay where they are.
func (e *Engine) inline(notes []*Note) {
	for _, n := range notes {
		e.setText(n.RefMarker, definitionText(n))
		if n.RefMarker.ClassName() != ClassNote {
			n.RefMarker.SetClassName(ClassNote)
			e.dirty = true
		}
	}
}

// definitionText is the definition block's text without its leading marker.
func definitionText(n *Note) string {
	body := strings.TrimSpace(n.DefBlock.Text())
	mark := strings.TrimSpace(n.DefMarker.Text())
	if strings.HasPrefix(body, mark) {
		return strings.TrimSpace(body[len(mark):])
	}
	return strings.TrimSpace(strings.Replace(body, mark, "", 1))
}

func (e *Engine) assign(n *Note, num int) {
	n.NewNum = num
	if num > e.maxSeq {
		e.maxSeq = num
	}
	glyph := numeral.Glyph(num)
	e.setText(n.RefMarker, glyph)
	e.setText(n.DefMarker, glyph)
}

func (e *Engine) setText(el dom.Element, text string) {
	if strings.TrimSpace(el.Text()) == text {
		return
	}
	el.SetText(text)
	e.dirty = true
}

// moveAfter places n's definition block immediately after anchor.
func (e *Engine) moveAfter(anchor dom.Element, n *Note) {
	if anchor.NextElementSibling() == n.DefBlock {
		return
	}
	if err := anchor.InsertAfter(n.DefBlock); err != nil {
		e.report(KindMove, n.DefMarker, err, "cannot move definition %d: %v", n.OriginNum, err)
		return
	}
	e.dirty = true
}

// moveBefore places n's definition block immediately before anchor.
func (e *Engine) moveBefore(anchor dom.Element, n *Note) {
	if n.DefBlock.NextElementSibling() == anchor {
		return
	}
	if err := anchor.InsertBefore(n.DefBlock); err != nil {
		e.report(KindMove, n.DefMarker, err, "cannot move definition %d: %v", n.OriginNum, err)
		return
	}
	e.dirty = true
}
