package footnote_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
	"github.com/FocuswithJustin/FootnoteTool/core/footnote"
	htmldoc "github.com/FocuswithJustin/FootnoteTool/core/html"
	xmldoc "github.com/FocuswithJustin/FootnoteTool/core/xml"
)

var backends = []struct {
	name  string
	parse func([]byte) (dom.Document, error)
}{
	{"xhtml", func(b []byte) (dom.Document, error) { return xmldoc.Parse(b) }},
	{"html", func(b []byte) (dom.Document, error) { return htmldoc.Parse(b) }},
}

func page(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>t</title></head><body>` + body + `</body></html>`)
}

func mustParse(t *testing.T, parse func([]byte) (dom.Document, error), body string) dom.Document {
	t.Helper()
	doc, err := parse(page(body))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

// find returns the single element tagged with a test-only class.
func find(t *testing.T, doc dom.Document, class string) dom.Element {
	t.Helper()
	els := doc.ElementsByClass(class)
	if len(els) != 1 {
		t.Fatalf("expected one element with class %q, got %d", class, len(els))
	}
	return els[0]
}

func markerTexts(doc dom.Document) []string {
	var out []string
	for _, m := range doc.ElementsByClass(footnote.ClassMarker) {
		out = append(out, strings.TrimSpace(m.Text()))
	}
	return out
}

func countKind(diags []footnote.Diagnostic, target error) int {
	n := 0
	for _, d := range diags {
		if errors.Is(d, target) {
			n++
		}
	}
	return n
}

const pageEndBody = `
<p>A<a class="note-id">①</a> B<a class="note-id">②</a> C<a class="note-id">③</a></p>
<p class="note"><a class="note-id">①</a> one</p>
<p class="note"><a class="note-id">②</a> two</p>
<p class="note"><a class="note-id">③</a> three</p>`

func TestPair_PageEnd(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, pageEndBody)
			p := footnote.New(footnote.Options{}).Pair(doc)

			if len(p.Notes) != 3 {
				t.Fatalf("expected 3 notes, got %d", len(p.Notes))
			}
			if len(p.Orphans) != 0 {
				t.Errorf("expected no orphans, got %d", len(p.Orphans))
			}
			if len(p.Unmatched) != 0 {
				t.Errorf("expected no unmatched references, got %d", len(p.Unmatched))
			}
			if p.Layout != footnote.LayoutPageEnd {
				t.Errorf("Layout = %v, want page-end", p.Layout)
			}
			for i, n := range p.Notes {
				if n.OriginNum != i+1 || n.WholeFileSeq != i+1 || n.ClusterNum != 1 {
					t.Errorf("note %d = {origin %d seq %d cluster %d}", i, n.OriginNum, n.WholeFileSeq, n.ClusterNum)
				}
				if n.Status != footnote.StatusPaired {
					t.Errorf("note %d status = %v", i, n.Status)
				}
				if n.DefBlock == nil || !n.DefBlock.HasClass(footnote.ClassNote) {
					t.Errorf("note %d has no definition block", i)
				}
			}
		})
	}
}

func TestPair_Interleaved(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p>B<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(2)</a> two</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, body)
			p := footnote.New(footnote.Options{}).Pair(doc)

			if p.Layout != footnote.LayoutInterleaved {
				t.Errorf("Layout = %v, want interleaved", p.Layout)
			}
			if len(p.Notes) != 2 {
				t.Fatalf("expected 2 notes, got %d", len(p.Notes))
			}
			if p.Notes[0].ClusterNum != 1 || p.Notes[1].ClusterNum != 2 {
				t.Errorf("clusters = %d, %d; want 1, 2", p.Notes[0].ClusterNum, p.Notes[1].ClusterNum)
			}
		})
	}
}

func TestPair_DuplicateReference(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(2)</a> C<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(2)</a> two</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, body)
			e := footnote.New(footnote.Options{})
			p := e.Pair(doc)

			if len(p.Orphans) != 1 {
				t.Fatalf("expected 1 orphan, got %d", len(p.Orphans))
			}
			o := p.Orphans[0]
			if o.Ordinal != 2 || o.Role != footnote.RoleReference || !errors.Is(o.Err, footnote.ErrDuplicateReference) {
				t.Errorf("unexpected orphan %+v", o)
			}
			if got := countKind(e.Diagnostics(), footnote.ErrDuplicateReference); got != 1 {
				t.Errorf("duplicate reference diagnostics = %d, want 1", got)
			}

			twos := 0
			for _, n := range p.Notes {
				if n.OriginNum == 2 {
					twos++
				}
			}
			if twos > 1 {
				t.Errorf("%d notes numbered 2 survived pairing", twos)
			}
			if len(p.Paired()) != 1 {
				t.Errorf("expected only note 1 to be eligible for renumbering, got %d", len(p.Paired()))
			}
		})
	}
}

func TestPair_UnmatchedDefinition(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(9)</a> nine</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, body)
			e := footnote.New(footnote.Options{})
			p := e.Pair(doc)

			if len(p.Orphans) != 1 {
				t.Fatalf("expected 1 orphan, got %d", len(p.Orphans))
			}
			o := p.Orphans[0]
			if o.Ordinal != 9 || o.Role != footnote.RoleDefinition || !errors.Is(o.Err, footnote.ErrUnmatchedDefinition) {
				t.Errorf("unexpected orphan %+v", o)
			}
			if len(p.Notes) != 1 || p.Notes[0].OriginNum != 1 {
				t.Errorf("note list changed by the orphan: %d notes", len(p.Notes))
			}
			if strings.TrimSpace(o.Marker.Text()) != "(9)" {
				t.Errorf("orphan marker text changed to %q", o.Marker.Text())
			}
		})
	}
}

func TestPair_DuplicateDefinitionBlock(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(1)</a> one <a class="note-id">(2)</a> two</p>`

	doc := mustParse(t, backends[0].parse, body)
	e := footnote.New(footnote.Options{})
	p := e.Pair(doc)

	if len(p.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(p.Notes))
	}
	if len(p.Orphans) != 1 || !errors.Is(p.Orphans[0].Err, footnote.ErrDuplicateDefinition) {
		t.Fatalf("expected a duplicate definition orphan, got %+v", p.Orphans)
	}
	if len(p.Unmatched) != 1 || p.Unmatched[0].OriginNum != 2 {
		t.Errorf("expected reference 2 to remain unmatched, got %v", p.Unmatched)
	}
	if got := countKind(e.Diagnostics(), footnote.ErrUnmatchedReference); got != 1 {
		t.Errorf("unmatched reference diagnostics = %d, want 1", got)
	}
}

func TestPair_SkippedMarkers(t *testing.T) {
	body := `
<a class="note-id">(1)</a>
<p>A<a class="note-id">abc</a></p>
<p>B<a class="note-id">(1)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>`

	doc := mustParse(t, backends[0].parse, body)
	e := footnote.New(footnote.Options{File: "chapter.xhtml"})
	p := e.Pair(doc)

	if len(p.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(p.Notes))
	}
	if len(p.Orphans) != 0 {
		t.Errorf("skipped markers must not become orphans, got %d", len(p.Orphans))
	}
	diags := e.Diagnostics()
	if countKind(diags, footnote.ErrNoBlock) != 1 {
		t.Errorf("expected one structural diagnostic")
	}
	if countKind(diags, footnote.ErrUndecodable) != 1 {
		t.Errorf("expected one decode diagnostic")
	}
	for _, d := range diags {
		if d.File != "chapter.xhtml" {
			t.Errorf("diagnostic file = %q", d.File)
		}
		if !strings.HasPrefix(d.String(), "chapter.xhtml:") {
			t.Errorf("journal line %q lacks file prefix", d.String())
		}
	}
}

func TestPair_SequencingIsDiagnosticOnly(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(3)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(3)</a> three</p>`

	doc := mustParse(t, backends[0].parse, body)
	e := footnote.New(footnote.Options{})
	p := e.Pair(doc)

	if len(p.Notes) != 2 || len(p.Orphans) != 0 {
		t.Fatalf("sequencing must not affect pairing: %d notes, %d orphans", len(p.Notes), len(p.Orphans))
	}
	if got := countKind(e.Diagnostics(), footnote.ErrOutOfOrder); got != 2 {
		t.Errorf("out-of-order diagnostics = %d, want 2", got)
	}
}

func TestProcess_RenumberIdempotent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, pageEndBody)
			before := markerTexts(doc)

			for run := 1; run <= 2; run++ {
				res := footnote.Process(doc, footnote.DontMove, footnote.Options{})
				if res.Dirty {
					t.Errorf("run %d marked an already sequential document dirty", run)
				}
				if res.Strategy != footnote.StrategyRenumber {
					t.Errorf("strategy = %v", res.Strategy)
				}
				if res.MaxSeq != 3 {
					t.Errorf("MaxSeq = %d, want 3", res.MaxSeq)
				}
			}
			if diff := cmp.Diff(before, markerTexts(doc)); diff != "" {
				t.Errorf("marker text changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestProcess_RenumberPerCluster(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(2)</a> two</p>
<p>C<a class="note-id">(3)</a></p>
<p class="note"><a class="note-id">(3)</a> three</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, body)
			res := footnote.Process(doc, footnote.PageEnd, footnote.Options{})

			if !res.Dirty {
				t.Error("expected document to be dirty")
			}
			want := []string{"①", "②", "①", "②", "①", "①"}
			if diff := cmp.Diff(want, markerTexts(doc)); diff != "" {
				t.Errorf("marker text mismatch (-want +got):\n%s", diff)
			}
			if res.MaxSeq != 2 {
				t.Errorf("MaxSeq = %d, want 2", res.MaxSeq)
			}

			again := footnote.Process(doc, footnote.PageEnd, footnote.Options{})
			if again.Dirty {
				t.Error("second renumbering pass marked the document dirty")
			}
		})
	}
}

const blockEndBody = `
<p class="t-ref">Text<a class="note-id">(1)</a> more<a class="note-id">(2)</a></p>
<p class="t-other">Other</p>
<div>
<p class="note t-d1"><a class="note-id">(1)</a> first</p>
<p class="note t-d2"><a class="note-id">(2)</a> second</p>
</div>`

func TestProcess_BlockEnd(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, blockEndBody)
			res := footnote.Process(doc, footnote.BlockEnd, footnote.Options{})

			if res.Strategy != footnote.StrategyBlockEnd {
				t.Fatalf("strategy = %v", res.Strategy)
			}
			if !res.Dirty {
				t.Error("expected document to be dirty")
			}

			ref := find(t, doc, "t-ref")
			d1 := find(t, doc, "t-d1")
			d2 := find(t, doc, "t-d2")
			other := find(t, doc, "t-other")

			if ref.NextElementSibling() != d1 {
				t.Error("first definition does not follow the reference block")
			}
			if d1.NextElementSibling() != d2 {
				t.Error("second definition does not follow the first")
			}
			if d2.NextElementSibling() != other {
				t.Error("definitions were not inserted before the following block")
			}

			want := []string{"①", "②", "①", "②"}
			if diff := cmp.Diff(want, markerTexts(doc)); diff != "" {
				t.Errorf("marker text mismatch (-want +got):\n%s", diff)
			}
			for i, n := range res.Notes {
				if n.NewNum != i+1 {
					t.Errorf("note %d NewNum = %d", i, n.NewNum)
				}
			}

			again := footnote.Process(doc, footnote.BlockEnd, footnote.Options{})
			if again.Dirty {
				t.Error("second BlockEnd pass marked the document dirty")
			}
		})
	}
}

func TestProcess_BlockEndResetsPerBlock(t *testing.T) {
	body := `
<p class="t-r1">A<a class="note-id">(1)</a></p>
<p class="t-r2">B<a class="note-id">(2)</a> C<a class="note-id">(3)</a></p>
<p class="note t-d1"><a class="note-id">(1)</a> one</p>
<p class="note t-d2"><a class="note-id">(2)</a> two</p>
<p class="note t-d3"><a class="note-id">(3)</a> three</p>`

	doc := mustParse(t, backends[0].parse, body)
	res := footnote.Process(doc, footnote.BlockEnd, footnote.Options{})

	if find(t, doc, "t-r1").NextElementSibling() != find(t, doc, "t-d1") {
		t.Error("definition 1 not after its block")
	}
	if find(t, doc, "t-r2").NextElementSibling() != find(t, doc, "t-d2") {
		t.Error("definition 2 not after its block")
	}
	if find(t, doc, "t-d2").NextElementSibling() != find(t, doc, "t-d3") {
		t.Error("definition 3 not chained after definition 2")
	}
	got := []int{res.Notes[0].NewNum, res.Notes[1].NewNum, res.Notes[2].NewNum}
	if diff := cmp.Diff([]int{1, 1, 2}, got); diff != "" {
		t.Errorf("NewNum mismatch (-want +got):\n%s", diff)
	}
	if res.MaxSeq != 2 {
		t.Errorf("MaxSeq = %d, want 2", res.MaxSeq)
	}
}

const partEndBody = `
<p class="t-r1">A<a class="note-id">(1)</a></p>
<p class="t-r2">B<a class="note-id">(2)</a></p>
<h2 class="part t-part">Part two</h2>
<p class="t-r3">C<a class="note-id">(3)</a></p>
<div class="t-notes">
<p class="note t-d1"><a class="note-id">(1)</a> one</p>
<p class="note t-d2"><a class="note-id">(2)</a> two</p>
<p class="note t-d3"><a class="note-id">(3)</a> three</p>
</div>`

func TestProcess_PartEnd(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, partEndBody)
			res := footnote.Process(doc, footnote.PartEnd, footnote.Options{})

			if res.Strategy != footnote.StrategyPartEnd {
				t.Fatalf("strategy = %v", res.Strategy)
			}

			var order []string
			for el := find(t, doc, "t-r1"); el != nil; el = el.NextElementSibling() {
				order = append(order, testClass(el))
			}
			want := []string{"t-r1", "t-r2", "t-d1", "t-d2", "t-part", "t-r3", "t-d3", "t-notes"}
			if diff := cmp.Diff(want, order); diff != "" {
				t.Errorf("sibling order mismatch (-want +got):\n%s", diff)
			}

			nums := []string{"①", "②", "①", "②", "①", "①"}
			if diff := cmp.Diff(nums, markerTexts(doc)); diff != "" {
				t.Errorf("marker text mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcess_PartEndIdempotent(t *testing.T) {
	bodies := map[string]string{
		"boundary after notes": `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(2)</a></p>
<p>x</p>
<h2 class="part">Next</h2>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(2)</a> two</p>`,
		"groups per part": partEndBody,
	}

	for name, body := range bodies {
		for _, b := range backends {
			t.Run(name+"/"+b.name, func(t *testing.T) {
				doc := mustParse(t, b.parse, body)
				if res := footnote.Process(doc, footnote.PartEnd, footnote.Options{}); !res.Dirty {
					t.Fatal("first run should move the definitions")
				}
				first, err := doc.Serialize()
				if err != nil {
					t.Fatalf("Serialize() error = %v", err)
				}

				again := footnote.Process(doc, footnote.PartEnd, footnote.Options{})
				if again.Dirty {
					t.Error("second run marked an already placed document dirty")
				}
				second, err := doc.Serialize()
				if err != nil {
					t.Fatalf("Serialize() error = %v", err)
				}
				if diff := cmp.Diff(string(first), string(second)); diff != "" {
					t.Errorf("second run changed the tree (-first +second):\n%s", diff)
				}
			})
		}
	}
}

func TestPair_RestartedDefinitionIsOutOfOrder(t *testing.T) {
	body := `
<p>A<a class="note-id">(1)</a> B<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(1)</a> one</p>
<p class="note"><a class="note-id">(2)</a> two</p>
<p>C<a class="note-id">(1)</a></p>
<p class="note"><a class="note-id">(1)</a> again</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			e := footnote.New(footnote.Options{})
			p := e.Pair(mustParse(t, b.parse, body))
			if len(p.Paired()) != 3 {
				t.Fatalf("paired = %d, want 3", len(p.Paired()))
			}
			if got := countKind(e.Diagnostics(), footnote.ErrOutOfOrder); got != 1 {
				t.Errorf("out-of-order diagnostics = %d, want 1", got)
			}
		})
	}
}

func testClass(el dom.Element) string {
	for _, c := range strings.Fields(el.ClassName()) {
		if strings.HasPrefix(c, "t-") {
			return c
		}
	}
	return el.Tag()
}

func TestProcess_OnlySourceIsPageEnd(t *testing.T) {
	interleaved := `
<p class="t-ref">A<a class="note-id">(1)</a></p>
<p class="t-other">x</p>
<p class="note t-d1"><a class="note-id">(1)</a> one</p>
<p>B<a class="note-id">(2)</a></p>
<p class="note"><a class="note-id">(2)</a> two</p>`

	tests := []struct {
		name   string
		body   string
		policy footnote.Policy
		want   footnote.Strategy
	}{
		{"block end on page-end source", blockEndBody, footnote.BlockEndOnlySourceIsPageEnd, footnote.StrategyBlockEnd},
		{"block end on interleaved source", interleaved, footnote.BlockEndOnlySourceIsPageEnd, footnote.StrategyRenumber},
		{"part end on page-end source", partEndBody, footnote.PartEndOnlySourceIsPageEnd, footnote.StrategyPartEnd},
		{"part end on interleaved source", interleaved, footnote.PartEndOnlySourceIsPageEnd, footnote.StrategyRenumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, backends[0].parse, tt.body)
			res := footnote.Process(doc, tt.policy, footnote.Options{})
			if res.Strategy != tt.want {
				t.Errorf("strategy = %v, want %v", res.Strategy, tt.want)
			}
			if tt.want == footnote.StrategyRenumber {
				if find(t, doc, "t-ref").NextElementSibling() == find(t, doc, "t-d1") {
					t.Error("renumber fallback moved a definition")
				}
			}
		})
	}
}

func TestProcess_Inline(t *testing.T) {
	body := `
<p>Text<a class="note-id t-ref">(1)</a> continues.</p>
<p class="note"><a class="note-id">(1)</a> The note body.</p>`

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			doc := mustParse(t, b.parse, body)
			res := footnote.Process(doc, footnote.Inline, footnote.Options{})

			if res.Strategy != footnote.StrategyInline || !res.Dirty {
				t.Fatalf("strategy = %v dirty = %v", res.Strategy, res.Dirty)
			}
			ref := res.Notes[0].RefMarker
			if got := ref.Text(); got != "The note body." {
				t.Errorf("inline text = %q", got)
			}
			if ref.ClassName() != footnote.ClassNote {
				t.Errorf("class = %q, want %q", ref.ClassName(), footnote.ClassNote)
			}
			if len(doc.ElementsByClass(footnote.ClassMarker)) != 1 {
				t.Error("definition marker should stay in place")
			}
		})
	}
}

func TestProcess_LoggerReceivesDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	doc := mustParse(t, backends[0].parse, `<p class="note"><a class="note-id">(4)</a> stray</p>`)
	res := footnote.Process(doc, footnote.DontMove, footnote.Options{File: "c.xhtml", Logger: logger})

	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(res.Diagnostics))
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "kind=unmatched-definition", "file=c.xhtml"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
	if res.Dirty {
		t.Error("orphan-only document must not be dirty")
	}
}
