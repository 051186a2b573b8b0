package footnote

import (
	"io"
	"log/slog"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
)

// Options configure an Engine.
type Options struct {
	// File names the document in diagnostics.
	File string
	// Logger receives every diagnostic as it is found. Nil discards.
	Logger *slog.Logger
}

// Engine analyses and rewrites a single document. It is not safe for
// concurrent use; create one per document.
type Engine struct {
	opts   Options
	log    *slog.Logger
	diags  []Diagnostic
	dirty  bool
	maxSeq int
}

// New returns an Engine for one document.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts, log: log}
}

// Result is the outcome of processing one document.
type Result struct {
	*Pairing

	Policy   Policy
	Strategy Strategy
	// Dirty is true when the tree was mutated and needs serializing.
	Dirty bool
	// MaxSeq is the largest number assigned by renumbering.
	MaxSeq int
	// Diagnostics are in the order they were found.
	Diagnostics []Diagnostic
}

// Process pairs the markers of doc and applies policy to them.
func Process(doc dom.Document, policy Policy, opts Options) *Result {
	e := New(opts)
	return e.Reposition(e.Pair(doc), policy)
}

// Diagnostics returns the diagnostics reported so far.
func (e *Engine) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), e.diags...)
}
