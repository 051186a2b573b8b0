package footnote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
)

// Sentinel errors carried by diagnostics. Match with errors.Is.
var (
	ErrNoBlock             = errors.New("marker has no paragraph, division or heading ancestor")
	ErrUndecodable         = errors.New("marker text is not a recognised ordinal")
	ErrDuplicateReference  = errors.New("duplicate reference ordinal")
	ErrDuplicateDefinition = errors.New("definition block already matched")
	ErrUnmatchedDefinition = errors.New("definition has no pending reference")
	ErrUnmatchedReference  = errors.New("reference has no definition")
	ErrOutOfOrder          = errors.New("ordinal out of sequence")
	ErrOrdinalMismatch     = errors.New("reference and definition ordinals differ")
)

// Kind classifies a diagnostic.
type Kind int

const (
	KindStructural Kind = iota
	KindDecode
	KindDuplicateReference
	KindDuplicateDefinition
	KindUnmatchedDefinition
	KindUnmatchedReference
	KindSequencing
	KindOrdinalMismatch
	KindMove
)

var kindNames = [...]string{
	KindStructural:          "structural",
	KindDecode:              "decode",
	KindDuplicateReference:  "duplicate-reference",
	KindDuplicateDefinition: "duplicate-definition",
	KindUnmatchedDefinition: "unmatched-definition",
	KindUnmatchedReference:  "unmatched-reference",
	KindSequencing:          "sequencing",
	KindOrdinalMismatch:     "ordinal-mismatch",
	KindMove:                "move",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Severity is the slog level a diagnostic of this kind is logged at.
func (k Kind) Severity() slog.Level {
	switch k {
	case KindDuplicateReference, KindOrdinalMismatch, KindMove:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Diagnostic is one event found while analysing a document. Diagnostics are
// never fatal; they are the only signal of an imperfect source document.
type Diagnostic struct {
	Kind     Kind
	File     string
	Position dom.Position
	Markup   string
	Message  string
	Err      error
}

// Error implements error so diagnostics can be matched with errors.Is.
func (d Diagnostic) Error() string {
	return d.Message
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// String formats the diagnostic as a journal line:
// file:line:column:markup: message
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		b.WriteString(":")
	}
	if d.Position != (dom.Position{}) {
		b.WriteString(d.Position.String())
		b.WriteString(":")
	}
	if d.Markup != "" {
		b.WriteString(strings.Join(strings.Fields(d.Markup), " "))
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// report records a diagnostic and mirrors it to the engine logger.
func (e *Engine) report(kind Kind, el dom.Element, err error, format string, args ...any) {
	d := Diagnostic{
		Kind:    kind,
		File:    e.opts.File,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
	if el != nil {
		d.Position = el.Position()
		d.Markup = el.Markup()
	}
	e.diags = append(e.diags, d)

	attrs := []any{"kind", kind.String()}
	if d.File != "" {
		attrs = append(attrs, "file", d.File)
	}
	if d.Position.Line > 0 {
		attrs = append(attrs, "line", d.Position.Line)
	}
	if d.Markup != "" {
		attrs = append(attrs, "element", d.Markup)
	}
	e.log.Log(context.Background(), kind.Severity(), d.Message, attrs...)
}
