package driver

import (
	"path"
	"strings"

	"github.com/FocuswithJustin/FootnoteTool/core/dom"
	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
	htmldoc "github.com/FocuswithJustin/FootnoteTool/core/html"
	xmldoc "github.com/FocuswithJustin/FootnoteTool/core/xml"
)

// Backend names the element tree a document was parsed into.
type Backend string

const (
	BackendXHTML        Backend = "xhtml"
	BackendXHTMLLenient Backend = "xhtml-lenient"
	BackendHTML         Backend = "html"
)

// parseDocument picks a backend by extension. XHTML documents fall back to
// the lenient XML decoder; HTML documents are tried as XML first, then as
// tag soup.
func parseDocument(name string, data []byte) (dom.Document, Backend, error) {
	doc, err := xmldoc.Parse(data)
	if err == nil {
		return doc, BackendXHTML, nil
	}

	if strings.EqualFold(path.Ext(name), ".xhtml") {
		if lenient, lerr := xmldoc.ParseLenient(data); lerr == nil {
			return lenient, BackendXHTMLLenient, nil
		}
		return nil, "", ferrors.NewParse("XHTML", name, err)
	}

	soup, herr := htmldoc.Parse(data)
	if herr != nil {
		return nil, "", ferrors.NewParse("HTML", name, herr)
	}
	return soup, BackendHTML, nil
}
