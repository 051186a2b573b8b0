// Package epubtest builds minimal EPUB 3 archives from chapter fragments
// for tests of code that consumes EPUBs.
package epubtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MimeType is the content of the mimetype entry.
const MimeType = "application/epub+zip"

// Book is a minimal EPUB 3 publication.
type Book struct {
	Title      string
	Language   string
	Identifier string
	Chapters   []Chapter
}

// Chapter is one content document. Body is an XHTML fragment inserted into
// <body> verbatim.
type Chapter struct {
	Title string
	Body  string
}

// NewBook creates a book with a random urn:uuid identifier.
func NewBook(title string) *Book {
	return &Book{
		Title:      title,
		Language:   "en",
		Identifier: "urn:uuid:" + uuid.NewString(),
	}
}

// AddChapter appends a chapter.
func (b *Book) AddChapter(title, body string) {
	b.Chapters = append(b.Chapters, Chapter{Title: title, Body: body})
}

// ChapterPath is the archive path of the i-th chapter, from 0.
func ChapterPath(i int) string {
	return fmt.Sprintf("OEBPS/text/chapter%d.xhtml", i+1)
}

// Build creates the EPUB as bytes.
func (b *Book) Build() ([]byte, error) {
	if len(b.Chapters) == 0 {
		return nil, fmt.Errorf("EPUB must have at least one chapter")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype must be first and uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(MimeType)); err != nil {
		return nil, err
	}

	entries := []struct {
		name string
		data string
	}{
		{"META-INF/container.xml", ContainerXML},
		{"OEBPS/content.opf", b.packageDocument()},
		{"OEBPS/nav.xhtml", b.navDocument()},
	}
	for i, ch := range b.Chapters {
		entries = append(entries, struct {
			name string
			data string
		}{ChapterPath(i), chapterDocument(ch)})
	}

	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContainerXML is the META-INF/container.xml pointing at OEBPS/content.opf.
const ContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func (b *Book) packageDocument() string {
	var manifest, spine strings.Builder
	manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	for i := range b.Chapters {
		id := fmt.Sprintf("chapter%d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="text/%s.xhtml" media-type="application/xhtml+xml"/>`+"\n", id, id)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="BookId">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:language>%s</dc:language>
    <meta property="dcterms:modified">%s</meta>
  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`,
		escape(b.Identifier),
		escape(b.Title),
		escape(b.Language),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		manifest.String(),
		spine.String(),
	)
}

func (b *Book) navDocument() string {
	var items strings.Builder
	for i, ch := range b.Chapters {
		fmt.Fprintf(&items, "      <li><a href=\"text/chapter%d.xhtml\">%s</a></li>\n", i+1, escape(ch.Title))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>%s</title></head>
<body>
  <nav epub:type="toc" id="toc">
    <ol>
%s    </ol>
  </nav>
</body>
</html>`, escape(b.Title), items.String())
}

func chapterDocument(ch Chapter) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
</head>
<body>
%s
</body>
</html>`, escape(ch.Title), ch.Body)
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ReadArchive returns the entry names of the zip at path in archive order,
// together with every entry's content.
func ReadArchive(path string) ([]string, map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		names = append(names, f.Name)
		files[f.Name] = data
	}
	return names, files, nil
}
