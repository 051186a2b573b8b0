// Package epub reads the structure of an unpacked EPUB.
//
// ContentDocuments locates the package document through
// META-INF/container.xml and lists the XHTML and HTML members in reading
// order.
package epub

import (
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
	"github.com/FocuswithJustin/FootnoteTool/core/xml"
)

// ContainerPath is the location of the container document inside an EPUB.
const ContainerPath = "META-INF/container.xml"

// Media types of content documents the footnote engine processes.
var contentTypes = map[string]bool{
	"application/xhtml+xml": true,
	"text/html":             true,
}

// Content file extensions used when there is no usable package document.
var contentExts = map[string]bool{
	".xhtml": true,
	".html":  true,
	".htm":   true,
}

// Rootfile returns the slash-separated path of the package document
// declared by META-INF/container.xml, relative to dir.
func Rootfile(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ContainerPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ferrors.NewNotFound("container", ContainerPath)
		}
		return "", ferrors.NewIO("read", ContainerPath, err)
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return "", ferrors.NewParse("container", ContainerPath, err)
	}
	rootfiles, err := doc.XPath("//*[local-name()='rootfile']")
	if err != nil {
		return "", err
	}
	for _, rf := range rootfiles {
		mt := rf.Attr("media-type")
		if p := rf.Attr("full-path"); p != "" && (mt == "" || mt == "application/oebps-package+xml") {
			return path.Clean(p), nil
		}
	}
	return "", ferrors.NewNotFound("rootfile", ContainerPath)
}

// PackageDocuments reads the package document at opf (relative to dir) and
// returns its content documents: spine items first, in spine order, then
// any remaining XHTML or HTML manifest items in manifest order.
func PackageDocuments(dir, opf string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(opf)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NewNotFound("package document", opf)
		}
		return nil, ferrors.NewIO("read", opf, err)
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, ferrors.NewParse("OPF", opf, err)
	}

	items, err := doc.XPath("//*[local-name()='manifest']/*[local-name()='item']")
	if err != nil {
		return nil, err
	}
	refs, err := doc.XPath("//*[local-name()='spine']/*[local-name()='itemref']")
	if err != nil {
		return nil, err
	}

	base := path.Dir(opf)
	byID := make(map[string]string)
	var manifest []string
	for _, it := range items {
		if !contentTypes[it.Attr("media-type")] {
			continue
		}
		href, err := url.PathUnescape(it.Attr("href"))
		if err != nil || href == "" {
			continue
		}
		p := path.Join(base, href)
		if p == ".." || strings.HasPrefix(p, "../") || path.IsAbs(p) {
			continue
		}
		if id := it.Attr("id"); id != "" {
			byID[id] = p
		}
		manifest = append(manifest, p)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, ref := range refs {
		if p, ok := byID[ref.Attr("idref")]; ok {
			add(p)
		}
	}
	for _, p := range manifest {
		add(p)
	}
	return out, nil
}

// ScanDocuments lists every file under dir with a content extension, in
// lexical order, as slash-separated relative paths.
func ScanDocuments(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !contentExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, ferrors.NewIO("scan", dir, err)
	}
	return out, nil
}

// ContentDocuments returns the content documents of the EPUB unpacked in
// dir. The package document is authoritative; when the container or package
// document is missing or unreadable, every file with an .xhtml, .html or .htm
// extension is returned instead. fromPackage reports which source was used.
func ContentDocuments(dir string) (docs []string, fromPackage bool, err error) {
	opf, err := Rootfile(dir)
	if err == nil {
		docs, err = PackageDocuments(dir, opf)
		if err == nil {
			return docs, true, nil
		}
	}
	docs, err = ScanDocuments(dir)
	return docs, false, err
}
