// Package archive unpacks an EPUB into a scratch directory and packs a
// directory back into an EPUB.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/FootnoteTool/internal/validation"
)

// Reader wraps a zip.ReadCloser with visitor-style iteration.
type Reader struct {
	*zip.ReadCloser
}

// NewReader opens the zip archive at path.
func NewReader(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	// Insecure names are rejected per entry by ExtractZip.
	if errors.Is(err, zip.ErrInsecurePath) && rc != nil {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Reader{ReadCloser: rc}, nil
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(f *zip.File) (stop bool, err error)

// Iterate walks through all entries in archive order, calling the visitor
// for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for _, f := range r.File {
		stop, err := visitor(f)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// IterateArchive opens an archive and iterates through its entries.
func IterateArchive(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// ExtractZip unpacks every entry of src below dst. Entry names that would
// escape dst fail with validation.ErrPathTraversal before anything is
// written for them; entries larger than validation.MaxEntrySize are refused.
func ExtractZip(src, dst string) error {
	return IterateArchive(src, func(f *zip.File) (bool, error) {
		return false, extractEntry(f, dst)
	})
}

func extractEntry(f *zip.File, dst string) error {
	rel, err := validation.SanitizePath(dst, f.Name)
	if err != nil {
		return fmt.Errorf("entry %q: %w", f.Name, err)
	}
	target := filepath.Join(dst, rel)

	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if f.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("entry %q: symbolic links are not extracted", f.Name)
	}
	if f.UncompressedSize64 > validation.MaxEntrySize {
		return fmt.Errorf("entry %q: %w", f.Name, validation.ErrTooLarge)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", f.Name, err)
	}
	// The declared size is not trusted; copy at most one byte past the limit.
	n, err := io.Copy(out, io.LimitReader(rc, validation.MaxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extract %q: %w", f.Name, err)
	}
	if n > validation.MaxEntrySize {
		return fmt.Errorf("entry %q: %w", f.Name, validation.ErrTooLarge)
	}
	return nil
}
