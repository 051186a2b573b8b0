package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MimetypeEntry is the EPUB entry that must come first and be stored.
const MimetypeEntry = "mimetype"

// CreateZip packs srcDir into an EPUB at dstPath. The mimetype entry, when
// present, is written first and uncompressed; every other file follows in
// lexical order, deflated. Directory entries are omitted.
func CreateZip(srcDir, dstPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive file: %w", cerr)
		}
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	zw := zip.NewWriter(outFile)
	now := time.Now()

	if _, statErr := os.Stat(filepath.Join(srcDir, MimetypeEntry)); statErr == nil {
		if err := addFile(zw, srcDir, MimetypeEntry, zip.Store, now); err != nil {
			return fmt.Errorf("failed to create archive: %w", err)
		}
	}

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(relPath)
		if name == MimetypeEntry {
			return nil
		}
		return addFile(zw, srcDir, name, zip.Deflate, now)
	})
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, srcDir, name string, method uint16, modTime time.Time) error {
	header := &zip.FileHeader{
		Name:   name,
		Method: method,
	}
	// Normalize timestamps
	header.Modified = modTime

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(w, file)
	return err
}
