// Package validation checks the input EPUB and the paths derived from it:
// archive entry names must stay inside the scratch directory and output
// names must be plain file names.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
)

// Limits that keep a hostile archive from exhausting the disk (CWE-400).
const (
	// MaxInputSize is the largest accepted EPUB (1 GiB).
	MaxInputSize = 1 << 30
	// MaxEntrySize is the largest single member extracted (256 MB).
	MaxEntrySize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrNotEPUB          = errors.New("not an EPUB file")
	ErrTooLarge         = errors.New("file too large")
)

// SanitizePath validates an archive entry name against baseDir.
// Both slash and OS separators are accepted. It returns the cleaned path
// relative to baseDir, or ErrPathTraversal if the entry would escape it.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}
	if err := ValidatePath(userPath); err != nil {
		return "", err
	}

	cleanPath := filepath.Clean(filepath.FromSlash(userPath))

	if filepath.IsAbs(cleanPath) || filepath.VolumeName(cleanPath) != "" || strings.HasPrefix(userPath, "/") {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	// Verify the resolved path is within the base directory
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return cleanPath, nil
}

// ValidatePath rejects empty, overlong, and control-character paths.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 {
			return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks a single output file name, such as the repacked
// EPUB or its journal.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// FileType is the detected container type of the input.
type FileType string

const (
	FileTypeZip     FileType = "zip"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// DetectFileType sniffs the first bytes of r.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	switch {
	case bytes.HasPrefix(buf, zipMagic):
		return FileTypeZip, nil
	case isLikelyText(buf):
		return FileTypeText, nil
	default:
		return FileTypeUnknown, nil
	}
}

// ValidateInputFile checks that path names an existing regular file with an
// .epub extension whose content is a zip archive within MaxInputSize.
func ValidateInputFile(path string) (os.FileInfo, error) {
	invalid := func(msg string, err error) error {
		return &ferrors.ValidationError{Field: "input", Value: path, Message: msg, Err: err}
	}

	if err := ValidatePath(path); err != nil {
		return nil, invalid("bad path", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return nil, invalid("expected an .epub file", ErrNotEPUB)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NewNotFound("input file", path)
		}
		return nil, ferrors.NewIO("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, invalid("not a regular file", ErrNotEPUB)
	}
	if info.Size() > MaxInputSize {
		return nil, invalid(fmt.Sprintf("%d bytes exceeds %d", info.Size(), MaxInputSize), ErrTooLarge)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.NewIO("open", path, err)
	}
	defer f.Close()

	ft, err := DetectFileType(f)
	if err != nil {
		return nil, ferrors.NewIO("read", path, err)
	}
	if ft != FileTypeZip {
		return nil, invalid(fmt.Sprintf("content is %s, not a zip archive", ft), ErrNotEPUB)
	}
	return info, nil
}

// isLikelyText reports whether buf looks like ASCII or UTF-8 text.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	// Null bytes are a strong indicator of binary content
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 lead and continuation bytes are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
