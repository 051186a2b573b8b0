package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ulikunitz/xz"
)

// Journal is the append-only diagnostics log saved next to the output EPUB.
// Lines are kept in the order they were appended. It is safe for concurrent
// use, but callers that need a canonical order append from one goroutine.
type Journal struct {
	mu    sync.Mutex
	lines []string
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Append adds one line. Embedded newlines are replaced by spaces so each
// entry stays on one line.
func (j *Journal) Append(line string) {
	line = strings.ReplaceAll(strings.ReplaceAll(line, "\r", " "), "\n", " ")
	j.mu.Lock()
	j.lines = append(j.lines, line)
	j.mu.Unlock()
}

// Lines returns a copy of the journal.
func (j *Journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

// WriteTo writes every line followed by a newline.
func (j *Journal) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range j.Lines() {
		m, err := bw.WriteString(line + "\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save writes the journal to path, xz-compressed when path ends in ".xz".
func (j *Journal) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close journal: %w", cerr)
		}
	}()

	if !strings.HasSuffix(path, ".xz") {
		_, err = j.WriteTo(f)
		return err
	}

	xzw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := j.WriteTo(xzw); err != nil {
		xzw.Close()
		return err
	}
	return xzw.Close()
}

// ReadJournal loads a journal written by Save.
func ReadJournal(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		r = xzr
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
