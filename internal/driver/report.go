package driver

import (
	"encoding/json"
	"time"

	"github.com/FocuswithJustin/FootnoteTool/core/cas"
	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
	"github.com/FocuswithJustin/FootnoteTool/core/footnote"
)

// Report summarises a run.
type Report struct {
	RunID       string          `json:"run_id"`
	Input       string          `json:"input"`
	Output      string          `json:"output"`
	Journal     string          `json:"journal"`
	Policy      footnote.Policy `json:"policy"`
	FromPackage bool            `json:"from_package"`
	MaxSeq      int             `json:"max_seq"`
	Started     time.Time       `json:"started"`
	DurationMS  int64           `json:"duration_ms"`
	Files       []FileReport    `json:"files"`
}

// FileReport is the outcome for one content document.
type FileReport struct {
	Path        string     `json:"path"`
	Backend     Backend    `json:"backend,omitempty"`
	Strategy    string     `json:"strategy,omitempty"`
	Layout      string     `json:"layout,omitempty"`
	Notes       int        `json:"notes"`
	Orphans     int        `json:"orphans"`
	Unmatched   int        `json:"unmatched"`
	Diagnostics int        `json:"diagnostics"`
	MaxSeq      int        `json:"max_seq"`
	Dirty       bool       `json:"dirty"`
	Error       string     `json:"error,omitempty"`
	Before      cas.Digest `json:"before"`
	After       cas.Digest `json:"after"`
}

// Failed counts the documents that could not be processed.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// Dirty counts the documents that were rewritten.
func (r *Report) Dirty() int {
	n := 0
	for _, f := range r.Files {
		if f.Dirty {
			n++
		}
	}
	return n
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ferrors.Wrap(err, "failed to encode report")
	}
	if err := cas.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return ferrors.NewIO("write report", path, err)
	}
	return nil
}
