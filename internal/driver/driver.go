// Package driver runs the footnote engine over every content document of an
// EPUB and repacks the result.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/FootnoteTool/core/cas"
	"github.com/FocuswithJustin/FootnoteTool/core/epub"
	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
	"github.com/FocuswithJustin/FootnoteTool/core/footnote"
	"github.com/FocuswithJustin/FootnoteTool/internal/archive"
	"github.com/FocuswithJustin/FootnoteTool/internal/config"
	"github.com/FocuswithJustin/FootnoteTool/internal/logging"
	"github.com/FocuswithJustin/FootnoteTool/internal/validation"
)

// Options configure a run.
type Options struct {
	// Input is the EPUB to process.
	Input string
	// OutputDir receives the repacked EPUB and the journal. Defaults to the
	// directory of Input.
	OutputDir string
	// Config supplies policy, concurrency and naming. Nil means defaults.
	Config *config.Config
}

// fileResult is the per-document output of a worker.
type fileResult struct {
	report  FileReport
	journal []string
}

// Run processes the EPUB named by opts.Input. Problems inside a single
// document are recorded in the report and journal; only failures to read
// the input or to write the outputs abort the run.
func Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := validation.ValidateInputFile(opts.Input); err != nil {
		return nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.Input)
	}

	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	logging.InfoContext(ctx, "run_started", "input", opts.Input, "policy", cfg.Policy.String(), "jobs", cfg.Jobs)

	scratch, err := os.MkdirTemp("", "footnote-*")
	if err != nil {
		return nil, ferrors.NewIO("create scratch directory", "", err)
	}
	defer os.RemoveAll(scratch)

	if err := archive.ExtractZip(opts.Input, scratch); err != nil {
		return nil, ferrors.NewIO("extract", opts.Input, err)
	}

	docs, fromPackage, err := epub.ContentDocuments(scratch)
	if err != nil {
		return nil, err
	}
	if !fromPackage {
		logging.LoggerFromContext(ctx).Warn("package document unusable, scanning by extension", "input", opts.Input)
	}

	results := make([]fileResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for i, rel := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = processFile(gctx, scratch, rel, cfg.Policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		Input:       opts.Input,
		Output:      filepath.Join(outDir, cfg.OutputName(opts.Input)+".epub"),
		Journal:     filepath.Join(outDir, cfg.JournalName(opts.Input)),
		Policy:      cfg.Policy,
		FromPackage: fromPackage,
		Started:     start.UTC(),
		Files:       make([]FileReport, 0, len(results)),
	}

	// Journal lines follow enumeration order, whatever order workers finished in.
	journal := logging.NewJournal()
	for _, r := range results {
		for _, line := range r.journal {
			journal.Append(line)
		}
		report.Files = append(report.Files, r.report)
		report.MaxSeq = max(report.MaxSeq, r.report.MaxSeq)
	}

	if err := archive.CreateZip(scratch, report.Output); err != nil {
		return nil, ferrors.NewIO("repack", report.Output, err)
	}
	if err := journal.Save(report.Journal); err != nil {
		return nil, ferrors.NewIO("save journal", report.Journal, err)
	}

	report.DurationMS = time.Since(start).Milliseconds()
	if cfg.Report != "" {
		if err := report.Save(cfg.Report); err != nil {
			return nil, err
		}
	}

	logging.RunFinished(ctx, opts.Input, report.Output, len(report.Files), report.Failed(), report.MaxSeq, time.Since(start))
	return report, nil
}

// processFile runs the engine over one document and writes it back when
// the engine changed it.
func processFile(ctx context.Context, root, rel string, policy footnote.Policy) fileResult {
	start := time.Now()
	res := fileResult{report: FileReport{Path: rel}}
	fail := func(err error) fileResult {
		res.report.Error = err.Error()
		res.journal = append(res.journal, fmt.Sprintf("%s: %v", rel, err))
		logging.FileFailed(ctx, rel, err)
		return res
	}

	full := filepath.Join(root, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		return fail(ferrors.NewIO("read", rel, err))
	}
	res.report.Before = cas.Sum(data)
	res.report.After = res.report.Before

	doc, backend, err := parseDocument(rel, data)
	if err != nil {
		return fail(err)
	}
	res.report.Backend = backend

	out := footnote.Process(doc, policy, footnote.Options{
		File:   rel,
		Logger: logging.LoggerFromContext(ctx),
	})
	for _, d := range out.Diagnostics {
		res.journal = append(res.journal, d.String())
	}

	res.report.Strategy = out.Strategy.String()
	res.report.Layout = out.Layout.String()
	res.report.Notes = len(out.Paired())
	res.report.Orphans = len(out.Orphans)
	res.report.Unmatched = len(out.Unmatched)
	res.report.Diagnostics = len(out.Diagnostics)
	res.report.MaxSeq = out.MaxSeq

	if out.Dirty {
		serialized, err := doc.Serialize()
		if err != nil {
			return fail(ferrors.Wrapf(err, "serialize %s", rel))
		}
		if err := cas.WriteFile(full, serialized, 0o644); err != nil {
			return fail(ferrors.NewIO("write", rel, err))
		}
		res.report.Dirty = true
		res.report.After = cas.Sum(serialized)
	}

	logging.FileProcessed(ctx, rel, res.report.Strategy, res.report.Notes, res.report.Orphans, res.report.Dirty, time.Since(start),
		"backend", string(backend), "layout", res.report.Layout)
	return res
}
