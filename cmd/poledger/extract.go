package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/ocr/tesseract"
	"github.com/dgallion1/poledger/internal/pipeline"
	"github.com/dgallion1/poledger/internal/report"
	"github.com/dgallion1/poledger/internal/source"
	"github.com/spf13/cobra"
)

var extractOpts struct {
	output    string
	csvPath   string
	htmlPath  string
	perFile   string
	chunkSize int
	engine    string
	dpi       int
	languages []string
	workers   int
}

var extractCmd = &cobra.Command{
	Use:   "extract <file or directory>...",
	Short: "Extract ledger records into a consolidated workbook",
	Long: `Extract reads every given PDF or text file (directories are scanned for
supported files) and writes one consolidated workbook with an "All Data"
sheet, a "Summary" sheet, and one sheet per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractOpts.output, "output", "o", "po_ledger_consolidated.xlsx", "consolidated workbook path")
	f.StringVar(&extractOpts.csvPath, "csv", "", "also write every record to this CSV file")
	f.StringVar(&extractOpts.htmlPath, "html", "", "also write an HTML report to this file")
	f.StringVar(&extractOpts.perFile, "per-file", "", "also write one workbook per document into this directory")
	f.IntVar(&extractOpts.chunkSize, "chunk-size", env.MaxChunkSize, "maximum pages per recognition window")
	f.StringVar(&extractOpts.engine, "engine", env.OCREngine, "PDF recognition engine (auto|tesseract|textlayer)")
	f.IntVar(&extractOpts.dpi, "dpi", env.OCRDPI, "render resolution for tesseract")
	f.StringSliceVar(&extractOpts.languages, "lang", env.OCRLanguages, "tesseract languages")
	f.IntVar(&extractOpts.workers, "workers", env.WorkerCount, "documents extracted concurrently")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if extractOpts.chunkSize < 1 {
		return fmt.Errorf("--chunk-size must be at least 1")
	}
	paths, err := collectPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported files found (%s)", supportedList())
	}

	stats := ocr.NewLatencyStats(env.StatsWindow)
	engine, err := pdfEngine(stats)
	if err != nil {
		return err
	}

	// Unreadable files fail here; the rest are extracted as one batch.
	files := make([]report.FileSummary, len(paths))
	docs := make([]*ledger.Document, len(paths))
	var (
		inputs []pipeline.Input
		index  []int
	)
	for i, p := range paths {
		name := filepath.Base(p)
		src, err := source.ForFile(name, engine)
		if err != nil {
			files[i] = report.Failed(name, err)
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			files[i] = report.Failed(name, err)
			continue
		}
		inputs = append(inputs, pipeline.Input{Filename: name, Data: data, Source: src})
		index = append(index, i)
	}

	bar := newProgressBar(cmd.ErrOrStderr(), len(inputs), "extracting")
	extractor := pipeline.NewExtractor(extractOpts.chunkSize, logger)
	results := pipeline.RunBatch(ctx, extractor, inputs, extractOpts.workers, func(_ int, r pipeline.Result) {
		if r.Err != nil {
			logger.Error("extraction failed", "filename", r.Filename, "error", r.Err)
		}
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	for j, r := range results {
		i := index[j]
		if r.Err != nil {
			files[i] = report.Failed(r.Filename, r.Err)
			continue
		}
		docs[i] = r.Doc
		files[i] = report.Summarize(r.Doc)
	}

	var (
		extracted []*ledger.Document
		all       []ledger.Record
	)
	for _, d := range docs {
		if d != nil {
			extracted = append(extracted, d)
			all = append(all, d.Records...)
		}
	}

	if err := writeOutputs(docs, files, all); err != nil {
		return err
	}
	printSummary(out, files, report.Totals(files, all))
	if s := stats.Snapshot(); s.Count > 0 {
		logger.Info("recognition latency", "windows", s.Count, "avg_ms", s.AvgMs, "p95_ms", s.P95Ms)
	}

	if len(extracted) == 0 {
		return fmt.Errorf("no documents extracted")
	}
	return nil
}

// pdfEngine builds the recognizer for PDF inputs from the engine flag.
func pdfEngine(stats *ocr.LatencyStats) (ocr.Engine, error) {
	name := strings.ToLower(extractOpts.engine)
	var tess ocr.Engine
	if name != ocr.EngineTextLayer {
		tess = tesseract.New(tesseract.Options{DPI: extractOpts.dpi, Languages: extractOpts.languages})
	}
	engine, err := ocr.Select(name, tess)
	if err != nil {
		return nil, err
	}
	return &ocr.Instrumented{Engine: engine, Stats: stats}, nil
}

// collectPaths expands directories into their supported files, sorted by
// name. Files named explicitly are kept even when unsupported so that
// they show up as failures.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", arg, err)
		}
		for _, e := range entries {
			if !e.IsDir() && source.IsSupportedExtension(e.Name()) {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

func supportedList() string {
	var exts []string
	for ext := range source.SupportedExtensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return strings.Join(exts, ", ")
}

// writeOutputs writes every requested report. docs is aligned with files and
// holds nil for files that failed.
func writeOutputs(docs []*ledger.Document, files []report.FileSummary, all []ledger.Record) error {
	if err := writeFile(extractOpts.output, func(w io.Writer) error {
		return report.WriteConsolidated(w, docs, files)
	}); err != nil {
		return err
	}

	if extractOpts.csvPath != "" {
		if err := writeFile(extractOpts.csvPath, func(w io.Writer) error {
			return report.WriteCSV(w, all)
		}); err != nil {
			return err
		}
	}

	if extractOpts.htmlPath != "" {
		if err := writeFile(extractOpts.htmlPath, func(w io.Writer) error {
			page, err := report.RenderHTML("PO Ledger Extraction", files, docs)
			if err != nil {
				return err
			}
			_, err = w.Write(page)
			return err
		}); err != nil {
			return err
		}
	}

	if extractOpts.perFile != "" {
		var (
			extracted []*ledger.Document
			summaries []report.FileSummary
		)
		for _, d := range docs {
			if d != nil {
				extracted = append(extracted, d)
				summaries = append(summaries, report.Summarize(d))
			}
		}
		for i, name := range report.TabNames(summaries) {
			path := filepath.Join(extractOpts.perFile, name+"_extracted.xlsx")
			doc := extracted[i]
			if err := writeFile(path, func(w io.Writer) error {
				return report.WriteWorkbook(w, doc)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeFile creates path, and its directory, and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	logger.Info("wrote output", "path", path)
	return nil
}
