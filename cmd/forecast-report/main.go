package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/dataprocessing"
	"expensecli/internal/exporter"
	"expensecli/internal/infrastructure"
	"expensecli/internal/validation"
	"expensecli/pkg/contracts"
)

// options is the parsed command line
type options struct {
	In      string
	Out     string
	Formats []string
	Engine  analytics.Config
	// Summary receives the category table when set
	Summary io.Writer
}

var knownFormats = map[string]bool{"csv": true, "xlsx": true, "html": true, "json": true, "pdf": true}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	in := flag.String("in", "", "expense ledger to analyze (.xlsx, .xlsm or .csv)")
	out := flag.String("out", "", "output directory (defaults to the configured reports directory)")
	formats := flag.String("format", "csv,xlsx", "comma separated outputs: csv, xlsx, html, json, pdf")
	horizon := flag.Int("horizon", 0, "months to forecast (1-24)")
	fillGaps := flag.Bool("fill-gaps", false, "treat months without spending as zero")
	confidence := flag.Float64("confidence", 0, "forecast interval confidence level, exclusive of 0 and 1")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	opts := options{
		In:      *in,
		Out:     *out,
		Formats: splitFormats(*formats),
		Engine:  cfg.Analysis.EngineConfig(),
		Summary: os.Stdout,
	}
	if opts.Out == "" {
		opts.Out = cfg.Report.OutputDir
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "horizon":
			opts.Engine.Horizon = *horizon
		case "fill-gaps":
			opts.Engine.FillGaps = *fillGaps
		case "confidence":
			opts.Engine.ConfidenceLevel = *confidence
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var pdf *exporter.PDFRenderer
	if contains(opts.Formats, "pdf") {
		pdf = exporter.NewPDFRenderer(cfg.Report, logger)
	}

	files := validation.NewFileValidator(cfg.Upload.AllowedExtensions, cfg.Upload.MaxBytes, logger)
	written, err := run(ctx, opts, files, pdf, logger)
	if err != nil {
		logger.Error("Forecast report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, path := range written {
		fmt.Println(path)
	}
}

// printSummary writes one line per category in score order
func printSummary(w io.Writer, report *analytics.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows\t%d accepted, %d skipped\n", report.Validation.AcceptedRows, report.Validation.SkippedRows)
	fmt.Fprintf(tw, "Total spent\t%.2f over %d months\n", report.Overall.Summary.TotalSpent, report.Overall.Summary.AnalysisPeriod)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Rank\tCategory\tTotal\tAvg monthly\tEfficiency\tRisk\tReview")
	for _, score := range report.Scores {
		total, avg := 0.0, "-"
		if c, ok := report.Category(score.Category); ok {
			total = c.Summary.TotalSpent
			avg = c.Summary.AverageMonthly.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%.1f\t%s\t%s\n",
			score.Rank, score.Category, total, avg, score.EfficiencyScore, score.RiskLevel, score.MonitoringCadence)
	}
	return tw.Flush()
}

// run loads the ledger, analyzes it and writes each requested format to
// opts.Out, returning the written paths
func run(ctx context.Context, opts options, files *validation.FileValidator, pdf *exporter.PDFRenderer, logger *slog.Logger) ([]string, error) {
	if opts.In == "" {
		return nil, fmt.Errorf("-in is required")
	}
	if len(opts.Formats) == 0 {
		return nil, fmt.Errorf("at least one output format is required")
	}
	for _, f := range opts.Formats {
		if !knownFormats[f] {
			return nil, fmt.Errorf("unknown output format %q", f)
		}
	}
	if contains(opts.Formats, "pdf") && pdf == nil {
		return nil, fmt.Errorf("pdf output requires a renderer")
	}

	if err := files.ValidateInputFile(opts.In); err != nil {
		return nil, err
	}
	if err := files.ValidateOutputDirectory(opts.Out); err != nil {
		return nil, err
	}

	engine, err := analytics.NewEngine(opts.Engine, logger)
	if err != nil {
		return nil, err
	}

	dataset, err := dataprocessing.NewLoader(logger).LoadFile(opts.In)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := engine.Analyze(ctx, dataset.Rows)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Ledger analyzed",
		slog.String("file", dataset.Name),
		slog.Int("rows", report.Validation.TotalRows),
		slog.Int("skipped", report.Validation.SkippedRows),
		slog.Int("categories", len(report.Categories)),
		slog.Duration("duration", time.Since(start)))

	stem := strings.TrimSuffix(dataset.Name, filepath.Ext(dataset.Name))
	meta := exporter.ReportMeta{
		Title:       "Expense forecast",
		DatasetName: dataset.Name,
		GeneratedAt: time.Now().UTC(),
		Version:     contracts.Version,
	}

	if opts.Summary != nil {
		if err := printSummary(opts.Summary, report); err != nil {
			return nil, err
		}
	}

	var written []string
	for _, format := range opts.Formats {
		paths, err := writeFormat(ctx, format, opts.Out, stem, report, meta, pdf, logger)
		if err != nil {
			return written, fmt.Errorf("%s output: %w", format, err)
		}
		written = append(written, paths...)
	}
	return written, nil
}

func writeFormat(ctx context.Context, format, dir, stem string, report *analytics.Report, meta exporter.ReportMeta, pdf *exporter.PDFRenderer, logger *slog.Logger) ([]string, error) {
	if format == "csv" {
		return exporter.NewCSVWriter(dir).WithLogger(logger).ExportTables(stem+"-", exporter.BuildTables(report))
	}

	var buf bytes.Buffer
	switch format {
	case "xlsx":
		if err := exporter.WriteWorkbook(&buf, exporter.BuildTables(report)); err != nil {
			return nil, err
		}
	case "html":
		if err := exporter.RenderHTML(&buf, report, meta); err != nil {
			return nil, err
		}
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, err
		}
	case "pdf":
		body, err := pdf.Render(ctx, report, meta)
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}

	path := filepath.Join(dir, stem+"-report."+format)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" && !contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
