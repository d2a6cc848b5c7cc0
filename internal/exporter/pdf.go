package exporter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
)

// PDFRenderer prints the HTML report to PDF in a headless Chrome instance
type PDFRenderer struct {
	chromePath string
	headless   bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPDFRenderer creates a renderer from the report settings
func NewPDFRenderer(cfg config.ReportConfig, logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.PDFTimeout
	if timeout <= 0 {
		timeout = config.PDFRenderTimeout
	}
	return &PDFRenderer{
		chromePath: cfg.ChromePath,
		headless:   cfg.Headless,
		timeout:    timeout,
		logger:     logger.With(slog.String("component", "exporter.pdf")),
	}
}

// Render returns the report as PDF bytes
func (p *PDFRenderer) Render(ctx context.Context, report *analytics.Report, meta ReportMeta) ([]byte, error) {
	var html bytes.Buffer
	if err := RenderHTML(&html, report, meta); err != nil {
		return nil, err
	}
	return p.RenderHTML(ctx, html.String())
}

// RenderHTML prints an HTML document to PDF
func (p *PDFRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	start := time.Now()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", p.headless))
	if p.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(p.chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, p.timeout)
	defer cancelTimeout()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		p.logger.ErrorContext(ctx, "PDF rendering failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	p.logger.InfoContext(ctx, "PDF rendered",
		slog.Int("bytes", len(pdf)),
		slog.Duration("elapsed", time.Since(start)))
	return pdf, nil
}
