package document

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFBuilder stages each page as a JPEG under the home staging directory
// and imports them, one image per page, into <output>/<documentID>.pdf.
type PDFBuilder struct {
	documentID string
	cfg        Config
	logger     *slog.Logger

	runID  string
	format string
	pages  []string
}

// NewPDFBuilder creates a PDF builder for one document.
func NewPDFBuilder(documentID string, cfg Config) *PDFBuilder {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	return &PDFBuilder{
		documentID: documentID,
		cfg:        cfg,
		logger:     cfg.logger().With("document", documentID),
	}
}

// Begin validates the paper format (e.g. "Letter", "A4") and creates the
// staging directory.
func (b *PDFBuilder) Begin(format string) error {
	if format == "" {
		format = DefaultPageFormat
	}
	if _, ok := types.PaperSize[format]; !ok {
		return fmt.Errorf("unknown page format %q", format)
	}

	b.runID = uuid.New().String()
	if err := b.cfg.Home.EnsureStagingDir(b.documentID, b.runID); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	b.format = format
	b.pages = nil
	return nil
}

// AppendPage stages page as the next page of the document.
func (b *PDFBuilder) AppendPage(ctx context.Context, label string, page image.Image) error {
	if b.runID == "" {
		return ErrNotBegun
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := b.cfg.Home.StagedPagePath(b.documentID, b.runID, len(b.pages)+1, label, "jpg")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create staged page: %w", err)
	}
	if err := jpeg.Encode(f, page, &jpeg.Options{Quality: b.cfg.JPEGQuality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode page %s: %w", label, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write staged page: %w", err)
	}

	b.pages = append(b.pages, path)
	b.logger.Debug("staged page", "label", label, "path", path)
	return nil
}

// Finalize writes the PDF and returns its path. The staging directory is
// removed unless KeepStaging is set.
func (b *PDFBuilder) Finalize(ctx context.Context) (string, error) {
	if b.runID == "" {
		return "", ErrNotBegun
	}
	if len(b.pages) == 0 {
		return "", ErrNoPagesAppended
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outDir := b.cfg.outputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, b.documentID+".pdf")

	// ImportImagesFile appends to an existing file.
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to replace %s: %w", outPath, err)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = types.PaperSize[b.format]
	imp.PageSize = b.format
	imp.Pos = types.Full

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ImportImagesFile(b.pages, outPath, imp, conf); err != nil {
		return "", fmt.Errorf("failed to build PDF: %w", err)
	}

	count, err := api.PageCountFile(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to verify PDF: %w", err)
	}
	if count != len(b.pages) {
		return "", fmt.Errorf("PDF has %d pages, expected %d", count, len(b.pages))
	}

	b.logger.Info("wrote PDF", "path", outPath, "pages", count, "format", b.format)

	if !b.cfg.KeepStaging {
		if err := b.Abort(); err != nil {
			b.logger.Warn("failed to remove staging directory", "error", err)
		}
	}
	return outPath, nil
}

// Abort removes the staging directory.
func (b *PDFBuilder) Abort() error {
	if b.runID == "" {
		return nil
	}
	return os.RemoveAll(b.cfg.Home.StagingDir(b.documentID, b.runID))
}

// StagingDir returns the staging directory of the current run, or "" before Begin.
func (b *PDFBuilder) StagingDir() string {
	if b.runID == "" {
		return ""
	}
	return b.cfg.Home.StagingDir(b.documentID, b.runID)
}
