package document

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
)

// DirBuilder writes each page as a PNG into <output>/<documentID>/.
// The page format is recorded but has no effect on raster output.
type DirBuilder struct {
	documentID string
	cfg        Config
	logger     *slog.Logger

	dir   string
	pages int
}

// NewDirBuilder creates an image directory builder for one document.
func NewDirBuilder(documentID string, cfg Config) *DirBuilder {
	return &DirBuilder{
		documentID: documentID,
		cfg:        cfg,
		logger:     cfg.logger().With("document", documentID),
	}
}

func (b *DirBuilder) Begin(format string) error {
	b.dir = filepath.Join(b.cfg.outputDir(), b.documentID)
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	b.pages = 0
	return nil
}

func (b *DirBuilder) AppendPage(ctx context.Context, label string, page image.Image) error {
	if b.dir == "" {
		return ErrNotBegun
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(b.dir, fmt.Sprintf("page_%04d_%s.png", b.pages+1, label))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create page file: %w", err)
	}
	if err := png.Encode(f, page); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode page %s: %w", label, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write page file: %w", err)
	}
	b.pages++
	return nil
}

func (b *DirBuilder) Finalize(ctx context.Context) (string, error) {
	if b.dir == "" {
		return "", ErrNotBegun
	}
	if b.pages == 0 {
		return "", ErrNoPagesAppended
	}
	b.logger.Info("wrote page images", "dir", b.dir, "pages", b.pages)
	return b.dir, nil
}

// Abort leaves already written pages in place; a partial directory is
// still readable.
func (b *DirBuilder) Abort() error {
	return nil
}
