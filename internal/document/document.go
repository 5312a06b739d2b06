// Package document turns an ordered sequence of page bitmaps into one
// output artifact: a PDF, or a directory of page images.
package document

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/jackzampolin/tilebook/internal/home"
)

// Output kinds.
const (
	KindPDF    = "pdf"
	KindImages = "images"
)

// DefaultPageFormat is the paper size used when none is configured.
const DefaultPageFormat = "Letter"

var (
	// ErrNotBegun is returned when pages are appended before Begin.
	ErrNotBegun = errors.New("document not begun")

	// ErrNoPagesAppended is returned when Finalize is called on an empty document.
	ErrNoPagesAppended = errors.New("no pages appended")
)

// Config holds settings shared by all builders.
type Config struct {
	Home        *home.Dir
	OutputDir   string // defaults to the home exports directory
	JPEGQuality int    // quality of staged PDF pages, default 90
	KeepStaging bool
	Logger      *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) outputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.Home.ExportsPath()
}

// Builder is implemented by PDFBuilder and DirBuilder.
type Builder interface {
	Begin(format string) error
	AppendPage(ctx context.Context, label string, page image.Image) error
	Finalize(ctx context.Context) (string, error)
	Abort() error
}

// New returns the builder for kind ("pdf" or "images").
func New(kind, documentID string, cfg Config) (Builder, error) {
	switch strings.ToLower(kind) {
	case KindPDF, "":
		return NewPDFBuilder(documentID, cfg), nil
	case KindImages:
		return NewDirBuilder(documentID, cfg), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", kind, KindPDF, KindImages)
	}
}
