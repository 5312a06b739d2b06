// Package book downloads a whole document: it discovers the tile grid and
// page count once, then assembles the front cover, every numbered page and
// the back cover in order and hands each page to a document builder.
package book

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/jackzampolin/tilebook/internal/metrics"
	"github.com/jackzampolin/tilebook/internal/mosaic"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

// Builder receives assembled pages in document order.
type Builder interface {
	Begin(format string) error
	AppendPage(ctx context.Context, label string, page image.Image) error
	Finalize(ctx context.Context) (string, error)
	Abort() error
}

// UnitError reports the page or probe that stopped a download.
type UnitError struct {
	Unit string // "C1", "7", "grid probe", "length probe"
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Progress is reported after each unit is assembled.
type Progress struct {
	Unit    string
	Index   int // 1-indexed position among all units
	Total   int
	Elapsed time.Duration
}

// Result summarizes a finished download.
type Result struct {
	DocumentID string           `json:"document_id" yaml:"document_id"`
	Length     int              `json:"length" yaml:"length"`
	Grid       mosaic.GridShape `json:"grid" yaml:"grid"`
	Pages      int              `json:"pages" yaml:"pages"`
	Output     string           `json:"output" yaml:"output"`
	Elapsed    string           `json:"elapsed" yaml:"elapsed"`
}

// Config configures an Orchestrator.
type Config struct {
	Prober       *mosaic.Prober
	Assembler    *mosaic.Assembler
	LengthFinder *mosaic.LengthFinder
	Builder      Builder

	Retries            int    // budget per unit; negative selects mosaic.DefaultRetries
	RepresentativePage int    // page probed for the grid, default 1
	FrontCover         string // default resolver.FrontCover
	BackCover          string // default resolver.BackCover
	SkipCovers         bool
	ProbeEachUnit      bool // probe every unit's grid instead of assuming one shape
	PageFormat         string

	Progress func(Progress)
	Logger   *slog.Logger
}

// Orchestrator sequences a document download.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retries < 0 {
		cfg.Retries = mosaic.DefaultRetries
	}
	if cfg.RepresentativePage <= 0 {
		cfg.RepresentativePage = 1
	}
	if cfg.FrontCover == "" {
		cfg.FrontCover = resolver.FrontCover
	}
	if cfg.BackCover == "" {
		cfg.BackCover = resolver.BackCover
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}
}

// Units returns the page tokens of a document of the given length in
// output order: front cover, 1..length, back cover.
func (o *Orchestrator) Units(length int) []resolver.PageToken {
	units := make([]resolver.PageToken, 0, length+2)
	if !o.cfg.SkipCovers {
		units = append(units, resolver.Cover(o.cfg.FrontCover))
	}
	for n := 1; n <= length; n++ {
		units = append(units, resolver.Page(n))
	}
	if !o.cfg.SkipCovers {
		units = append(units, resolver.Cover(o.cfg.BackCover))
	}
	return units
}

// Probe discovers the grid of the representative page and, when length is
// not positive, the document length.
func (o *Orchestrator) Probe(ctx context.Context, documentID string, length int) (mosaic.GridShape, int, error) {
	grid, err := o.cfg.Prober.Probe(ctx, documentID, resolver.Page(o.cfg.RepresentativePage))
	if err != nil {
		return mosaic.GridShape{}, 0, &UnitError{Unit: "grid probe", Err: err}
	}

	if length <= 0 {
		o.logger.Info("length not specified, calculating document length", "document", documentID)
		length, err = o.cfg.LengthFinder.FindLength(ctx, documentID)
		if err != nil {
			return mosaic.GridShape{}, 0, &UnitError{Unit: "length probe", Err: err}
		}
		o.logger.Info("document length found", "document", documentID, "length", length)
	}
	return grid, length, nil
}

// Download fetches every unit of the document and builds the output.
// A length of zero or less means unknown. The first unit that fails stops
// the download; the builder is aborted and the error names the unit.
func (o *Orchestrator) Download(ctx context.Context, documentID string, length int) (*Result, error) {
	start := time.Now()
	log := o.logger.With("document", documentID)

	grid, length, err := o.Probe(ctx, documentID, length)
	if err != nil {
		return nil, err
	}
	log.Info("downloading document", "length", length, "grid", grid.String())

	if err := o.cfg.Builder.Begin(o.cfg.PageFormat); err != nil {
		return nil, fmt.Errorf("failed to begin document: %w", err)
	}

	units := o.Units(length)
	for i, unit := range units {
		if err := o.downloadUnit(ctx, documentID, unit, grid); err != nil {
			metrics.Pages.WithLabelValues("failed").Inc()
			if abortErr := o.cfg.Builder.Abort(); abortErr != nil {
				log.Warn("failed to abort document", "error", abortErr)
			}
			log.Error("page failed", "page", unit.String(), "error", err)
			return nil, &UnitError{Unit: unitName(unit), Err: err}
		}
		metrics.Pages.WithLabelValues("ok").Inc()

		log.Info("page download complete", "page", unit.String(), "index", i+1, "of", len(units))
		if o.cfg.Progress != nil {
			o.cfg.Progress(Progress{Unit: unit.String(), Index: i + 1, Total: len(units), Elapsed: time.Since(start)})
		}
	}

	out, err := o.cfg.Builder.Finalize(ctx)
	if err != nil {
		if abortErr := o.cfg.Builder.Abort(); abortErr != nil {
			log.Warn("failed to abort document", "error", abortErr)
		}
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}

	elapsed := time.Since(start)
	log.Info("document saved", "output", out, "pages", len(units), "elapsed", elapsed.Round(time.Millisecond))

	return &Result{
		DocumentID: documentID,
		Length:     length,
		Grid:       grid,
		Pages:      len(units),
		Output:     out,
		Elapsed:    elapsed.Round(time.Millisecond).String(),
	}, nil
}

// downloadUnit assembles one unit with its own retry budget and appends it.
func (o *Orchestrator) downloadUnit(ctx context.Context, documentID string, unit resolver.PageToken, grid mosaic.GridShape) error {
	if o.cfg.ProbeEachUnit {
		var err error
		grid, err = o.cfg.Prober.Probe(ctx, documentID, unit)
		if err != nil {
			return err
		}
	}

	budget := mosaic.NewBudget(o.cfg.Retries)
	page, err := o.cfg.Assembler.Assemble(ctx, documentID, unit, grid, budget)
	if err != nil {
		return err
	}
	if spent := budget.Spent(); spent > 0 {
		o.logger.Debug("page needed retries", "document", documentID, "page", unit.String(), "retries", spent)
	}

	if err := o.cfg.Builder.AppendPage(ctx, unit.String(), page); err != nil {
		return fmt.Errorf("failed to append page: %w", err)
	}
	return nil
}

func unitName(unit resolver.PageToken) string {
	if unit.IsCover() {
		return "cover " + unit.String()
	}
	return "page " + unit.String()
}

// IsRetryExhausted reports whether a download stopped because a unit ran out
// of retries, as opposed to a fatal failure.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, mosaic.ErrRetryExhausted)
}
