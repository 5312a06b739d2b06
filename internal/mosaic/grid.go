package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/tilebook/internal/metrics"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

// DefaultMaxGridSide caps how far a grid probe walks along one axis.
const DefaultMaxGridSide = 256

var (
	// ErrEmptyGrid is returned when the probed page has no tile at (0,0).
	ErrEmptyGrid = errors.New("page has no tiles")

	// ErrGridTooLarge is returned when a probe walks past the configured
	// maximum without reaching a boundary.
	ErrGridTooLarge = errors.New("grid exceeds maximum size")
)

// GridShape is the tile layout of a page and its full pixel size.
type GridShape struct {
	Rows   int `json:"rows" yaml:"rows"`
	Cols   int `json:"cols" yaml:"cols"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (g GridShape) String() string {
	return fmt.Sprintf("%dx%d tiles, %dx%d px", g.Rows, g.Cols, g.Width, g.Height)
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Fetcher     *Fetcher
	Retries     int // budget per tile probe
	MaxGridSide int
	Logger      *slog.Logger
}

// Prober discovers the grid shape of a page by walking until the resolver
// signals a boundary.
type Prober struct {
	fetcher *Fetcher
	retries int
	maxSide int
	logger  *slog.Logger
}

// NewProber creates a Prober.
func NewProber(cfg ProberConfig) *Prober {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSide := cfg.MaxGridSide
	if maxSide <= 0 {
		maxSide = DefaultMaxGridSide
	}
	return &Prober{
		fetcher: cfg.Fetcher,
		retries: cfg.Retries,
		maxSide: maxSide,
		logger:  logger,
	}
}

// Probe walks down column 0 to count rows and sum their heights, and along
// row 0 to count columns and sum their widths. The two walks are independent
// and run concurrently; each assumes the boundary has no gaps.
func (p *Prober) Probe(ctx context.Context, documentID string, page resolver.PageToken) (GridShape, error) {
	var shape GridShape

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, h, err := p.walk(gctx, documentID, page, func(i int) resolver.Coordinate {
			return resolver.Coordinate{Row: i}
		}, func(size image.Point) int { return size.Y })
		shape.Rows, shape.Height = n, h
		return err
	})
	g.Go(func() error {
		n, w, err := p.walk(gctx, documentID, page, func(i int) resolver.Coordinate {
			return resolver.Coordinate{Col: i}
		}, func(size image.Point) int { return size.X })
		shape.Cols, shape.Width = n, w
		return err
	})
	if err := g.Wait(); err != nil {
		return GridShape{}, err
	}

	if shape.Rows == 0 || shape.Cols == 0 {
		return GridShape{}, fmt.Errorf("probe document %s page %s: %w", documentID, page, ErrEmptyGrid)
	}

	p.logger.Debug("probed grid", "document", documentID, "page", page.String(), "grid", shape.String())
	return shape, nil
}

// walk fetches coord(0), coord(1), ... until a boundary and returns the
// number of tiles found and the sum of extent over them.
func (p *Prober) walk(
	ctx context.Context,
	documentID string,
	page resolver.PageToken,
	coord func(int) resolver.Coordinate,
	extent func(image.Point) int,
) (int, int, error) {
	total := 0
	for i := 0; i < p.maxSide; i++ {
		req := resolver.NewRequest(documentID, page, coord(i))
		metrics.ProbeRequests.WithLabelValues(metrics.ProbeGrid).Inc()

		data, err := p.fetcher.Fetch(ctx, req, NewBudget(p.retries))
		if errors.Is(err, resolver.ErrBoundary) {
			return i, total, nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("probe grid: %w", err)
		}

		size, err := decodeTileSize(data)
		if err != nil {
			return 0, 0, fmt.Errorf("probe grid %s: %w", req, err)
		}
		total += extent(size)
	}
	return 0, 0, fmt.Errorf("probe document %s page %s: %w (%d tiles)", documentID, page, ErrGridTooLarge, p.maxSide)
}
