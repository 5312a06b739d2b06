package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/tilebook/internal/resolver"
)

// ErrMissingTile is returned when the resolver reports a boundary for a
// coordinate inside the expected grid.
var ErrMissingTile = errors.New("tile missing inside grid")

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	Fetcher     *Fetcher
	Concurrency int         // concurrent tile fetches per page, default 1
	Background  color.Color // fill for any area no tile covers, default white
	Logger      *slog.Logger
}

// Assembler fetches every tile of a page and stitches them into one bitmap.
type Assembler struct {
	fetcher     *Fetcher
	concurrency int
	background  color.Color
	logger      *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	bg := cfg.Background
	if bg == nil {
		bg = color.White
	}
	return &Assembler{
		fetcher:     cfg.Fetcher,
		concurrency: concurrency,
		background:  bg,
		logger:      logger,
	}
}

// Assemble fetches all shape.Rows × shape.Cols tiles of page, charging
// transient failures to budget, and returns the stitched page.
// Any tile that cannot be fetched fails the whole page.
func (a *Assembler) Assemble(
	ctx context.Context,
	documentID string,
	page resolver.PageToken,
	shape GridShape,
	budget *Budget,
) (*image.RGBA, error) {
	if shape.Rows < 1 || shape.Cols < 1 {
		return nil, fmt.Errorf("assemble page %s: %w", page, ErrEmptyGrid)
	}

	tiles := make([][]image.Image, shape.Rows)
	for r := range tiles {
		tiles[r] = make([]image.Image, shape.Cols)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for r := 0; r < shape.Rows; r++ {
		for c := 0; c < shape.Cols; c++ {
			g.Go(func() error {
				req := resolver.NewRequest(documentID, page, resolver.Coordinate{Row: r, Col: c})
				img, err := a.fetcher.Tile(gctx, req, budget)
				if errors.Is(err, resolver.ErrBoundary) {
					return fmt.Errorf("%s: %w", req, ErrMissingTile)
				}
				if err != nil {
					return err
				}
				tiles[r][c] = img
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Compose(shape, tiles, a.background), nil
}

// Compose places tiles row-major onto a background-filled canvas of the
// grid's pixel size. Within a row each tile starts where the previous one
// ended; each row starts below the previous row, offset by the height of
// that row's last tile. Pixels falling outside the canvas are clipped.
func Compose(shape GridShape, tiles [][]image.Image, background color.Color) *image.RGBA {
	page := image.NewRGBA(image.Rect(0, 0, shape.Width, shape.Height))
	draw.Draw(page, page.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	y := 0
	for _, row := range tiles {
		x, rowHeight := 0, 0
		for _, tile := range row {
			if tile == nil {
				continue
			}
			b := tile.Bounds()
			dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
			draw.Draw(page, dst, tile, b.Min, draw.Src)
			x += b.Dx()
			rowHeight = b.Dy()
		}
		y += rowHeight
	}
	return page
}
