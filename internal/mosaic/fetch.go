// Package mosaic reconstructs full page bitmaps from resolver tiles: it
// discovers the tile grid, finds the document length, and assembles pages.
package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/tilebook/internal/metrics"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

// ErrRetryExhausted is returned when a tile keeps failing transiently after
// its unit's retry budget is spent.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// DefaultRetryDelay is the first backoff delay when none is configured.
const DefaultRetryDelay = 500 * time.Millisecond

// TileSource issues a single tile request. *resolver.Client implements it.
type TileSource interface {
	Fetch(ctx context.Context, req resolver.Request) ([]byte, error)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Source        TileSource
	RetryDelay    time.Duration // first backoff delay, doubled per retry; negative selects DefaultRetryDelay
	MaxRetryDelay time.Duration
	Logger        *slog.Logger
}

// Fetcher retries transient tile failures against a caller-supplied Budget.
type Fetcher struct {
	source        TileSource
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	logger        *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	maxDelay := cfg.MaxRetryDelay
	if maxDelay < delay {
		maxDelay = 10 * delay
	}
	return &Fetcher{
		source:        cfg.Source,
		retryDelay:    delay,
		maxRetryDelay: maxDelay,
		logger:        logger,
	}
}

// Fetch returns the bytes of one tile.
//
// Transient failures are retried while budget remains; afterwards the error
// wraps both ErrRetryExhausted and the last failure. resolver.ErrBoundary,
// fatal errors and context errors are returned on first occurrence.
func (f *Fetcher) Fetch(ctx context.Context, req resolver.Request, budget *Budget) ([]byte, error) {
	var (
		data      []byte
		exhausted bool
	)

	err := retry.Do(
		func() error {
			b, err := f.source.Fetch(ctx, req)
			if err != nil {
				return err
			}
			data = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(f.retryDelay),
		retry.MaxDelay(f.maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if !resolver.IsTransient(err) {
				return false
			}
			if !budget.Spend() {
				exhausted = true
				return false
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.Retries.Inc()
			f.logger.Warn("retrying tile",
				"request", req.String(),
				"attempt", n+1,
				"remaining", budget.Remaining(),
				"error", err,
			)
		}),
	)
	if err != nil {
		if exhausted {
			metrics.RetryExhausted.Inc()
			return nil, fmt.Errorf("%s: %w: %w", req, ErrRetryExhausted, err)
		}
		return nil, err
	}
	return data, nil
}

// Tile fetches and decodes one tile.
func (f *Fetcher) Tile(ctx context.Context, req resolver.Request, budget *Budget) (image.Image, error) {
	data, err := f.Fetch(ctx, req, budget)
	if err != nil {
		return nil, err
	}
	img, err := decodeTile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	return img, nil
}
