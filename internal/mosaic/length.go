package mosaic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/tilebook/internal/metrics"
	"github.com/jackzampolin/tilebook/internal/resolver"
)

const (
	// lengthSearchStep is both the first candidate page and the first step.
	lengthSearchStep = 100

	// DefaultMaxLength stops a search against a resolver that never signals
	// a boundary.
	DefaultMaxLength = 100000
)

var (
	// ErrNoPages is returned when page 1 does not exist.
	ErrNoPages = errors.New("document has no content pages")

	// ErrLengthUnbounded is returned when the search passes the maximum length.
	ErrLengthUnbounded = errors.New("document length exceeds maximum")
)

// LengthFinderConfig configures a LengthFinder.
type LengthFinderConfig struct {
	Fetcher   *Fetcher
	Retries   int // budget per existence probe
	MaxLength int
	Logger    *slog.Logger
}

// LengthFinder locates the last numbered page of a document.
type LengthFinder struct {
	fetcher   *Fetcher
	retries   int
	maxLength int
	logger    *slog.Logger
}

// NewLengthFinder creates a LengthFinder.
func NewLengthFinder(cfg LengthFinderConfig) *LengthFinder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &LengthFinder{
		fetcher:   cfg.Fetcher,
		retries:   cfg.Retries,
		maxLength: maxLength,
		logger:    logger,
	}
}

// FindLength returns the highest page number for which tile (0,0) exists.
//
// The search steps forward by 100 while pages exist. On the first missing
// page it steps back and continues with a step of 10, then 1; a miss at
// step 1 ends the search. Existence must be monotonic: every page up to the
// length exists and none beyond it. For a length N the search makes at most
// N/100 + 21 probes.
func (l *LengthFinder) FindLength(ctx context.Context, documentID string) (int, error) {
	j, delta := lengthSearchStep, lengthSearchStep
	probes := 0
	for {
		if j > l.maxLength {
			return 0, fmt.Errorf("find length of %s: %w (%d)", documentID, ErrLengthUnbounded, l.maxLength)
		}

		probes++
		ok, err := l.exists(ctx, documentID, j)
		if err != nil {
			return 0, err
		}
		if ok {
			j += delta
			continue
		}
		if delta == 1 {
			break
		}
		j -= delta
		delta /= 10
		j += delta
	}

	length := j - 1
	l.logger.Debug("found document length", "document", documentID, "length", length, "probes", probes)
	if length < 1 {
		return 0, fmt.Errorf("find length of %s: %w", documentID, ErrNoPages)
	}
	return length, nil
}

// exists probes tile (0,0) of page n with a fresh budget.
func (l *LengthFinder) exists(ctx context.Context, documentID string, n int) (bool, error) {
	metrics.ProbeRequests.WithLabelValues(metrics.ProbeLength).Inc()

	req := resolver.NewRequest(documentID, resolver.Page(n), resolver.Coordinate{})
	_, err := l.fetcher.Fetch(ctx, req, NewBudget(l.retries))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, resolver.ErrBoundary):
		return false, nil
	default:
		return false, fmt.Errorf("probe length: %w", err)
	}
}
