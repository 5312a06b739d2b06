package mosaic

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackzampolin/tilebook/internal/resolver"
	"github.com/jackzampolin/tilebook/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T, mock *testutil.Resolver) *Fetcher {
	t.Helper()
	client, err := resolver.NewClient(resolver.Config{
		URLTemplate: mock.URLTemplate(),
		Timeout:     5 * time.Second,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewFetcher(FetcherConfig{
		Source:     client,
		RetryDelay: time.Millisecond,
		Logger:     discardLogger(),
	})
}

// sourceFunc adapts a function to TileSource.
type sourceFunc func(ctx context.Context, req resolver.Request) ([]byte, error)

func (f sourceFunc) Fetch(ctx context.Context, req resolver.Request) ([]byte, error) {
	return f(ctx, req)
}
