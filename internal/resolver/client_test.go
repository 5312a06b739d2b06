package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/tilebook/internal/testutil"
)

func newTestClient(t *testing.T, template string) *Client {
	t.Helper()
	c, err := NewClient(Config{URLTemplate: template, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestClient_Fetch(t *testing.T) {
	mock := testutil.NewResolver(t, testutil.ResolverConfig{
		DocumentID: "book",
		Pages:      2,
		Covers:     []string{FrontCover},
		Rows:       2,
		Cols:       2,
		Fail: func(page string, row, col, attempt int) int {
			if page == "2" && row == 1 && col == 1 {
				return http.StatusServiceUnavailable
			}
			return 0
		},
	})
	client := newTestClient(t, mock.URLTemplate())
	ctx := context.Background()

	t.Run("tile data", func(t *testing.T) {
		data, err := client.Fetch(ctx, NewRequest("book", Page(1), Coordinate{Row: 1, Col: 0}))
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(data) == 0 {
			t.Error("expected tile bytes")
		}
	})

	t.Run("cover tile", func(t *testing.T) {
		if _, err := client.Fetch(ctx, NewRequest("book", Cover(FrontCover), Coordinate{})); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	})

	t.Run("row past edge is boundary", func(t *testing.T) {
		_, err := client.Fetch(ctx, NewRequest("book", Page(1), Coordinate{Row: 2}))
		if !errors.Is(err, ErrBoundary) {
			t.Errorf("err = %v, want ErrBoundary", err)
		}
	})

	t.Run("page past end is boundary", func(t *testing.T) {
		_, err := client.Fetch(ctx, NewRequest("book", Page(3), Coordinate{}))
		if !errors.Is(err, ErrBoundary) {
			t.Errorf("err = %v, want ErrBoundary", err)
		}
	})

	t.Run("server error is transient", func(t *testing.T) {
		_, err := client.Fetch(ctx, NewRequest("book", Page(2), Coordinate{Row: 1, Col: 1}))
		var te *TransientError
		if !errors.As(err, &te) {
			t.Fatalf("err = %v, want *TransientError", err)
		}
		if te.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("StatusCode = %d, want 503", te.StatusCode)
		}
		if errors.Is(err, ErrBoundary) {
			t.Error("transient failure must not be a boundary")
		}
	})
}

func TestClient_FetchEmptyBodyIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/?p={page_nr}")
	_, err := client.Fetch(context.Background(), NewRequest("x", Page(1), Coordinate{}))
	if !IsFatal(err) {
		t.Errorf("err = %v, want fatal", err)
	}
}

func TestClient_FetchNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(t, url+"/?p={page_nr}")
	_, err := client.Fetch(context.Background(), NewRequest("x", Page(1), Coordinate{}))
	if !IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestClient_FetchCanceled(t *testing.T) {
	mock := testutil.NewResolver(t, testutil.ResolverConfig{Pages: 1, Rows: 1, Cols: 1})
	client := newTestClient(t, mock.URLTemplate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, NewRequest("doc", Page(1), Coordinate{}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if IsTransient(err) {
		t.Error("cancellation must not be retried as transient")
	}
}

func TestClient_SetRateLimit(t *testing.T) {
	client := newTestClient(t, DefaultURLTemplate)
	client.SetRateLimit(3.5)
	if got := client.RateLimit(); got != 3.5 {
		t.Errorf("RateLimit() = %v, want 3.5", got)
	}
}

func TestClient_FetchOversizedTileIsFatal(t *testing.T) {
	defer func(n int64) { maxTileBytes = n }(maxTileBytes)
	maxTileBytes = 16

	// Serves a body of n bytes.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		_, _ = w.Write(make([]byte, n))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/?n={page_nr}")

	_, err := client.Fetch(context.Background(), NewRequest("x", Page(32), Coordinate{}))
	if !IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if !strings.Contains(err.Error(), "larger than 16 bytes") {
		t.Errorf("err = %v, want size in message", err)
	}

	data, err := client.Fetch(context.Background(), NewRequest("x", Page(16), Coordinate{}))
	if err != nil {
		t.Fatalf("tile at the limit: Fetch() error = %v", err)
	}
	if len(data) != 16 {
		t.Errorf("len(data) = %d, want 16", len(data))
	}
}

func TestClient_RateLimitWait(t *testing.T) {
	mock := testutil.NewResolver(t, testutil.ResolverConfig{Pages: 1, Rows: 1, Cols: 1})
	client, err := NewClient(Config{URLTemplate: mock.URLTemplate(), RateLimit: 20})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	// The burst covers the first 20 requests; the rest wait.
	for i := 0; i < 22; i++ {
		if _, err := client.Fetch(context.Background(), NewRequest("doc", Page(1), Coordinate{})); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if client.RateLimitWait() <= 0 {
		t.Errorf("RateLimitWait() = %v, want > 0", client.RateLimitWait())
	}
}
