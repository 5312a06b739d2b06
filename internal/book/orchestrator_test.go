package book

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jackzampolin/tilebook/internal/mosaic"
	"github.com/jackzampolin/tilebook/internal/resolver"
	"github.com/jackzampolin/tilebook/internal/testutil"
)

const (
	tileW = 8
	tileH = 6
)

type recordingBuilder struct {
	format    string
	labels    []string
	pages     []image.Image
	finalized bool
	aborted   bool
}

func (b *recordingBuilder) Begin(format string) error {
	b.format = format
	return nil
}

func (b *recordingBuilder) AppendPage(_ context.Context, label string, page image.Image) error {
	b.labels = append(b.labels, label)
	b.pages = append(b.pages, page)
	return nil
}

func (b *recordingBuilder) Finalize(context.Context) (string, error) {
	b.finalized = true
	return "out.pdf", nil
}

func (b *recordingBuilder) Abort() error {
	b.aborted = true
	return nil
}

func newTestOrchestrator(t *testing.T, mock *testutil.Resolver, builder Builder, mutate func(*Config)) *Orchestrator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := resolver.NewClient(resolver.Config{
		URLTemplate: mock.URLTemplate(),
		Timeout:     5 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	fetcher := mosaic.NewFetcher(mosaic.FetcherConfig{Source: client, RetryDelay: time.Millisecond, Logger: logger})

	cfg := Config{
		Prober:       mosaic.NewProber(mosaic.ProberConfig{Fetcher: fetcher, Retries: 2, Logger: logger}),
		Assembler:    mosaic.NewAssembler(mosaic.AssemblerConfig{Fetcher: fetcher, Concurrency: 2, Logger: logger}),
		LengthFinder: mosaic.NewLengthFinder(mosaic.LengthFinderConfig{Fetcher: fetcher, Retries: 2, Logger: logger}),
		Builder:      builder,
		Retries:      2,
		PageFormat:   "Letter",
		Logger:       logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func standardResolver(t *testing.T, fail func(page string, row, col, attempt int) int) *testutil.Resolver {
	return testutil.NewResolver(t, testutil.ResolverConfig{
		DocumentID: "book",
		Pages:      3,
		Covers:     []string{resolver.FrontCover, resolver.BackCover},
		Rows:       2,
		Cols:       2,
		TileWidth:  tileW,
		TileHeight: tileH,
		Fail:       fail,
	})
}

func assertAssembled(t *testing.T, label string, page image.Image) {
	t.Helper()
	rgba, ok := page.(*image.RGBA)
	if !ok {
		t.Fatalf("page %s is %T, want *image.RGBA", label, page)
	}
	if rgba.Bounds() != image.Rect(0, 0, 2*tileW, 2*tileH) {
		t.Fatalf("page %s bounds = %v", label, rgba.Bounds())
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			want := testutil.TileColor(label, r, c)
			if got := rgba.RGBAAt(c*tileW+tileW/2, r*tileH+tileH/2); got != want {
				t.Errorf("page %s tile (%d,%d) = %v, want %v", label, r, c, got, want)
			}
		}
	}
}

func TestOrchestrator_Download(t *testing.T) {
	mock := standardResolver(t, nil)
	builder := &recordingBuilder{}
	var progress []Progress
	o := newTestOrchestrator(t, mock, builder, func(c *Config) {
		c.Progress = func(p Progress) { progress = append(progress, p) }
	})

	result, err := o.Download(context.Background(), "book", 0)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	wantLabels := []string{"C1", "1", "2", "3", "C3"}
	if len(builder.labels) != len(wantLabels) {
		t.Fatalf("pages = %v, want %v", builder.labels, wantLabels)
	}
	for i, want := range wantLabels {
		if builder.labels[i] != want {
			t.Errorf("page %d = %s, want %s", i, builder.labels[i], want)
		}
		assertAssembled(t, want, builder.pages[i])
	}

	if !builder.finalized || builder.aborted {
		t.Errorf("finalized = %v, aborted = %v", builder.finalized, builder.aborted)
	}
	if builder.format != "Letter" {
		t.Errorf("format = %q, want Letter", builder.format)
	}

	if result.Length != 3 || result.Pages != 5 || result.Output != "out.pdf" {
		t.Errorf("result = %+v", result)
	}
	wantGrid := mosaic.GridShape{Rows: 2, Cols: 2, Width: 2 * tileW, Height: 2 * tileH}
	if result.Grid != wantGrid {
		t.Errorf("grid = %+v, want %+v", result.Grid, wantGrid)
	}

	if len(progress) != 5 || progress[4].Index != 5 || progress[4].Total != 5 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestOrchestrator_DownloadKnownLength(t *testing.T) {
	mock := standardResolver(t, nil)
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, nil)

	if _, err := o.Download(context.Background(), "book", 2); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(builder.labels) != 4 {
		t.Errorf("pages = %v, want C1 1 2 C3", builder.labels)
	}
	if mock.PageRequests("100") != 0 {
		t.Error("length search should not run when length is given")
	}
}

func TestOrchestrator_DownloadUnitFailure(t *testing.T) {
	mock := standardResolver(t, func(page string, row, col, attempt int) int {
		if page == "2" && row == 1 && col == 1 {
			return http.StatusInternalServerError
		}
		return 0
	})
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, nil)

	result, err := o.Download(context.Background(), "book", 3)
	if result != nil {
		t.Error("no result expected on failure")
	}

	var unitErr *UnitError
	if !errors.As(err, &unitErr) {
		t.Fatalf("err = %v, want *UnitError", err)
	}
	if unitErr.Unit != "page 2" {
		t.Errorf("Unit = %q, want page 2", unitErr.Unit)
	}
	if !IsRetryExhausted(err) {
		t.Errorf("err = %v, want retry exhausted", err)
	}

	if len(builder.labels) != 2 || builder.labels[1] != "1" {
		t.Errorf("pages appended = %v, want [C1 1]", builder.labels)
	}
	if !builder.aborted || builder.finalized {
		t.Errorf("aborted = %v, finalized = %v", builder.aborted, builder.finalized)
	}
	if mock.PageRequests("3") != 0 {
		t.Error("pages after the failed unit must not be fetched")
	}
}

func TestOrchestrator_BudgetsAreIndependent(t *testing.T) {
	// Pages 2 and 3 each fail twice before succeeding: each needs a full
	// budget of 2, so page 3 only succeeds if page 2's spending is not
	// charged to it.
	mock := standardResolver(t, func(page string, row, col, attempt int) int {
		if (page == "2" || page == "3") && row == 0 && col == 0 && attempt < 2 {
			return http.StatusBadGateway
		}
		return 0
	})
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, nil)

	if _, err := o.Download(context.Background(), "book", 3); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(builder.labels) != 5 {
		t.Errorf("pages = %v, want 5", builder.labels)
	}
	assertAssembled(t, "3", builder.pages[3])
}

func TestOrchestrator_GridProbeFailure(t *testing.T) {
	mock := testutil.NewResolver(t, testutil.ResolverConfig{DocumentID: "book", Pages: 0, Rows: 2, Cols: 2})
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, nil)

	_, err := o.Download(context.Background(), "book", 0)
	var unitErr *UnitError
	if !errors.As(err, &unitErr) || unitErr.Unit != "grid probe" {
		t.Fatalf("err = %v, want grid probe UnitError", err)
	}
	if !errors.Is(err, mosaic.ErrEmptyGrid) {
		t.Errorf("err = %v, want ErrEmptyGrid", err)
	}
	if len(builder.labels) != 0 {
		t.Error("no pages should be appended")
	}
}

func TestOrchestrator_ProbeEachUnit(t *testing.T) {
	mock := standardResolver(t, nil)
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, func(c *Config) {
		c.ProbeEachUnit = true
	})

	if _, err := o.Download(context.Background(), "book", 1); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	// 4 tiles + 2 probe walks of 3 requests each.
	if got := mock.PageRequests("C1"); got != 10 {
		t.Errorf("cover requests = %d, want 10", got)
	}
}

func TestOrchestrator_Units(t *testing.T) {
	o := New(Config{})
	got := o.Units(2)
	want := []string{"C1", "1", "2", "C3"}
	if len(got) != len(want) {
		t.Fatalf("Units(2) = %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("unit %d = %s, want %s", i, got[i], want[i])
		}
	}

	skip := New(Config{SkipCovers: true})
	if n := len(skip.Units(2)); n != 2 {
		t.Errorf("Units(2) without covers has %d units, want 2", n)
	}
}

func TestOrchestrator_ZeroRetries(t *testing.T) {
	// Page 1 recovers only on its third attempt, which a zero budget never reaches.
	mock := standardResolver(t, func(page string, row, col, attempt int) int {
		if page == "1" && row == 0 && col == 0 && attempt < 2 {
			return http.StatusBadGateway
		}
		return 0
	})
	builder := &recordingBuilder{}
	o := newTestOrchestrator(t, mock, builder, func(c *Config) {
		c.Retries = 0
		c.RepresentativePage = 2
	})

	_, err := o.Download(context.Background(), "book", 1)
	var unitErr *UnitError
	if !errors.As(err, &unitErr) || unitErr.Unit != "page 1" {
		t.Fatalf("err = %v, want page 1 UnitError", err)
	}
	if !IsRetryExhausted(err) {
		t.Errorf("err = %v, want retry exhausted", err)
	}
	if len(builder.labels) != 1 {
		t.Errorf("pages appended = %v, want [C1]", builder.labels)
	}
}

func TestNew_RetriesDefault(t *testing.T) {
	if got := New(Config{Retries: -1}).cfg.Retries; got != mosaic.DefaultRetries {
		t.Errorf("Retries -1 = %d, want %d", got, mosaic.DefaultRetries)
	}
	if got := New(Config{Retries: 0}).cfg.Retries; got != 0 {
		t.Errorf("Retries 0 = %d, want 0", got)
	}
}
